package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/cli"
	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/protocol"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Commands that talk to a dive computer over BLE require -device (an address or advertised name).
 * download and info accept a replay CAPTURE file instead of a device.
 * Sync state is kept in the store selected with -store.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(a *app, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := execute(ctx, a, args); err != nil {
		if errors.Is(err, protocol.ErrBusy) {
			writeErr("Another download from this dive computer is still running")
		} else if protocol.Temporary(err) {
			writeErr("Failed to execute command (the dive computer may have gone out of range): %s", err)
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(a *app, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(a, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		commandTimeout time.Duration
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.DurationVar(&commandTimeout, "command-timeout", 10*time.Minute, "Set timeout for each command, including log downloads.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if !debug {
		if debugEnv, ok := os.LookupEnv("DIVESYNC_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	config.ReadFromEnvironment()
	if err := config.LoadFile(); err != nil {
		writeErr("Error loading settings: %s", err)
		return
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}

	args := flag.Args()
	if len(args) > 0 {
		if args[0] == "help" {
			if len(args) == 1 {
				Usage()
				status = 0
				return
			}
			info, ok := commands[args[1]]
			if !ok {
				writeErr("Unrecognized command: %s", args[1])
				return
			}
			info.Usage(args[1])
			status = 0
			return
		}
		if _, err := checkReadiness(args[0], config.Device != ""); err != nil {
			writeErr("Missing required flag: %s", err)
			return
		}
	}

	stores, err := config.OpenStores()
	if err != nil {
		writeErr("Error opening store: %s", err)
		return
	}
	defer stores.Close()

	a := &app{
		config: config,
		stores: stores,
		ident:  identify.New(stores.Configs),
		out:    os.Stdout,
	}
	defer a.Close()

	if flag.NArg() > 0 {
		status = runCommand(a, flag.Args(), commandTimeout)
	} else {
		status = runInteractiveShell(a, commandTimeout)
	}
}
