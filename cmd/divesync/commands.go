package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/cli"
	"github.com/libdcgo/divesync/pkg/connector/ble"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/parser"
	"github.com/libdcgo/divesync/pkg/replay"
	"github.com/libdcgo/divesync/pkg/retrieval"
	"github.com/libdcgo/divesync/pkg/store"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrRequiresDevice  = errors.New("command requires a dive computer (-device)")
	ErrUnknownCommand  = errors.New("unrecognized command")
)

type Argument struct {
	name string
	help string
}

type Handler func(ctx context.Context, a *app, args map[string]string) error

type Command struct {
	help           string
	requiresDevice bool // True if the command always talks to a dive computer over BLE
	args           []Argument
	optional       []Argument
	handler        Handler
}

// app is what command handlers share for the life of the process.
type app struct {
	config  *cli.Config
	stores  *cli.Stores
	ident   *identify.Identifier
	out     io.Writer
	adapter ble.Adapter
}

func (a *app) bleAdapter() (ble.Adapter, error) {
	if a.adapter == nil {
		adapter, err := ble.NewAdapter()
		if err != nil {
			return nil, err
		}
		a.adapter = adapter
	}
	return a.adapter, nil
}

func (a *app) Close() {
	if a.adapter != nil {
		if err := a.adapter.Close(); err != nil {
			log.Warning("Failed to close BLE adapter: %s", err)
		}
	}
}

// open returns a handle for the replay capture at path or, if path is empty, the configured
// dive computer.
func (a *app) open(ctx context.Context, path string) (*device.Handle, error) {
	if path != "" {
		return a.openCapture(ctx, path)
	}
	if a.config.Device == "" {
		return nil, ErrRequiresDevice
	}
	adapter, err := a.bleAdapter()
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, a.config.ScanTimeout)
	defer cancel()
	log.Info("Scanning for %s...", a.config.Device)
	adv, err := ble.Find(scanCtx, adapter, a.config.Device)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()
	conn, err := ble.Connect(connectCtx, adapter, *adv)
	if err != nil {
		return nil, err
	}

	h, err := a.openTransport(ctx, adv.LocalName, adv.Address, conn, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return h, nil
}

func (a *app) openCapture(ctx context.Context, path string) (*device.Handle, error) {
	capture, err := replay.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name, address := capture.Name, capture.Address
	if address == "" {
		address = path
	}
	return a.openTransport(ctx, name, address, &replay.Link{}, replay.NewDriver(capture))
}

func (a *app) openTransport(ctx context.Context, name, address string, t device.Transport, proto device.Protocol) (*device.Handle, error) {
	forced, err := a.config.Forced(address, name)
	if err != nil {
		return nil, err
	}
	desc, source := a.ident.ForOpen(ctx, name, address, forced)
	if !desc.Family.Known() && proto == nil {
		return nil, fmt.Errorf("%w: %s (%s)", identify.ErrUnresolved, name, address)
	}
	h, err := device.Open(name, address, desc, t, proto)
	if err != nil {
		return nil, err
	}
	if err := a.ident.Remember(ctx, name, address, desc, source); err != nil {
		log.Warning("Failed to remember %s: %s", address, err)
	}
	return h, nil
}

func (a *app) newSession(h *device.Handle, fingerprints store.FingerprintStore, consumer retrieval.Consumer) *retrieval.Session {
	opts := []retrieval.Option{
		retrieval.WithFingerprints(fingerprints),
		retrieval.WithIdentifier(a.ident),
		retrieval.WithConsumer(consumer),
	}
	if a.config.ProgressInterval > 0 {
		opts = append(opts, retrieval.WithProgressInterval(a.config.ProgressInterval))
	}
	return retrieval.New(h, opts...)
}

// printer reports session events to a writer, redrawing a progress line on terminals.
type printer struct {
	w           io.Writer
	interactive bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.interactive = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *printer) OnRecord(rec *parser.DiveRecord) {
	p.clearProgress()
	fmt.Fprintf(p.w, "dive %d: %d bytes, fingerprint %s\n", rec.Number, rec.Size, hex.EncodeToString(rec.Fingerprint))
}

func (p *printer) OnProgress(progress device.Progress) {
	if p.interactive {
		fmt.Fprintf(p.w, "\r%5.1f%% (%d/%d)", 100*progress.Fraction(), progress.Current, progress.Maximum)
	}
}

func (p *printer) OnComplete(res retrieval.Result) {
	p.clearProgress()
}

func (p *printer) clearProgress() {
	if p.interactive {
		fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", 24))
	}
}

func summarize(w io.Writer, res retrieval.Result) error {
	fmt.Fprintf(w, "%s: %d new dive(s), status %s\n", res.State, len(res.Records), res.Status)
	if res.Skipped > 0 {
		fmt.Fprintf(w, "%d dive(s) skipped: could not be identified or parsed\n", res.Skipped)
	}
	if res.Fingerprint != nil {
		fmt.Fprintf(w, "next sync starts after %s\n", hex.EncodeToString(res.Fingerprint))
	}
	switch {
	case res.Success(), res.State == retrieval.Cancelled:
		return nil
	case res.Err != nil:
		return res.Err
	}
	return fmt.Errorf("download ended in state %s (%s)", res.State, res.Status)
}

func checkReadiness(commandName string, haveDevice bool) (*Command, error) {
	info, ok := commands[commandName]
	if !ok {
		return nil, ErrUnknownCommand
	}
	if info.requiresDevice && !haveDevice {
		return nil, ErrRequiresDevice
	}
	return info, nil
}

func execute(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, err := checkReadiness(args[0], a.config.Device != "")
	if err != nil {
		return err
	}

	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args), len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, a, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

func parseModel(family, model string) (*descriptor.Descriptor, error) {
	f, err := descriptor.ParseFamily(family)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
	}
	var m uint32
	if _, err := fmt.Sscanf(model, "%d", &m); err != nil {
		return nil, fmt.Errorf("%w: invalid MODEL '%s'", ErrCommandLineArgs, model)
	}
	d, ok := descriptor.ByModel(f, m)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no model %d", ErrCommandLineArgs, f, m)
	}
	return &d, nil
}

var captureArg = Argument{name: "CAPTURE", help: "replay capture file to read instead of the dive computer"}

var commands = map[string]*Command{
	"scan": &Command{
		help:           "List nearby dive computers",
		requiresDevice: false,
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			adapter, err := a.bleAdapter()
			if err != nil {
				return err
			}
			scanCtx, cancel := context.WithTimeout(ctx, a.config.ScanTimeout)
			defer cancel()
			return ble.ScanDiveComputers(scanCtx, adapter, func(adv ble.Advertisement) {
				desc, source := a.ident.ForOpen(ctx, adv.LocalName, adv.Address, nil)
				fmt.Fprintf(a.out, "%s %-20s %-30s %s (%s)\n", adv.Address, adv.LocalName, desc.Name(), desc.Family, source)
			})
		},
	},
	"identify": &Command{
		help:           "Show how a dive computer advertised as NAME would be opened",
		requiresDevice: false,
		args: []Argument{
			Argument{name: "NAME", help: "advertised BLE name"},
		},
		optional: []Argument{
			Argument{name: "ADDRESS", help: "device address, to consult stored configurations"},
		},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			forced, err := a.config.Forced(args["ADDRESS"], args["NAME"])
			if err != nil {
				return err
			}
			desc, source := a.ident.ForOpen(ctx, args["NAME"], args["ADDRESS"], forced)
			if source == identify.SourceUnresolved {
				return fmt.Errorf("%w: %s", identify.ErrUnresolved, args["NAME"])
			}
			fmt.Fprintf(a.out, "%s: %s model %d (from %s)\n", desc.Name(), desc.Family, desc.Model, source)
			return nil
		},
	},
	"models": &Command{
		help:           "List supported dive computer models",
		requiresDevice: false,
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			for _, d := range descriptor.SupportedModels() {
				fmt.Fprintf(a.out, "%-24s %4d  %s\n", d.Family, d.Model, d.Name())
			}
			return nil
		},
	},
	"devices": &Command{
		help:           "List remembered dive computers",
		requiresDevice: false,
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			configs, err := a.stores.Configs.Devices(ctx)
			if err != nil {
				return err
			}
			for _, c := range configs {
				fmt.Fprintf(a.out, "%s %-30s %s model %d (updated %s)\n", c.UUID, c.DisplayName, c.Family, c.Model, c.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	},
	"remember": &Command{
		help:           "Pin the dive computer at ADDRESS to FAMILY and MODEL",
		requiresDevice: false,
		args: []Argument{
			Argument{name: "ADDRESS", help: "device address"},
			Argument{name: "FAMILY", help: "family name, as listed by the models command"},
			Argument{name: "MODEL", help: "model number, as listed by the models command"},
		},
		optional: []Argument{
			Argument{name: "NAME", help: "advertised BLE name"},
		},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			d, err := parseModel(args["FAMILY"], args["MODEL"])
			if err != nil {
				return err
			}
			return a.ident.Remember(ctx, args["NAME"], args["ADDRESS"], *d, identify.SourceForced)
		},
	},
	"forget": &Command{
		help:           "Forget the stored configuration of the dive computer at ADDRESS",
		requiresDevice: false,
		args: []Argument{
			Argument{name: "ADDRESS", help: "device address"},
		},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			return a.stores.Configs.ForgetDevice(ctx, args["ADDRESS"])
		},
	},
	"resync": &Command{
		help:           "Forget the last synced dive of a dive computer so the next download fetches every dive",
		requiresDevice: false,
		args: []Argument{
			Argument{name: "DEVICE_TYPE", help: "device type, as shown by the identify command"},
			Argument{name: "SERIAL", help: "serial number, as shown by the info command"},
		},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			deviceType := descriptor.DisplayName(args["DEVICE_TYPE"])
			if err := a.stores.Fingerprints.ForgetFingerprint(ctx, deviceType, args["SERIAL"]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s will be downloaded in full\n", deviceType, args["SERIAL"])
			return nil
		},
	},
	"info": &Command{
		help:           "Show the serial number, model and firmware a dive computer reports",
		requiresDevice: false,
		optional:       []Argument{captureArg},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			h, err := a.open(ctx, args["CAPTURE"])
			if err != nil {
				return err
			}
			defer h.Close()
			info, err := retrieval.FetchDeviceInfo(h)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "serial %s, model %d, firmware %d, family %s\n", info.SerialString(), info.Model, info.Firmware, info.Family)
			return nil
		},
	},
	"download": &Command{
		help:           "Download dives added since the last sync",
		requiresDevice: false,
		optional:       []Argument{captureArg},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			h, err := a.open(ctx, args["CAPTURE"])
			if err != nil {
				return err
			}
			defer h.Close()
			res, err := a.newSession(h, a.stores.Fingerprints, newPrinter(a.out)).Run(ctx)
			if err != nil {
				return err
			}
			return summarize(a.out, res)
		},
	},
	"capture": &Command{
		help:           "Download every dive from the dive computer into a replay capture FILE",
		requiresDevice: true,
		args: []Argument{
			Argument{name: "FILE", help: "capture file to write"},
		},
		handler: func(ctx context.Context, a *app, args map[string]string) error {
			h, err := a.open(ctx, "")
			if err != nil {
				return err
			}
			defer h.Close()
			// A scratch store keeps the stored fingerprint from cutting the capture short.
			res, err := a.newSession(h, store.NewMemory(), newPrinter(a.out)).Run(ctx)
			if err != nil {
				return err
			}
			if !res.Success() {
				return summarize(a.out, res)
			}
			capture := &replay.Capture{Name: h.Name(), Address: h.Address()}
			capture.Info, _ = h.Info()
			for _, rec := range res.Records {
				data, _ := rec.Content.([]byte)
				capture.Add(data, rec.Fingerprint)
			}
			if err := replay.WriteFile(args["FILE"], capture); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %d dive(s) to %s\n", len(capture.Records), args["FILE"])
			return nil
		},
	},
}
