package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/connector/ble"
	"github.com/libdcgo/divesync/pkg/descriptor"
)

var (
	showAll = flag.Bool("all", false, "Also log advertisements that are not dive computers")
	quiet   = flag.Bool("quiet", false, "Only log dive computers, without debug output")
)

func main() {
	flag.Parse()
	if *quiet {
		log.SetLevel(log.LevelInfo)
	} else {
		log.SetLevel(log.LevelDebug)
	}

	adapter, err := ble.NewAdapter()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			log.Error("Failed to initialize BLE device: %v (try granting CAP_NET_ADMIN)", err)
		} else {
			log.Error("Failed to initialize BLE device: %v", err)
		}
		os.Exit(1)
	}
	defer adapter.Close()
	log.Info("BLE adapter initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doneChan := make(chan struct{})
	go func() {
		defer close(doneChan)
		var err error
		if *showAll {
			err = adapter.Scan(ctx, func(adv ble.Advertisement) {
				log.Info("%s %q RSSI %d connectable %v services %v dive computer %v",
					adv.Address, adv.LocalName, adv.RSSI, adv.Connectable, adv.Services, ble.IsDiveComputer(adv))
			})
		} else {
			err = ble.ScanDiveComputers(ctx, adapter, func(adv ble.Advertisement) {
				if d, ok := descriptor.FromName(adv.LocalName); ok {
					log.Info("%s %q is a %s (%s model %d)", adv.Address, adv.LocalName, d.Name(), d.Family, d.Model)
				} else {
					log.Info("%s %q advertises a dive computer service but its model is unknown", adv.Address, adv.LocalName)
				}
			})
		}
		if err != nil && ctx.Err() == nil {
			log.Error("Scan failed: %v", err)
		}
	}()
	log.Info("Scanning for dive computers until interrupted")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	select {
	case <-signalChan:
		log.Info("Stopping scan")
	case <-doneChan:
	}
	cancel()
	<-doneChan
}
