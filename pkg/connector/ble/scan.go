package ble

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
)

// IsDiveComputer reports whether adv advertises a known dive computer service or a recognised
// name.
func IsDiveComputer(adv Advertisement) bool {
	for _, s := range adv.Services {
		for _, known := range descriptor.KnownServiceUUIDs() {
			if strings.EqualFold(s, known) {
				return true
			}
		}
	}
	_, ok := descriptor.FromName(adv.LocalName)
	return ok
}

// ScanDiveComputers calls fn once for every dive computer found until ctx is done. Running out
// of time is not an error.
func ScanDiveComputers(ctx context.Context, adapter Adapter, fn func(Advertisement)) error {
	var mu sync.Mutex
	seen := make(map[string]bool)
	err := adapter.Scan(ctx, func(adv Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if seen[adv.Address] || !IsDiveComputer(adv) {
			return
		}
		seen[adv.Address] = true
		log.Debug("Found %s at %s (RSSI %d)", adv.LocalName, adv.Address, adv.RSSI)
		fn(adv)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// ErrNotFound is returned by Find when the scan ends without a match.
var ErrNotFound = errors.New("ble: dive computer not found")

// Find scans until a dive computer whose address or advertised name equals target shows up.
func Find(ctx context.Context, adapter Adapter, target string) (*Advertisement, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		result *Advertisement
	)
	err := ScanDiveComputers(scanCtx, adapter, func(adv Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if result != nil {
			return
		}
		if strings.EqualFold(adv.Address, target) || strings.EqualFold(adv.LocalName, target) {
			found := adv
			result = &found
			cancel()
		}
	})
	mu.Lock()
	defer mu.Unlock()
	if result != nil {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, ErrNotFound
}
