package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"

	"github.com/libdcgo/divesync/internal/log"
)

var (
	sharedDevice ble.Device
	sharedMu     sync.Mutex
)

// NewAdapter returns an Adapter backed by the host's Bluetooth controller. The controller is
// shared by every Adapter in the process.
func NewAdapter() (Adapter, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	// Multiple calls to newDevice() on Linux lead to failures, so the device is reused.
	if sharedDevice != nil {
		log.Debug("Reusing existing BLE device")
	} else {
		log.Debug("Creating new BLE adapter")
		device, err := newDevice()
		if err != nil {
			return nil, fmt.Errorf("ble: failed to enable device: %w", err)
		}
		sharedDevice = device
	}
	return &gobleAdapter{device: sharedDevice}, nil
}

type gobleAdapter struct {
	device ble.Device
}

func (a *gobleAdapter) Scan(ctx context.Context, fn func(Advertisement)) error {
	return a.device.Scan(ctx, false, func(adv ble.Advertisement) {
		fn(toAdvertisement(adv))
	})
}

func (a *gobleAdapter) Connect(ctx context.Context, adv Advertisement) (Device, error) {
	log.Debug("Dialing %s (%s)...", adv.Address, adv.LocalName)
	client, err := a.device.Dial(ctx, ble.NewAddr(adv.Address))
	if err != nil {
		return nil, fmt.Errorf("ble: failed to dial %s: %w", adv.Address, err)
	}
	return &gobleDevice{client: client}, nil
}

// Close releases the shared controller so the next NewAdapter creates a fresh one. Open
// connections are not closed.
func (a *gobleAdapter) Close() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedDevice == nil || sharedDevice != a.device {
		return nil
	}
	err := sharedDevice.Stop()
	sharedDevice = nil
	if err != nil {
		return fmt.Errorf("ble: failed to stop device: %w", err)
	}
	log.Debug("Closed BLE adapter")
	return nil
}

func toAdvertisement(a ble.Advertisement) Advertisement {
	adv := Advertisement{
		Address:     a.Addr().String(),
		LocalName:   a.LocalName(),
		RSSI:        int16(a.RSSI()),
		Connectable: a.Connectable(),
	}
	for _, u := range a.Services() {
		adv.Services = append(adv.Services, canonicalUUID(u))
	}
	return adv
}

// canonicalUUID renders u as a lowercase dashed 128-bit UUID, expanding 16 and 32-bit UUIDs
// against the Bluetooth base UUID.
func canonicalUUID(u ble.UUID) string {
	s := strings.ToLower(u.String())
	switch len(s) {
	case 4:
		s = "0000" + s + "00001000800000805f9b34fb"
	case 8:
		s = s + "00001000800000805f9b34fb"
	case 32:
	default:
		return s
	}
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}

type gobleDevice struct {
	client ble.Client
}

func (d *gobleDevice) Service(ctx context.Context, uuids []string) (Service, error) {
	filter := make([]ble.UUID, 0, len(uuids))
	for _, u := range uuids {
		parsed, err := ble.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("ble: invalid service UUID %q: %w", u, err)
		}
		filter = append(filter, parsed)
	}

	log.Debug("Discovering services %s...", d.client.Addr())
	services, err := d.client.DiscoverServices(filter)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enumerate device services: %w", err)
	}
	for _, service := range services {
		if !ble.Contains(filter, service.UUID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return d.characteristics(service)
	}
	return nil, ErrNoService
}

func (d *gobleDevice) characteristics(service *ble.Service) (Service, error) {
	characteristics, err := d.client.DiscoverCharacteristics(nil, service)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to discover service characteristics: %w", err)
	}

	s := &gobleService{client: d.client, service: service}
	for _, c := range characteristics {
		if s.rx == nil && c.Property&(ble.CharNotify|ble.CharIndicate) != 0 {
			s.rx = c
		}
		if s.tx == nil && c.Property&(ble.CharWrite|ble.CharWriteNR) != 0 {
			s.tx = c
		}
		if _, err := d.client.DiscoverDescriptors(nil, c); err != nil {
			return nil, fmt.Errorf("ble: couldn't fetch descriptors: %w", err)
		}
	}
	if s.rx == nil || s.tx == nil {
		return nil, fmt.Errorf("ble: service %s lacks data characteristics: %w", canonicalUUID(service.UUID), ErrNoService)
	}
	return s, nil
}

func (d *gobleDevice) Disconnected() <-chan struct{} {
	return d.client.Disconnected()
}

func (d *gobleDevice) Close() error {
	return errors.Join(d.client.ClearSubscriptions(), d.client.CancelConnection())
}

type gobleService struct {
	client  ble.Client
	service *ble.Service
	rx, tx  *ble.Characteristic
}

func (s *gobleService) UUID() string {
	return canonicalUUID(s.service.UUID)
}

func (s *gobleService) Rx(callback func(buf []byte)) error {
	indicate := s.rx.Property&ble.CharNotify == 0
	if err := s.client.Subscribe(s.rx, indicate, callback); err != nil {
		return fmt.Errorf("ble: failed to subscribe to RX: %w", err)
	}
	return nil
}

func (s *gobleService) Tx() (Writer, error) {
	return &gobleWriter{
		client:         s.client,
		characteristic: s.tx,
		noRsp:          s.tx.Property&ble.CharWrite == 0,
	}, nil
}

type gobleWriter struct {
	client         ble.Client
	characteristic *ble.Characteristic
	noRsp          bool
}

func (w *gobleWriter) Write(p []byte) (int, error) {
	if err := w.client.WriteCharacteristic(w.characteristic, p, w.noRsp); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *gobleWriter) MTU(rxMTU int) (int, error) {
	return w.client.ExchangeMTU(rxMTU)
}
