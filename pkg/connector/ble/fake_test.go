package ble_test

import (
	"context"
	"errors"
	"sync"

	"github.com/libdcgo/divesync/pkg/connector/ble"
)

type fakeAdapter struct {
	mu       sync.Mutex
	adverts  []ble.Advertisement
	hold     bool
	scanErr  error
	failures int
	dials    int
	device   *fakeDevice
}

func (a *fakeAdapter) Scan(ctx context.Context, fn func(ble.Advertisement)) error {
	for _, adv := range a.adverts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(adv)
	}
	if a.scanErr != nil {
		return a.scanErr
	}
	if a.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (a *fakeAdapter) Connect(ctx context.Context, adv ble.Advertisement) (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dials++
	if a.dials <= a.failures {
		return nil, errors.New("connection refused")
	}
	return a.device, nil
}

func (a *fakeAdapter) Close() error { return nil }

func (a *fakeAdapter) Dials() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dials
}

type fakeDevice struct {
	service      *fakeService
	serviceErr   error
	disconnected chan struct{}
	closes       int
	requested    []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		service:      &fakeService{writer: &fakeWriter{mtu: 23}},
		disconnected: make(chan struct{}),
	}
}

func (d *fakeDevice) Service(ctx context.Context, uuids []string) (ble.Service, error) {
	d.requested = uuids
	if d.serviceErr != nil {
		return nil, d.serviceErr
	}
	return d.service, nil
}

func (d *fakeDevice) Disconnected() <-chan struct{} { return d.disconnected }

func (d *fakeDevice) Close() error {
	d.closes++
	return nil
}

type fakeService struct {
	writer   *fakeWriter
	callback func([]byte)
}

func (s *fakeService) UUID() string { return "fe25c237-0ece-443c-b0aa-e02033e7029d" }

func (s *fakeService) Rx(callback func([]byte)) error {
	s.callback = callback
	return nil
}

func (s *fakeService) Tx() (ble.Writer, error) { return s.writer, nil }

type fakeWriter struct {
	mtu    int
	mtuErr error
	writes [][]byte
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (w *fakeWriter) MTU(rxMTU int) (int, error) {
	if w.mtuErr != nil {
		return 0, w.mtuErr
	}
	return min(w.mtu, rxMTU), nil
}
