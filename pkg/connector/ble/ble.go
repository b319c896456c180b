// Package ble connects to dive computers over Bluetooth Low Energy.
//
// Dive computers expose a serial-like GATT service: the host writes commands to one
// characteristic and the device answers with notifications on another. [Conn] presents that pair
// as a [device.Transport] that protocol drivers can read and write like a serial port.
package ble

import (
	"context"
	"io"
	"time"

	"github.com/libdcgo/divesync/pkg/protocol"
)

var (
	ErrNotConnectable = protocol.NewError("the dive computer is not accepting connections", false)
	ErrNoService      = protocol.NewError("the device does not expose a known dive computer service", false)
	ErrUnsupported    = protocol.NewStatusError(protocol.StatusUnsupported, "ble: not supported on this platform")
)

const (
	defaultMTU = 23
	maxMTU     = 512 + 3

	// BufferSize is the number of inbound notifications that can be queued.
	BufferSize = 256

	// DefaultReadTimeout bounds how long Read waits for the next notification.
	DefaultReadTimeout = 10 * time.Second
)

// Advertisement is a BLE advertisement seen during a scan.
type Advertisement struct {
	Address     string
	LocalName   string
	RSSI        int16
	Connectable bool
	// Services holds advertised service UUIDs in canonical dashed form.
	Services []string
}

// Adapter is a local Bluetooth controller.
type Adapter interface {
	// Scan reports advertisements until ctx is done.
	Scan(ctx context.Context, fn func(Advertisement)) error
	Connect(ctx context.Context, adv Advertisement) (Device, error)
	Close() error
}

// Device is a connected peripheral.
type Device interface {
	// Service returns the first of the given services the device exposes.
	Service(ctx context.Context, uuids []string) (Service, error)
	// Disconnected is closed when the link drops.
	Disconnected() <-chan struct{}
	Close() error
}

// Service is the dive computer's data service.
type Service interface {
	UUID() string
	// Rx subscribes to the characteristic the device notifies data on.
	Rx(callback func(buf []byte)) error
	// Tx returns a writer for the characteristic the host sends commands to.
	Tx() (Writer, error)
}

type Writer interface {
	io.Writer
	MTU(rxMTU int) (txMTU int, err error)
}
