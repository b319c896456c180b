package ble

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/protocol"
)

// Conn is a device.Transport over a dive computer's GATT data service.
type Conn struct {
	adv     Advertisement
	device  Device
	writer  Writer
	inbox   chan []byte
	timeout time.Duration

	blockLength int

	readLock sync.Mutex
	pending  []byte

	writeLock sync.Mutex
	closed    atomic.Bool
	dropped   atomic.Int64
}

var _ device.Transport = (*Conn)(nil)

// Connect opens a connection to adv, retrying with exponential backoff until ctx is done.
func Connect(ctx context.Context, adapter Adapter, adv Advertisement) (*Conn, error) {
	if !adv.Connectable {
		return nil, ErrNotConnectable
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second
	expBackoff.MaxElapsedTime = 0

	var conn *Conn
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		conn, err = tryToConnect(ctx, adapter, adv)
		if err != nil {
			log.Warning("BLE connection attempt %d to %s failed: %s", attempt, adv.Address, err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("ble: failed to connect to %s: %w", adv.Address, err)
	}
	return conn, nil
}

func tryToConnect(ctx context.Context, adapter Adapter, adv Advertisement) (*Conn, error) {
	dev, err := adapter.Connect(ctx, adv)
	if err != nil {
		return nil, err
	}

	service, err := dev.Service(ctx, descriptor.KnownServiceUUIDs())
	if err != nil {
		dev.Close()
		return nil, err
	}

	writer, err := service.Tx()
	if err != nil {
		dev.Close()
		return nil, err
	}

	txMtu, err := writer.MTU(maxMTU)
	if err != nil {
		txMtu = defaultMTU - 3 // Fallback to default MTU size
	} else {
		txMtu = txMtu - 3 // 3 bytes for ATT header
	}

	conn := newConn(adv, dev, writer, txMtu)
	if err := service.Rx(conn.rx); err != nil {
		dev.Close()
		return nil, err
	}
	log.Debug("Connected to %s via service %s, block length %d", adv.Address, service.UUID(), txMtu)
	return conn, nil
}

func newConn(adv Advertisement, dev Device, writer Writer, blockLength int) *Conn {
	if blockLength <= 0 {
		blockLength = defaultMTU - 3
	}
	return &Conn{
		adv:         adv,
		device:      dev,
		writer:      writer,
		inbox:       make(chan []byte, BufferSize),
		timeout:     DefaultReadTimeout,
		blockLength: blockLength,
	}
}

// Advertisement returns what the device advertised when it was found.
func (c *Conn) Advertisement() Advertisement {
	return c.adv
}

// SetTimeout changes how long Read waits for data.
func (c *Conn) SetTimeout(d time.Duration) {
	c.readLock.Lock()
	defer c.readLock.Unlock()
	c.timeout = d
}

func (c *Conn) rx(p []byte) {
	buf := append([]byte(nil), p...)
	log.Debug("RX: %02x", buf)
	select {
	case c.inbox <- buf:
	default:
		c.dropped.Add(1)
		log.Warning("ble: inbound queue full, dropped %d bytes", len(buf))
	}
}

// Read returns buffered notification data, waiting up to the read timeout for more.
func (c *Conn) Read(p []byte) (int, error) {
	c.readLock.Lock()
	defer c.readLock.Unlock()

	if len(c.pending) == 0 {
		if c.closed.Load() {
			return 0, io.ErrClosedPipe
		}
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		select {
		case buf := <-c.inbox:
			c.pending = buf
		case <-c.device.Disconnected():
			return 0, protocol.NewStatusError(protocol.StatusIO, "ble: device disconnected")
		case <-timer.C:
			return 0, protocol.NewStatusError(protocol.StatusTimeout, "ble: read")
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends p in MTU-sized blocks.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if !c.Connected() {
		return 0, protocol.ErrNotConnected
	}
	log.Debug("TX: %02x", p)
	written := 0
	for written < len(p) {
		blockLength := min(c.blockLength, len(p)-written)
		n, err := c.writer.Write(p[written : written+blockLength])
		if err != nil {
			return written, err
		} else if n != blockLength {
			return written, fmt.Errorf("ble: failed to write %d bytes", blockLength)
		}
		written += blockLength
	}
	return written, nil
}

func (c *Conn) Connected() bool {
	if c.closed.Load() {
		return false
	}
	select {
	case <-c.device.Disconnected():
		return false
	default:
		return true
	}
}

// Close disconnects. Repeated calls are no-ops.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.device.Close(); err != nil {
		log.Warning("ble: failed to close device: %s", err)
		return err
	}
	return nil
}
