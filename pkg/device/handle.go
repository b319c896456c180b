package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/protocol"
)

// Handle is an open connection to one dive computer.
type Handle struct {
	name      string
	address   string
	desc      descriptor.Descriptor
	transport Transport
	proto     Protocol

	info         atomic.Pointer[Info]
	progress     atomic.Uint64
	haveProgress atomic.Bool
	closed       atomic.Bool

	lock        sync.Mutex
	fingerprint []byte
	lookup      LookupFunc
}

// Open returns a handle for the device advertised as name at address. If proto is nil, the driver
// registered for desc.Family is instantiated.
func Open(name, address string, desc descriptor.Descriptor, transport Transport, proto Protocol) (*Handle, error) {
	if transport == nil {
		return nil, protocol.NewStatusError(protocol.StatusInvalidArgs, "device: nil transport")
	}
	if proto == nil {
		driver, ok := Driver(desc.Family)
		if !ok {
			return nil, fmt.Errorf("device: %s: %w", desc.Family, protocol.ErrNoDriver)
		}
		var err error
		if proto, err = driver(transport, desc); err != nil {
			return nil, fmt.Errorf("device: failed to start %s driver: %w", desc.Family, err)
		}
	}
	log.Debug("Opened %s (%s) as %s model %d", name, address, desc.Family, desc.Model)
	return &Handle{
		name:      name,
		address:   address,
		desc:      desc,
		transport: transport,
		proto:     proto,
	}, nil
}

// Name returns the advertised name the handle was opened with.
func (h *Handle) Name() string {
	return h.name
}

// Address returns the physical address (or platform UUID) of the device.
func (h *Handle) Address() string {
	return h.address
}

// Descriptor returns the family and model the handle was opened with.
func (h *Handle) Descriptor() descriptor.Descriptor {
	return h.desc
}

func (h *Handle) IsConnected() bool {
	return !h.closed.Load() && h.transport.Connected()
}

// Info returns the hardware information reported by the driver, if any.
func (h *Handle) Info() (Info, bool) {
	if info := h.info.Load(); info != nil {
		return *info, true
	}
	return Info{}, false
}

// ReportInfo records hardware information. Only the first report is kept; it returns false for
// later reports.
func (h *Handle) ReportInfo(info Info) bool {
	if h.info.CompareAndSwap(nil, &info) {
		log.Debug("Device info: serial %s model %d firmware %d", info.SerialString(), info.Model, info.Firmware)
		return true
	}
	return false
}

// Progress returns the latest counters reported by the driver.
func (h *Handle) Progress() (Progress, bool) {
	if !h.haveProgress.Load() {
		return Progress{}, false
	}
	packed := h.progress.Load()
	return Progress{Current: uint32(packed >> 32), Maximum: uint32(packed)}, true
}

// ReportProgress publishes transfer counters. It never blocks.
func (h *Handle) ReportProgress(current, maximum uint32) {
	h.progress.Store(uint64(current)<<32 | uint64(maximum))
	h.haveProgress.Store(true)
}

// SetFingerprint sets the boundary the driver should stop at. A nil fingerprint requests a full
// download.
func (h *Handle) SetFingerprint(fp []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.fingerprint = append([]byte(nil), fp...)
	if len(fp) == 0 {
		h.fingerprint = nil
	}
}

// Fingerprint returns a copy of the boundary set with SetFingerprint.
func (h *Handle) Fingerprint() []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.fingerprint == nil {
		return nil
	}
	return append([]byte(nil), h.fingerprint...)
}

// SetFingerprintLookup installs the hook drivers use to fetch a stored fingerprint once they know
// the device serial. Passing nil removes it.
func (h *Handle) SetFingerprintLookup(fn LookupFunc) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.lookup = fn
}

// LookupFingerprint calls the installed hook. It returns nil if no hook is installed or nothing is
// stored.
func (h *Handle) LookupFingerprint(deviceType, serial string) []byte {
	h.lock.Lock()
	fn := h.lookup
	h.lock.Unlock()
	if fn == nil {
		return nil
	}
	return fn(deviceType, serial)
}

// Foreach runs the driver's enumeration. See Protocol.Foreach.
func (h *Handle) Foreach(fn RecordFunc) error {
	if !h.IsConnected() {
		return protocol.ErrNotConnected
	}
	return h.proto.Foreach(h, fn)
}

// Close shuts down the transport. Repeated calls are no-ops.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.transport.Close()
}
