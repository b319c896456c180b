package retrieval_test

import (
	"bytes"
	"sync"

	"github.com/libdcgo/divesync/pkg/device"
)

type fakeRecord struct {
	data        []byte
	fingerprint []byte
}

// fakeDevice plays back records the way a driver would.
type fakeDevice struct {
	name      string
	address   string
	connected bool
	records   []fakeRecord
	// report is published when enumeration starts.
	report *device.Info
	// deviceSideBoundary makes the fake consult the lookup hook and stop at the stored
	// fingerprint without invoking the callback.
	deviceSideBoundary bool
	before             func(i int)
	err                error
	release            chan struct{}

	mu          sync.Mutex
	info        *device.Info
	progress    *device.Progress
	fingerprint []byte
	lookup      device.LookupFunc
	calls       int
	lookups     int
}

func newFakeDevice(name string, n int) *fakeDevice {
	d := &fakeDevice{name: name, address: "AA:BB:CC:DD:EE:FF", connected: true}
	for i := 0; i < n; i++ {
		d.records = append(d.records, fakeRecord{
			data:        []byte{0xd0, byte(i + 1)},
			fingerprint: []byte{0xf0, byte(i + 1)},
		})
	}
	return d
}

func (d *fakeDevice) Name() string      { return d.name }
func (d *fakeDevice) Address() string   { return d.address }
func (d *fakeDevice) IsConnected() bool { return d.connected }

func (d *fakeDevice) Info() (device.Info, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.info == nil {
		return device.Info{}, false
	}
	return *d.info, true
}

func (d *fakeDevice) setInfo(info device.Info) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = &info
}

func (d *fakeDevice) Progress() (device.Progress, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.progress == nil {
		return device.Progress{}, false
	}
	return *d.progress, true
}

func (d *fakeDevice) SetFingerprint(fp []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fingerprint = append([]byte(nil), fp...)
}

func (d *fakeDevice) SetFingerprintLookup(fn device.LookupFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookup = fn
}

func (d *fakeDevice) hook() device.LookupFunc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookup
}

func (d *fakeDevice) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDevice) Foreach(fn device.RecordFunc) error {
	if d.report != nil {
		d.setInfo(*d.report)
	}
	var boundary []byte
	if d.deviceSideBoundary {
		if lookup := d.hook(); lookup != nil {
			if info, ok := d.Info(); ok {
				d.mu.Lock()
				d.lookups++
				d.mu.Unlock()
				boundary = lookup(d.name, info.SerialString())
			}
		}
	}
	for i, r := range d.records {
		if boundary != nil && bytes.Equal(boundary, r.fingerprint) {
			break
		}
		d.mu.Lock()
		d.progress = &device.Progress{Current: uint32(i + 1), Maximum: uint32(len(d.records))}
		d.mu.Unlock()
		if d.release != nil && i == 0 {
			<-d.release
		}
		if d.before != nil {
			d.before(i)
		}
		d.mu.Lock()
		d.calls++
		d.mu.Unlock()
		if !fn(r.data, r.fingerprint) {
			break
		}
	}
	return d.err
}
