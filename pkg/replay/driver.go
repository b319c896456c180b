package replay

import (
	"bytes"
	"time"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/device"
)

// Driver serves a Capture through device.Protocol.
type Driver struct {
	Capture *Capture
	// Pace is slept before each record to imitate a slow link.
	Pace time.Duration
	// Err, if set, is returned when enumeration ends, as a failed transfer would.
	Err error
}

// NewDriver returns a driver for c.
func NewDriver(c *Capture) *Driver {
	return &Driver{Capture: c}
}

// Foreach reports the captured hardware info, then plays records newest first until the stored
// fingerprint is reached or fn asks to stop.
func (d *Driver) Foreach(h *device.Handle, fn device.RecordFunc) error {
	c := d.Capture
	if c == nil {
		c = &Capture{}
	}
	h.ReportInfo(c.Info)
	info, _ := h.Info()

	boundary := h.Fingerprint()
	if boundary == nil {
		boundary = h.LookupFingerprint(h.Name(), info.SerialString())
	}
	if boundary != nil {
		log.Debug("Replay of %s stops at fingerprint %x", h.Name(), boundary)
	}

	total := uint32(len(c.Records))
	for i, r := range c.Records {
		if boundary != nil && bytes.Equal(boundary, r.Fingerprint) {
			break
		}
		h.ReportProgress(uint32(i+1), total)
		if d.Pace > 0 {
			time.Sleep(d.Pace)
		}
		if !fn(r.Data, r.Fingerprint) {
			break
		}
	}
	return d.Err
}
