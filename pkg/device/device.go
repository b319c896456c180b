/*
Package device defines the device handle that retrieval sessions drive and the contract protocol
drivers implement.

A [Handle] couples a transport (the radio link) with a [Protocol] driver, which provides the
blocking, callback-based record enumeration. Drivers publish what they learn while talking to the
device through the handle: hardware information is reported once and never retracted, and progress
counters can be read from other goroutines while an enumeration is in flight.
*/
package device

import (
	"fmt"
	"io"

	"github.com/libdcgo/divesync/pkg/descriptor"
)

// Info is the identity a device reports about itself during enumeration.
type Info struct {
	Serial   uint32
	Model    uint32
	Firmware uint32
	Family   descriptor.Family
}

// SerialString formats the serial number the way fingerprints are keyed.
func (i Info) SerialString() string {
	return fmt.Sprintf("%08x", i.Serial)
}

// Progress holds the driver's self-reported transfer counters.
type Progress struct {
	Current uint32
	Maximum uint32
}

// Fraction returns Current/Maximum, or zero if no maximum is known.
func (p Progress) Fraction() float64 {
	if p.Maximum == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Maximum)
}

// Transport is the byte stream to a device.
type Transport interface {
	io.ReadWriteCloser

	// Connected reports whether the link is still up.
	Connected() bool
}

// RecordFunc receives one raw record and its fingerprint. Returning false stops the enumeration.
// Neither slice may be retained after the call returns.
type RecordFunc func(data, fingerprint []byte) bool

// LookupFunc returns the stored fingerprint for a device type and serial, or nil. The returned
// slice belongs to the caller.
type LookupFunc func(deviceType, serial string) []byte

// Protocol is implemented by drivers that speak a vendor's download protocol.
type Protocol interface {
	// Foreach enumerates stored records, newest first, calling fn for each. It blocks until the
	// device has sent everything, fn returns false, or the transfer fails. Implementations should
	// report hardware info and progress on h as they become known.
	Foreach(h *Handle, fn RecordFunc) error
}
