/*
Package retrieval downloads dive logs incrementally.

A [Session] runs one enumeration against an open device. It drives the driver's blocking
enumeration on a worker goroutine, identifies the device as hardware information arrives, parses
each record and delivers it to a [Consumer], and stops at the first record whose fingerprint was
stored by a previous run. When the run finds new dives, the fingerprint of the newest one is saved
for the next sync.

Sessions report a single [Result]. Runs that stopped at the sync boundary without new dives end in
[NoNewData], which is a success just like [Completed].
*/
package retrieval

import (
	"sync"

	"github.com/google/uuid"

	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/parser"
	"github.com/libdcgo/divesync/pkg/protocol"
)

// Device is what a session needs from an open device. *device.Handle implements it.
type Device interface {
	Name() string
	Address() string
	IsConnected() bool
	Info() (device.Info, bool)
	Progress() (device.Progress, bool)
	SetFingerprint(fp []byte)
	SetFingerprintLookup(fn device.LookupFunc)
	Foreach(fn device.RecordFunc) error
}

var _ Device = (*device.Handle)(nil)

// State of a session.
type State int

const (
	Idle State = iota
	Starting
	Enumerating
	Completed
	NoNewData
	Cancelled
	Failed
)

var stateNames = []string{"idle", "starting", "enumerating", "completed", "no new data", "cancelled", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s >= Completed
}

// Result describes a finished run.
type Result struct {
	RunID  uuid.UUID
	State  State
	Status protocol.Status
	// Records holds the delivered dives in device order.
	Records []*parser.DiveRecord
	// Skipped counts dives dropped because they could not be identified or parsed.
	Skipped int
	// Serial is the device serial, when the device reported one.
	Serial string
	// Fingerprint is the fingerprint saved for the next run, or nil if nothing was saved.
	Fingerprint []byte
	Err         error
}

// Success reports whether the run ended in Completed or NoNewData.
func (r Result) Success() bool {
	return r.State == Completed || r.State == NoNewData
}

// Consumer receives what a session produces. Calls are made from a single goroutine, in order,
// and never from the goroutine that talks to the device.
type Consumer interface {
	OnRecord(rec *parser.DiveRecord)
	OnProgress(p device.Progress)
	OnComplete(res Result)
}

// Collector is a Consumer that keeps everything it receives.
type Collector struct {
	mu       sync.Mutex
	records  []*parser.DiveRecord
	progress []device.Progress
	result   *Result
}

func (c *Collector) OnRecord(rec *parser.DiveRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *Collector) OnProgress(p device.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = append(c.progress, p)
}

func (c *Collector) OnComplete(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &res
}

func (c *Collector) Records() []*parser.DiveRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*parser.DiveRecord(nil), c.records...)
}

func (c *Collector) Progress() []device.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.Progress(nil), c.progress...)
}

// Result returns the completion report, if one was delivered.
func (c *Collector) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

type discard struct{}

func (discard) OnRecord(*parser.DiveRecord) {}
func (discard) OnProgress(device.Progress)  {}
func (discard) OnComplete(Result)           {}
