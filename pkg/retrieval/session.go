package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/parser"
	"github.com/libdcgo/divesync/pkg/protocol"
	"github.com/libdcgo/divesync/pkg/store"
)

var (
	// ErrAlreadyStarted is returned by Start on a session that has already run.
	ErrAlreadyStarted = errors.New("retrieval: session already started")
	// ErrTooManyFailures fails a run that exceeded WithMaxConsecutiveFailures.
	ErrTooManyFailures = errors.New("retrieval: too many consecutive parse failures")
)

// Session runs one download against a device. A Session is single-use.
type Session struct {
	dev          Device
	fingerprints store.FingerprintStore
	identifier   *identify.Identifier
	parser       parser.Parser
	parserCtx    *parser.Context
	consumer     Consumer
	registry     *Registry
	interval     time.Duration
	maxFailures  int

	cancelled atomic.Bool

	mu     sync.Mutex
	state  State
	result Result
	done   chan struct{}
}

// New returns an idle session for dev.
func New(dev Device, opts ...Option) *Session {
	s := &Session{
		dev:      dev,
		parser:   parser.Raw{},
		consumer: discard{},
		registry: defaultRegistry,
		interval: DefaultProgressInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identifier == nil {
		s.identifier = identify.New(nil)
	}
	if s.consumer == nil {
		s.consumer = discard{}
	}
	if s.registry == nil {
		s.registry = defaultRegistry
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Cancel asks the run to stop. It takes effect at the next record; I/O already in flight
// completes first.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Run starts the session and waits for it to finish.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if err := s.Start(ctx); err != nil {
		return Result{}, err
	}
	return s.Wait(), nil
}

// Wait blocks until the run has finished and the consumer has received every notification.
func (s *Session) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed when Wait would return.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start begins the run and returns immediately. Failures to start the run are reported through
// the Result, like every other outcome. Cancelling ctx cancels the run.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Starting
	s.mu.Unlock()

	runID := uuid.New()
	notify := newNotifier()
	fail := func(err error) error {
		log.Error("Run %s failed to start: %s", runID, err)
		s.complete(notify, Result{RunID: runID, State: Failed, Status: protocol.StatusOf(err), Err: err})
		return nil
	}

	if !s.dev.IsConnected() {
		return fail(protocol.ErrNotConnected)
	}

	parserCtx := s.parserCtx
	if parserCtx == nil {
		parserCtx = parser.NewContext()
	} else if err := parserCtx.Acquire(); err != nil {
		return fail(protocol.NewStatusError(protocol.StatusInvalidArgs, err.Error()))
	}

	ec := &enumContext{
		session:    s,
		ctx:        ctx,
		runID:      runID,
		notify:     notify,
		parserCtx:  parserCtx,
		name:       s.dev.Name(),
		address:    s.dev.Address(),
		deviceType: descriptor.DisplayName(s.dev.Name()),
	}
	if info, ok := s.dev.Info(); ok {
		ec.serial = info.SerialString()
		ec.stored = s.lookupFingerprint(ctx, ec.deviceType, ec.serial)
	}

	handle, token, err := s.registry.register(ec)
	if err != nil {
		parserCtx.Release()
		return fail(err)
	}

	s.dev.SetFingerprint(ec.stored)
	s.dev.SetFingerprintLookup(ec.lookup)
	s.setState(Enumerating)
	log.Info("Run %s: downloading from %s (%s)", runID, ec.deviceType, ec.address)

	stopPoll := make(chan struct{})
	var pollers sync.WaitGroup
	pollers.Add(2)
	go func() {
		defer pollers.Done()
		s.pollProgress(notify, stopPoll)
	}()
	go func() {
		defer pollers.Done()
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-stopPoll:
		}
	}()

	go func() {
		err := s.dev.Foreach(func(data, fingerprint []byte) bool {
			ec, ok := s.registry.lookup(handle)
			if !ok {
				return false
			}
			return ec.onRecord(data, fingerprint)
		})
		close(stopPoll)
		pollers.Wait()
		s.finish(ec, token, err)
	}()
	return nil
}

func (s *Session) lookupFingerprint(ctx context.Context, deviceType, serial string) []byte {
	if s.fingerprints == nil || serial == "" {
		return nil
	}
	fp, err := s.fingerprints.Fingerprint(ctx, deviceType, serial)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warning("Could not load fingerprint for %s %s: %s", deviceType, serial, err)
		}
		return nil
	}
	if len(fp) == 0 {
		return nil
	}
	log.Debug("Found stored fingerprint for %s %s", deviceType, serial)
	return fp
}

func (s *Session) pollProgress(notify *notifier, stop <-chan struct{}) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last device.Progress
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p, ok := s.dev.Progress()
			if !ok || p == last {
				continue
			}
			last = p
			notify.push(func() { s.consumer.OnProgress(p) })
		}
	}
}

func (s *Session) finish(ec *enumContext, token *releaseToken, err error) {
	if relErr := token.release(); relErr != nil {
		log.Error("Run %s: %s", ec.runID, relErr)
	}
	s.dev.SetFingerprintLookup(nil)
	ec.parserCtx.Release()

	res := Result{RunID: ec.runID, Records: ec.records, Skipped: ec.skipped, Serial: ec.currentSerial()}
	switch {
	case ec.cancelStop:
		res.State = Cancelled
		res.Status = protocol.StatusCancelled
	case ec.aborted:
		res.State = Failed
		res.Status = protocol.StatusDataFormat
		res.Err = ErrTooManyFailures
	case err != nil:
		res.State = Failed
		res.Status = protocol.StatusOf(err)
		res.Err = fmt.Errorf("retrieval: download incomplete: %w", err)
		log.Error("Run %s: enumeration returned %s after %d records: %s",
			ec.runID, res.Status, len(ec.records), err)
	case ec.newData:
		res.State = Completed
		res.Status = protocol.StatusSuccess
		res.Fingerprint = s.saveFingerprint(ec)
	case ec.matched || ec.storedFingerprint() != nil:
		res.State = NoNewData
		res.Status = protocol.StatusSuccess
	default:
		res.State = Completed
		res.Status = protocol.StatusSuccess
	}
	log.Info("Run %s: %s with %d new dives", ec.runID, res.State, len(res.Records))
	if res.Skipped > 0 {
		log.Warning("Run %s: skipped %d dives that could not be identified or parsed", ec.runID, res.Skipped)
	}
	s.complete(ec.notify, res)
}

func (s *Session) saveFingerprint(ec *enumContext) []byte {
	serial := ec.currentSerial()
	if s.fingerprints == nil || len(ec.candidate) == 0 || serial == "" {
		return nil
	}
	if err := s.fingerprints.SaveFingerprint(context.WithoutCancel(ec.ctx), ec.deviceType, serial, ec.candidate); err != nil {
		log.Error("Could not save fingerprint for %s %s: %s", ec.deviceType, serial, err)
		return nil
	}
	return ec.candidate
}

func (s *Session) complete(notify *notifier, res Result) {
	s.mu.Lock()
	s.state = res.State
	s.result = res
	s.mu.Unlock()

	notify.push(func() { s.consumer.OnComplete(res) })
	notify.close()
	go func() {
		<-notify.done
		close(s.done)
	}()
}

// enumContext is the per-run state the record callback works on.
type enumContext struct {
	session   *Session
	ctx       context.Context
	runID     uuid.UUID
	notify    *notifier
	parserCtx *parser.Context

	name       string
	address    string
	deviceType string

	// serial and stored can also be set by the driver through the lookup hook.
	mu     sync.Mutex
	serial string
	stored []byte

	calls      int
	cancelStop bool
	haveInfo   bool
	info       device.Info
	candidate  []byte
	matched    bool
	newData    bool
	resolved   bool
	desc       descriptor.Descriptor
	failures   int
	skipped    int
	aborted    bool
	records    []*parser.DiveRecord
}

func (ec *enumContext) currentSerial() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.serial
}

func (ec *enumContext) storedFingerprint() []byte {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.stored
}

// lookup is installed on the device so the driver can fetch the stored fingerprint once it knows
// the serial. Each call returns a fresh copy.
func (ec *enumContext) lookup(deviceType, serial string) []byte {
	key := descriptor.DisplayName(deviceType)
	fp := ec.session.lookupFingerprint(ec.ctx, key, serial)
	if fp == nil {
		return nil
	}
	ec.mu.Lock()
	if ec.serial == "" {
		ec.serial = serial
	}
	if ec.stored == nil {
		ec.stored = append([]byte(nil), fp...)
	}
	ec.mu.Unlock()
	return append([]byte(nil), fp...)
}

func (ec *enumContext) cancelled() bool {
	return ec.session.cancelled.Load() || ec.ctx.Err() != nil
}

func (ec *enumContext) onRecord(data, fingerprint []byte) bool {
	s := ec.session
	ec.calls++
	if ec.cancelled() {
		log.Info("Run %s: download cancelled", ec.runID)
		ec.cancelStop = true
		return false
	}

	if ec.calls == 1 {
		ec.captureInfo()
		ec.candidate = append([]byte(nil), fingerprint...)
	}

	if stored := ec.storedFingerprint(); stored != nil && bytes.Equal(stored, fingerprint) {
		log.Info("Run %s: found matching fingerprint, download complete", ec.runID)
		ec.matched = true
		return false
	}

	desc, ok := ec.resolve()
	if !ok {
		ec.skipped++
		return true
	}

	number := len(ec.records) + 1
	rec, err := s.parser.Parse(ec.parserCtx, parser.Request{
		Family:      desc.Family,
		Model:       desc.Model,
		Number:      number,
		Data:        data,
		Fingerprint: fingerprint,
	})
	if err == nil && rec == nil {
		err = errors.New("parser returned no record")
	}
	if err != nil {
		ec.failures++
		ec.skipped++
		log.Warning("Run %s: failed to parse dive #%d: %s", ec.runID, number, err)
		if s.maxFailures > 0 && ec.failures >= s.maxFailures {
			ec.aborted = true
			return false
		}
		return true
	}
	ec.failures = 0
	rec.Number = number
	if rec.Fingerprint == nil {
		rec.Fingerprint = append([]byte(nil), fingerprint...)
	}
	ec.records = append(ec.records, rec)
	ec.newData = true
	ec.notify.push(func() { s.consumer.OnRecord(rec) })
	return true
}

func (ec *enumContext) captureInfo() {
	info, ok := ec.session.dev.Info()
	if !ok {
		return
	}
	ec.haveInfo = true
	ec.info = info
	serial := info.SerialString()
	log.Info("Run %s: detected hardware family %s model %d serial %s", ec.runID, info.Family, info.Model, serial)

	ec.mu.Lock()
	ec.serial = serial
	needLookup := ec.stored == nil
	ec.mu.Unlock()
	if needLookup {
		if fp := ec.session.lookupFingerprint(ec.ctx, ec.deviceType, serial); fp != nil {
			ec.mu.Lock()
			ec.stored = fp
			ec.mu.Unlock()
		}
	}

	if err := ec.session.identifier.Reconcile(ec.ctx, ec.address, ec.name, info); err != nil {
		log.Warning("Run %s: could not update stored configuration: %s", ec.runID, err)
	}
}

func (ec *enumContext) resolve() (descriptor.Descriptor, bool) {
	if ec.resolved {
		return ec.desc, true
	}
	desc, source, err := ec.session.identifier.Resolve(ec.ctx, identify.Evidence{
		Name:     ec.name,
		Address:  ec.address,
		Info:     ec.info,
		HaveInfo: ec.haveInfo,
	})
	if err != nil {
		log.Warning("Run %s: unknown device configuration for '%s': %s", ec.runID, ec.name, err)
		return descriptor.Descriptor{}, false
	}
	log.Debug("Run %s: parsing as %s (from %s)", ec.runID, desc.Name(), source)
	ec.desc = desc
	ec.resolved = true
	return desc, true
}
