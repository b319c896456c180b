package retrieval

import (
	"time"

	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/parser"
	"github.com/libdcgo/divesync/pkg/store"
)

// DefaultProgressInterval is how often driver progress is polled during a run.
const DefaultProgressInterval = 250 * time.Millisecond

// Option configures a Session.
type Option func(*Session)

// WithFingerprints sets where fingerprints are looked up and saved. Without one, every run is a
// full download and nothing is saved.
func WithFingerprints(fs store.FingerprintStore) Option {
	return func(s *Session) {
		s.fingerprints = fs
	}
}

// WithIdentifier sets the identifier used to resolve records and reconcile hardware reports.
func WithIdentifier(id *identify.Identifier) Option {
	return func(s *Session) {
		s.identifier = id
	}
}

// WithParser sets the record parser and the context it runs with. The session holds a reference
// to ctx for the duration of the run. A nil ctx gives the session a private context.
func WithParser(p parser.Parser, ctx *parser.Context) Option {
	return func(s *Session) {
		s.parser = p
		s.parserCtx = ctx
	}
}

func WithConsumer(c Consumer) Option {
	return func(s *Session) {
		s.consumer = c
	}
}

func WithRegistry(r *Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

func WithProgressInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

// WithMaxConsecutiveFailures fails the run after n records in a row fail to parse. Zero, the
// default, tolerates any number of failures.
func WithMaxConsecutiveFailures(n int) Option {
	return func(s *Session) {
		s.maxFailures = n
	}
}
