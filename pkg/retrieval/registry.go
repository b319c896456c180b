package retrieval

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libdcgo/divesync/pkg/protocol"
)

// ErrAlreadyReleased is returned when a release token is used twice.
var ErrAlreadyReleased = errors.New("retrieval: enumeration context already released")

// Handle is an opaque reference to a live enumeration context. The enumeration callback holds
// only the handle and looks the context up on every invocation.
type Handle uint64

// Registry owns the enumeration contexts of in-flight runs. It admits at most one run per device
// address.
type Registry struct {
	mu       sync.Mutex
	next     Handle
	live     map[Handle]*enumContext
	busy     map[string]Handle
	releases atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{
		live: make(map[Handle]*enumContext),
		busy: make(map[string]Handle),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is shared by sessions created without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// releaseToken must be consumed exactly once to free a registered context.
type releaseToken struct {
	reg    *Registry
	handle Handle
	used   atomic.Bool
}

func (t *releaseToken) release() error {
	if !t.used.CompareAndSwap(false, true) {
		return ErrAlreadyReleased
	}
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	ec, ok := t.reg.live[t.handle]
	if !ok {
		return ErrAlreadyReleased
	}
	delete(t.reg.live, t.handle)
	if ec.address != "" && t.reg.busy[ec.address] == t.handle {
		delete(t.reg.busy, ec.address)
	}
	t.reg.releases.Add(1)
	return nil
}

func (r *Registry) register(ec *enumContext) (Handle, *releaseToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ec.address != "" {
		if _, ok := r.busy[ec.address]; ok {
			return 0, nil, fmt.Errorf("retrieval: %s: %w", ec.address, protocol.ErrBusy)
		}
	}
	r.next++
	h := r.next
	r.live[h] = ec
	if ec.address != "" {
		r.busy[ec.address] = h
	}
	return h, &releaseToken{reg: r, handle: h}, nil
}

func (r *Registry) lookup(h Handle) (*enumContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ec, ok := r.live[h]
	return ec, ok
}

// Live returns the number of registered contexts.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Releases returns how many contexts have been released.
func (r *Registry) Releases() int {
	return int(r.releases.Load())
}

// Busy reports whether a run is in flight for address.
func (r *Registry) Busy(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.busy[address]
	return ok
}
