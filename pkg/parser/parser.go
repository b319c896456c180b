/*
Package parser defines how downloaded dive records are turned into parsed dives.

Decoding vendor formats is left to external parsers, which plug in through the [Parser] interface.
Every call receives a [Context], an explicitly owned parsing context that replaces a process-wide
singleton: the caller that creates it decides when it is released, and parsers cannot use it
afterwards.
*/
package parser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/libdcgo/divesync/pkg/descriptor"
)

var (
	// ErrClosed is returned when acquiring a Context whose last reference has been released.
	ErrClosed = errors.New("parser: context closed")
	// ErrNoContext is returned when a parser is invoked without a live Context.
	ErrNoContext = errors.New("parser: no live context")
	// ErrEmptyRecord is returned by Raw for zero-length payloads.
	ErrEmptyRecord = errors.New("parser: empty record")
)

// Context is a reference-counted parsing context. A new Context holds one reference, owned by
// its creator.
type Context struct {
	mu   sync.Mutex
	refs int
}

func NewContext() *Context {
	return &Context{refs: 1}
}

// Acquire adds a reference. It fails once the count has dropped to zero.
func (c *Context) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == 0 {
		return ErrClosed
	}
	c.refs++
	return nil
}

// Release drops a reference. Releasing a closed context is a no-op.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs > 0 {
		c.refs--
	}
}

// Refs returns the number of outstanding references.
func (c *Context) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// Live reports whether the context can still be used.
func (c *Context) Live() bool {
	return c != nil && c.Refs() > 0
}

// Request carries one raw record and the device it came from.
type Request struct {
	Family      descriptor.Family
	Model       uint32
	Number      int
	Data        []byte
	Fingerprint []byte
}

// DiveRecord is a parsed dive.
type DiveRecord struct {
	ID          uuid.UUID
	Number      int
	Size        int
	Fingerprint []byte
	Descriptor  descriptor.Descriptor
	// Content holds whatever the parser produced.
	Content any
}

// Parser converts raw records. Implementations must return ErrNoContext when ctx is not live.
type Parser interface {
	Parse(ctx *Context, req Request) (*DiveRecord, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx *Context, req Request) (*DiveRecord, error)

func (f ParserFunc) Parse(ctx *Context, req Request) (*DiveRecord, error) {
	if !ctx.Live() {
		return nil, ErrNoContext
	}
	return f(ctx, req)
}

// Raw keeps each payload verbatim as the record content.
type Raw struct{}

func (Raw) Parse(ctx *Context, req Request) (*DiveRecord, error) {
	if !ctx.Live() {
		return nil, ErrNoContext
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w (record %d)", ErrEmptyRecord, req.Number)
	}
	d, ok := descriptor.ByModel(req.Family, req.Model)
	if !ok {
		d = descriptor.Descriptor{Family: req.Family, Model: req.Model}
	}
	return &DiveRecord{
		ID:          uuid.New(),
		Number:      req.Number,
		Size:        len(req.Data),
		Fingerprint: append([]byte(nil), req.Fingerprint...),
		Descriptor:  d,
		Content:     append([]byte(nil), req.Data...),
	}, nil
}
