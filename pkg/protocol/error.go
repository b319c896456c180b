package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// Temporary returns true if the Error might be the result of a transient condition, such as a
	// device that went out of range while transmitting. A new retrieval run may succeed.
	Temporary() bool
}

var (
	// ErrNotConnected indicates the device handle has no live transport.
	ErrNotConnected = &StatusError{Status: StatusIO, Op: "device not connected"}
	// ErrBusy indicates a retrieval is already running against the same device.
	ErrBusy = NewError("a retrieval is already in progress for this device", true)
	// ErrNoDriver indicates no protocol driver is registered for a device family.
	ErrNoDriver = &StatusError{Status: StatusUnsupported, Op: "no protocol driver"}
)

type CommandError struct {
	Err               error
	PossibleTemporary bool
}

func NewError(message string, temporary bool) error {
	return &CommandError{Err: errors.New(message), PossibleTemporary: temporary}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Temporary() bool {
	return e.PossibleTemporary
}

// StatusError carries a driver status code. Op optionally names the failed operation.
type StatusError struct {
	Status Status
	Op     string
}

// NewStatusError returns an error for status s, or nil if s is StatusSuccess.
func NewStatusError(s Status, op string) error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s, Op: op}
}

func (e *StatusError) Error() string {
	if e.Op == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// Is matches any StatusError with the same status, so errors.Is(err, StatusTimeout.Err()) works
// regardless of Op.
func (e *StatusError) Is(target error) bool {
	var other *StatusError
	if errors.As(target, &other) {
		return other.Status == e.Status
	}
	return false
}

func (e *StatusError) Temporary() bool {
	return e.Status == StatusTimeout || e.Status == StatusIO
}

// StatusOf extracts the status code carried by err. A nil error is StatusSuccess and errors that
// carry no status are reported as StatusIO.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return StatusIO
}

// Temporary returns true if err indicates a failure caused by possibly transient conditions that do
// not require user action to resolve.
func Temporary(err error) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Temporary()
	}
	return false
}
