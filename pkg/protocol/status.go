package protocol

import "fmt"

// Status is the result code reported by device drivers.
type Status int

const (
	StatusSuccess Status = iota
	StatusUnsupported
	StatusInvalidArgs
	StatusNoMemory
	StatusNoDevice
	StatusNoAccess
	StatusIO
	StatusTimeout
	StatusProtocol
	StatusDataFormat
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusSuccess:     "SUCCESS",
	StatusUnsupported: "UNSUPPORTED",
	StatusInvalidArgs: "INVALIDARGS",
	StatusNoMemory:    "NOMEMORY",
	StatusNoDevice:    "NODEVICE",
	StatusNoAccess:    "NOACCESS",
	StatusIO:          "IO",
	StatusTimeout:     "TIMEOUT",
	StatusProtocol:    "PROTOCOL",
	StatusDataFormat:  "DATAFORMAT",
	StatusCancelled:   "CANCELLED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return "DC_STATUS_" + name
	}
	return fmt.Sprintf("DC_STATUS_UNKNOWN(%d)", int(s))
}

// Err converts s into an error, returning nil for StatusSuccess.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s}
}
