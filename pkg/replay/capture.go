/*
Package replay plays back dive logs captured from real devices.

A [Capture] holds the hardware info and raw records of one device, newest first. It is stored in
the protocol buffer wire format. [Driver] serves a capture through the same enumeration contract
as a vendor protocol driver, including the fingerprint boundary, so retrieval runs can be exercised
without hardware.
*/
package replay

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
)

const (
	fieldSerial   protowire.Number = 1
	fieldModel    protowire.Number = 2
	fieldFirmware protowire.Number = 3
	fieldFamily   protowire.Number = 4
	fieldRecord   protowire.Number = 5
	fieldName     protowire.Number = 6
	fieldAddress  protowire.Number = 7

	fieldRecordData        protowire.Number = 1
	fieldRecordFingerprint protowire.Number = 2
)

// ErrMalformed is returned when a capture cannot be decoded.
var ErrMalformed = errors.New("replay: malformed capture")

// Record is one raw dive as the device sent it.
type Record struct {
	Data        []byte
	Fingerprint []byte
}

// Capture is a device's dive log, newest record first.
type Capture struct {
	Name    string
	Address string
	Info    device.Info
	Records []Record
}

// Add appends a record, which becomes the oldest in the capture.
func (c *Capture) Add(data, fingerprint []byte) {
	c.Records = append(c.Records, Record{
		Data:        append([]byte(nil), data...),
		Fingerprint: append([]byte(nil), fingerprint...),
	})
}

// Marshal encodes c.
func (c *Capture) Marshal() []byte {
	var b []byte
	if c.Name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, c.Name)
	}
	if c.Address != "" {
		b = protowire.AppendTag(b, fieldAddress, protowire.BytesType)
		b = protowire.AppendString(b, c.Address)
	}
	b = protowire.AppendTag(b, fieldSerial, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Info.Serial))
	b = protowire.AppendTag(b, fieldModel, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Info.Model))
	b = protowire.AppendTag(b, fieldFirmware, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Info.Firmware))
	if c.Info.Family.Known() {
		b = protowire.AppendTag(b, fieldFamily, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Info.Family.Wire()))
	}
	for _, r := range c.Records {
		var rb []byte
		rb = protowire.AppendTag(rb, fieldRecordData, protowire.BytesType)
		rb = protowire.AppendBytes(rb, r.Data)
		rb = protowire.AppendTag(rb, fieldRecordFingerprint, protowire.BytesType)
		rb = protowire.AppendBytes(rb, r.Fingerprint)

		b = protowire.AppendTag(b, fieldRecord, protowire.BytesType)
		b = protowire.AppendBytes(b, rb)
	}
	return b
}

// Unmarshal decodes a capture produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (*Capture, error) {
	c := &Capture{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num <= fieldFamily:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %s", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldSerial:
				c.Info.Serial = uint32(v)
			case fieldModel:
				c.Info.Model = uint32(v)
			case fieldFirmware:
				c.Info.Firmware = uint32(v)
			case fieldFamily:
				family, ok := descriptor.FamilyFromWire(uint32(v))
				if !ok {
					return nil, fmt.Errorf("%w: unknown family %#x", ErrMalformed, v)
				}
				c.Info.Family = family
			}
		case typ == protowire.BytesType && (num == fieldRecord || num == fieldName || num == fieldAddress):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %s", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldName:
				c.Name = string(v)
			case fieldAddress:
				c.Address = string(v)
			case fieldRecord:
				r, err := unmarshalRecord(v)
				if err != nil {
					return nil, err
				}
				c.Records = append(c.Records, r)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %s", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return c, nil
}

func unmarshalRecord(b []byte) (Record, error) {
	var r Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: record: %s", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldRecordData && num != fieldRecordFingerprint) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: record: %s", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: record: %s", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldRecordData {
			r.Data = append([]byte(nil), v...)
		} else {
			r.Fingerprint = append([]byte(nil), v...)
		}
	}
	return r, nil
}

// ReadFile loads a capture from disk.
func ReadFile(filename string) (*Capture, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// WriteFile saves a capture to disk.
func WriteFile(filename string, c *Capture) error {
	return os.WriteFile(filename, c.Marshal(), 0644)
}
