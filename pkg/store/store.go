/*
Package store persists what incremental sync needs between runs: the last synced fingerprint of
each device, keyed by device type and serial number, and the (family, model) mapping learned for
each physical device address.

Several backends are available. [Memory] keeps everything in process, [SQLite] uses a database
file, [FileCache] serializes to a JSON document, and [Keyring] keeps fingerprints in the operating
system's credential store. All of them are safe for concurrent use, although retrieval sessions
never write the same device concurrently.
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/libdcgo/divesync/pkg/descriptor"
)

// ErrNotFound is returned when no fingerprint or device configuration is stored under a key.
var ErrNotFound = errors.New("store: not found")

// FingerprintStore maps (device type, serial) to the fingerprint of the newest synced record.
type FingerprintStore interface {
	Fingerprint(ctx context.Context, deviceType, serial string) ([]byte, error)
	SaveFingerprint(ctx context.Context, deviceType, serial string, fingerprint []byte) error
	// ForgetFingerprint removes the entry for (deviceType, serial), so that the next sync
	// downloads every dive. Removing a missing entry is not an error.
	ForgetFingerprint(ctx context.Context, deviceType, serial string) error
}

// ConfigStore maps physical device addresses to the family and model used to talk to them.
type ConfigStore interface {
	Device(ctx context.Context, uuid string) (DeviceConfig, error)
	SaveDevice(ctx context.Context, cfg DeviceConfig) error
	Devices(ctx context.Context) ([]DeviceConfig, error)
	ForgetDevice(ctx context.Context, uuid string) error
}

// DeviceConfig is the stored configuration for one physical device.
type DeviceConfig struct {
	UUID        string            `json:"uuid"`
	DisplayName string            `json:"display_name"`
	Family      descriptor.Family `json:"family"`
	Model       uint32            `json:"model"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Descriptor converts the stored configuration into a descriptor, filling in display metadata
// from the catalogue when the model is known.
func (c DeviceConfig) Descriptor() descriptor.Descriptor {
	if d, ok := descriptor.ByModel(c.Family, c.Model); ok {
		return d
	}
	return descriptor.Descriptor{Product: c.DisplayName, Family: c.Family, Model: c.Model}
}

// Store combines both interfaces; every backend except Keyring implements it.
type Store interface {
	FingerprintStore
	ConfigStore
	Close() error
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func fingerprintKey(deviceType, serial string) string {
	return deviceType + "/" + serial
}
