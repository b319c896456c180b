package device

import (
	"sync"

	"github.com/libdcgo/divesync/pkg/descriptor"
)

// DriverFunc creates a Protocol for one open transport.
type DriverFunc func(t Transport, desc descriptor.Descriptor) (Protocol, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[descriptor.Family]DriverFunc)
)

// Register makes a protocol driver available for a family. It panics if fn is nil or a driver is
// already registered for the family.
func Register(family descriptor.Family, fn DriverFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if fn == nil {
		panic("device: Register driver is nil")
	}
	if _, dup := drivers[family]; dup {
		panic("device: Register called twice for family " + family.String())
	}
	drivers[family] = fn
}

// Driver returns the driver registered for family.
func Driver(family descriptor.Family) (DriverFunc, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	fn, ok := drivers[family]
	return fn, ok
}

// Families lists the families with a registered driver.
func Families() []descriptor.Family {
	driversMu.RLock()
	defer driversMu.RUnlock()
	var out []descriptor.Family
	for _, f := range descriptor.Families() {
		if _, ok := drivers[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func unregisterAll() {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers = make(map[descriptor.Family]DriverFunc)
}
