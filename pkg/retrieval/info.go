package retrieval

import (
	"errors"
	"fmt"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/protocol"
)

// ErrNoDeviceInfo is returned when the device did not report hardware info.
var ErrNoDeviceInfo = errors.New("retrieval: device info not available after enumeration")

// FetchDeviceInfo makes the driver report hardware info without downloading dives, by starting
// an enumeration that stops at the first record. It returns at once if the info is already known.
func FetchDeviceInfo(dev Device) (device.Info, error) {
	if info, ok := dev.Info(); ok {
		log.Debug("Device info already available")
		return info, nil
	}
	if !dev.IsConnected() {
		return device.Info{}, protocol.ErrNotConnected
	}

	log.Info("Fetching device info from %s", dev.Name())
	err := dev.Foreach(func(data, fingerprint []byte) bool { return false })
	// Drivers may report a protocol error when told to stop early.
	if status := protocol.StatusOf(err); status != protocol.StatusSuccess && status != protocol.StatusProtocol {
		return device.Info{}, fmt.Errorf("retrieval: failed to fetch device info: %w", err)
	}
	info, ok := dev.Info()
	if !ok {
		log.Warning("Device info not available after enumeration")
		return device.Info{}, ErrNoDeviceInfo
	}
	log.Info("Device info fetched: serial %s, model %d", info.SerialString(), info.Model)
	return info, nil
}
