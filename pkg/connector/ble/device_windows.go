package ble

import "github.com/go-ble/ble"

func newDevice() (ble.Device, error) {
	return nil, ErrUnsupported
}
