package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	lock         sync.Mutex
	devices      map[string]DeviceConfig
	fingerprints map[string][]byte
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		devices:      make(map[string]DeviceConfig),
		fingerprints: make(map[string][]byte),
		now:          time.Now,
	}
}

func (m *Memory) Fingerprint(_ context.Context, deviceType, serial string) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	fp, ok := m.fingerprints[fingerprintKey(deviceType, serial)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(fp), nil
}

func (m *Memory) SaveFingerprint(_ context.Context, deviceType, serial string, fingerprint []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fingerprints[fingerprintKey(deviceType, serial)] = copyBytes(fingerprint)
	return nil
}

func (m *Memory) ForgetFingerprint(_ context.Context, deviceType, serial string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.fingerprints, fingerprintKey(deviceType, serial))
	return nil
}

func (m *Memory) Device(_ context.Context, uuid string) (DeviceConfig, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	cfg, ok := m.devices[uuid]
	if !ok {
		return DeviceConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *Memory) SaveDevice(_ context.Context, cfg DeviceConfig) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	cfg.UpdatedAt = m.now()
	m.devices[cfg.UUID] = cfg
	return nil
}

func (m *Memory) Devices(_ context.Context) ([]DeviceConfig, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]DeviceConfig, 0, len(m.devices))
	for _, cfg := range m.devices {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (m *Memory) ForgetDevice(_ context.Context, uuid string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.devices, uuid)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
