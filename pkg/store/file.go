package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"
)

// FingerprintEntry is one synced device in a FileCache.
type FingerprintEntry struct {
	DeviceType  string    `json:"device_type"`
	Serial      string    `json:"serial"`
	Fingerprint []byte    `json:"fingerprint"`
	SyncedAt    time.Time `json:"synced_at"`
}

// FileCache is a Store serialized as a JSON document.
type FileCache struct {
	MaxEntries    int                         `json:"-"`
	DeviceConfigs map[string]DeviceConfig     `json:"devices"`
	Fingerprints  map[string]FingerprintEntry `json:"fingerprints"`

	lock sync.Mutex
	path string
	now  func() time.Time
}

// NewFileCache returns a FileCache that holds fingerprints for up to maxEntries devices. When the
// limit is exceeded, the entry that was synced least recently is evicted.
//
// Set maxEntries to zero for an unbounded cache.
func NewFileCache(maxEntries int) *FileCache {
	return &FileCache{
		MaxEntries:    maxEntries,
		DeviceConfigs: make(map[string]DeviceConfig),
		Fingerprints:  make(map[string]FingerprintEntry),
		now:           time.Now,
	}
}

// OpenFileCache loads filename, or starts an empty cache if the file does not exist yet. Every
// write is saved back to filename.
func OpenFileCache(filename string, maxEntries int) (*FileCache, error) {
	c, err := ImportFromFile(filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		c = NewFileCache(maxEntries)
	}
	c.MaxEntries = maxEntries
	c.path = filename
	return c, nil
}

// Import a FileCache using data in r.
// The data should previously have been generated using [FileCache.Export].
func Import(r io.Reader) (*FileCache, error) {
	cache := NewFileCache(0)
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(cache); err != nil {
		return nil, err
	}
	if cache.DeviceConfigs == nil {
		cache.DeviceConfigs = make(map[string]DeviceConfig)
	}
	if cache.Fingerprints == nil {
		cache.Fingerprints = make(map[string]FingerprintEntry)
	}
	return cache, nil
}

// ImportFromFile reads a FileCache from disk.
func ImportFromFile(filename string) (*FileCache, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Import(file)
}

// Export writes a serialized FileCache to w.
func (c *FileCache) Export(w io.Writer) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return json.NewEncoder(w).Encode(c)
}

// ExportToFile writes a FileCache to disk.
func (c *FileCache) ExportToFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.Export(file)
}

func (c *FileCache) persist() error {
	if c.path == "" {
		return nil
	}
	return c.ExportToFile(c.path)
}

func (c *FileCache) Fingerprint(_ context.Context, deviceType, serial string) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	entry, ok := c.Fingerprints[fingerprintKey(deviceType, serial)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(entry.Fingerprint), nil
}

// SaveFingerprint updates the entry for (deviceType, serial), evicting the least recently synced
// entry if the cache is full.
func (c *FileCache) SaveFingerprint(_ context.Context, deviceType, serial string, fingerprint []byte) error {
	c.lock.Lock()
	key := fingerprintKey(deviceType, serial)
	c.Fingerprints[key] = FingerprintEntry{
		DeviceType:  deviceType,
		Serial:      serial,
		Fingerprint: copyBytes(fingerprint),
		SyncedAt:    c.now(),
	}
	if c.MaxEntries > 0 && len(c.Fingerprints) > c.MaxEntries {
		oldestKey := key
		oldest := c.Fingerprints[key].SyncedAt
		for k, entry := range c.Fingerprints {
			if entry.SyncedAt.Before(oldest) {
				oldestKey = k
				oldest = entry.SyncedAt
			}
		}
		delete(c.Fingerprints, oldestKey)
	}
	c.lock.Unlock()
	return c.persist()
}

func (c *FileCache) ForgetFingerprint(_ context.Context, deviceType, serial string) error {
	c.lock.Lock()
	delete(c.Fingerprints, fingerprintKey(deviceType, serial))
	c.lock.Unlock()
	return c.persist()
}

func (c *FileCache) Device(_ context.Context, uuid string) (DeviceConfig, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	cfg, ok := c.DeviceConfigs[uuid]
	if !ok {
		return DeviceConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (c *FileCache) SaveDevice(_ context.Context, cfg DeviceConfig) error {
	c.lock.Lock()
	cfg.UpdatedAt = c.now()
	c.DeviceConfigs[cfg.UUID] = cfg
	c.lock.Unlock()
	return c.persist()
}

func (c *FileCache) Devices(_ context.Context) ([]DeviceConfig, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]DeviceConfig, 0, len(c.DeviceConfigs))
	for _, cfg := range c.DeviceConfigs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (c *FileCache) ForgetDevice(_ context.Context, uuid string) error {
	c.lock.Lock()
	delete(c.DeviceConfigs, uuid)
	c.lock.Unlock()
	return c.persist()
}

// Close writes the cache to its file, if it has one.
func (c *FileCache) Close() error {
	return c.persist()
}
