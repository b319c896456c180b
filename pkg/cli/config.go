/*
Package cli facilitates building command-line applications that download dive logs. It defines a
[Config] type that can be used to register common command-line flags (using the Golang flag
package), environment variable equivalents and a YAML settings file.

The package uses [keyring]'s platform-agnostic interface when fingerprints are kept in an
OS-dependent credential store.

# Examples

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the store, device, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables
	if err := config.LoadFile(); err != nil {
		panic(err)
	}

	stores, err := config.OpenStores()
	if err != nil {
		panic(err)
	}
	defer stores.Close()

Precedence is command line, then environment, then settings file. Use a [Flag] mask to control
which [Config] fields are populated:

	config, err = NewConfig(FlagStore) // Only store options; no device target or BLE timeouts.
*/
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"gopkg.in/yaml.v3"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/store"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvDivesyncConfigFile   = "DIVESYNC_CONFIG_FILE"
	EnvDivesyncDevice       = "DIVESYNC_DEVICE"
	EnvDivesyncStoreType    = "DIVESYNC_STORE_TYPE"
	EnvDivesyncStorePath    = "DIVESYNC_STORE_PATH"
	EnvDivesyncLogLevel     = "DIVESYNC_LOG_LEVEL"
	EnvDivesyncKeyringType  = "DIVESYNC_KEYRING_TYPE"
	EnvDivesyncKeyringPass  = "DIVESYNC_KEYRING_PASSWORD"
	EnvDivesyncKeyringPath  = "DIVESYNC_KEYRING_PATH"
	EnvDivesyncKeyringDebug = "DIVESYNC_KEYRING_DEBUG"
)

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagDevice Flag = 1 // Enable the device target option.
	FlagStore  Flag = 2 // Enable store and keyring options.
	FlagBLE    Flag = 4 // Enable BLE timeouts.
	FlagAll    Flag = FlagDevice | FlagStore | FlagBLE
)

const (
	DefaultScanTimeout    = 10 * time.Second
	DefaultConnectTimeout = 30 * time.Second
)

var (
	ErrNoDeviceSpecified = errors.New("no dive computer address or name provided")
	ErrKeyNotFound       = keyring.ErrKeyNotFound
)

// StoreType selects a [store] backend.
type StoreType string

const (
	StoreSQLite  StoreType = "sqlite"
	StoreFile    StoreType = "file"
	StoreKeyring StoreType = "keyring"
	StoreMemory  StoreType = "memory"
)

var storeTypes = []StoreType{StoreSQLite, StoreFile, StoreKeyring, StoreMemory}

func (s *StoreType) String() string {
	return string(*s)
}

// Set updates a StoreType from a command-line argument.
func (s *StoreType) Set(value string) error {
	canonical := StoreType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range storeTypes {
		if t == canonical {
			*s = t
			return nil
		}
	}
	return fmt.Errorf("unknown store type '%s'", value)
}

// ForcedModel pins the family and model of one device, bypassing identification.
type ForcedModel struct {
	Family string `yaml:"family"`
	Model  uint32 `yaml:"model"`
}

// Settings is the YAML settings file.
type Settings struct {
	Store struct {
		Type       string `yaml:"type"`
		Path       string `yaml:"path"`
		MaxEntries int    `yaml:"max_entries"`
	} `yaml:"store"`
	LogLevel         string                 `yaml:"log_level"`
	ProgressInterval time.Duration          `yaml:"progress_interval"`
	Devices          map[string]ForcedModel `yaml:"devices"`
}

// Config fields determine where sync state is kept and which dive computer to talk to.
type Config struct {
	Flags            Flag // Controls which set of environment variables/CLI flags to use.
	ConfigFilename   string
	Device           string // Address or advertised name of the dive computer.
	StoreType        StoreType
	StorePath        string
	MaxEntries       int // Fingerprint limit for the file store; zero means unlimited.
	LogLevel         string
	ScanTimeout      time.Duration
	ConnectTimeout   time.Duration
	ProgressInterval time.Duration
	// ForcedModels maps device addresses (or advertised names) to a pinned model.
	ForcedModels map[string]ForcedModel
	Backend      keyring.Config
	BackendType  backendType
	Debug        bool // Enable keyring debug messages

	password *string
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags:          flags,
		ScanTimeout:    DefaultScanTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	c.registerFlags(flag.CommandLine)
}

func (c *Config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFilename, "config", "", "YAML settings `file`. Defaults to $DIVESYNC_CONFIG_FILE.")
	fs.StringVar(&c.LogLevel, "log-level", "", "Log `level` (none|error|warn|info|debug). Defaults to $DIVESYNC_LOG_LEVEL.")
	if c.Flags.isSet(FlagDevice) {
		fs.StringVar(&c.Device, "device", "", "Dive computer `address` or advertised name. Defaults to $DIVESYNC_DEVICE.")
	}
	if c.Flags.isSet(FlagStore) {
		var types []string
		for _, t := range storeTypes {
			types = append(types, string(t))
		}
		fs.Var(&c.StoreType, "store", "Store `type` ("+strings.Join(types, "|")+"). Defaults to $DIVESYNC_STORE_TYPE.")
		fs.StringVar(&c.StorePath, "store-path", "", "Store `path` for sqlite and file stores. Defaults to $DIVESYNC_STORE_PATH.")

		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		fs.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $DIVESYNC_KEYRING_TYPE.")
		fs.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		fs.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
	if c.Flags.isSet(FlagBLE) {
		fs.DurationVar(&c.ScanTimeout, "scan-timeout", DefaultScanTimeout, "How long to scan for dive computers")
		fs.DurationVar(&c.ConnectTimeout, "connect-timeout", DefaultConnectTimeout, "How long to keep retrying a BLE connection")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() {
	if c.ConfigFilename == "" {
		c.ConfigFilename = os.Getenv(EnvDivesyncConfigFile)
		log.Debug("Set settings file to '%s'", c.ConfigFilename)
	}
	if c.LogLevel == "" {
		c.LogLevel = os.Getenv(EnvDivesyncLogLevel)
	}
	if c.Flags.isSet(FlagDevice) && c.Device == "" {
		c.Device = os.Getenv(EnvDivesyncDevice)
		log.Debug("Set device to '%s'", c.Device)
	}
	if c.Flags.isSet(FlagStore) {
		if c.StoreType == "" {
			if err := c.StoreType.Set(os.Getenv(EnvDivesyncStoreType)); err == nil {
				log.Debug("Set store type to '%s'", c.StoreType)
			}
		}
		if c.StorePath == "" {
			c.StorePath = os.Getenv(EnvDivesyncStorePath)
			log.Debug("Set store path to '%s'", c.StorePath)
		}
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvDivesyncKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvDivesyncKeyringPass)
			c.password = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = os.Getenv(EnvDivesyncKeyringPath)
			log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvDivesyncKeyringDebug)
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
	}
}

// LoadFile fills fields that are still unset from the YAML settings file named by
// c.ConfigFilename. A missing file is not an error. The log level is applied afterwards.
func (c *Config) LoadFile() error {
	if c.ConfigFilename != "" {
		data, err := os.ReadFile(c.ConfigFilename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("Settings file %s does not exist", c.ConfigFilename)
		case err != nil:
			return fmt.Errorf("failed to read settings: %w", err)
		default:
			var settings Settings
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return fmt.Errorf("failed to parse settings %s: %w", c.ConfigFilename, err)
			}
			if err := c.apply(&settings); err != nil {
				return fmt.Errorf("invalid settings %s: %w", c.ConfigFilename, err)
			}
		}
	}
	return c.applyLogLevel()
}

func (c *Config) apply(s *Settings) error {
	if c.StoreType == "" && s.Store.Type != "" {
		if err := c.StoreType.Set(s.Store.Type); err != nil {
			return err
		}
	}
	if c.StorePath == "" {
		c.StorePath = s.Store.Path
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = s.Store.MaxEntries
	}
	if c.LogLevel == "" {
		c.LogLevel = s.LogLevel
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = s.ProgressInterval
	}
	for key, forced := range s.Devices {
		if _, err := descriptor.ParseFamily(forced.Family); err != nil {
			return fmt.Errorf("device %s: %w", key, err)
		}
		if _, ok := c.ForcedModels[key]; ok {
			continue
		}
		if c.ForcedModels == nil {
			c.ForcedModels = make(map[string]ForcedModel)
		}
		c.ForcedModels[key] = forced
	}
	return nil
}

func (c *Config) applyLogLevel() error {
	if c.LogLevel == "" {
		return nil
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// Forced returns the pinned descriptor for a device, matching its address first and then its
// advertised name. It returns nil if the device is not pinned.
func (c *Config) Forced(address, name string) (*descriptor.Descriptor, error) {
	for _, key := range []string{address, name} {
		forced, ok := c.ForcedModels[key]
		if !ok || key == "" {
			continue
		}
		family, err := descriptor.ParseFamily(forced.Family)
		if err != nil {
			return nil, err
		}
		d, ok := descriptor.ByModel(family, forced.Model)
		if !ok {
			d = descriptor.Descriptor{Vendor: "Unknown", Product: fmt.Sprintf("model %d", forced.Model), Family: family, Model: forced.Model}
		}
		return &d, nil
	}
	return nil, nil
}

// Stores holds the opened fingerprint and device configuration stores.
type Stores struct {
	Fingerprints store.FingerprintStore
	Configs      store.ConfigStore
	closers      []io.Closer
}

// Close releases every backend. Stores that write through have nothing left to flush.
func (s *Stores) Close() error {
	var errs []error
	for _, closer := range s.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// OpenStores opens the configured backend. The keyring backend only holds fingerprints, so device
// configurations go to a file cache at c.StorePath, or memory if no path is set.
func (c *Config) OpenStores() (*Stores, error) {
	storeType := c.StoreType
	if storeType == "" {
		storeType = StoreSQLite
	}
	path, err := c.storePath(storeType)
	if err != nil {
		return nil, err
	}
	log.Debug("Opening %s store at '%s'", storeType, path)

	switch storeType {
	case StoreMemory:
		m := store.NewMemory()
		return &Stores{Fingerprints: m, Configs: m, closers: []io.Closer{m}}, nil
	case StoreSQLite:
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return &Stores{Fingerprints: db, Configs: db, closers: []io.Closer{db}}, nil
	case StoreFile:
		fc, err := store.OpenFileCache(path, c.MaxEntries)
		if err != nil {
			return nil, err
		}
		return &Stores{Fingerprints: fc, Configs: fc, closers: []io.Closer{fc}}, nil
	case StoreKeyring:
		kr, err := c.openKeyring()
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring: %w", err)
		}
		var configs store.Store = store.NewMemory()
		if path != "" {
			if configs, err = store.OpenFileCache(path, 0); err != nil {
				return nil, err
			}
		}
		return &Stores{Fingerprints: store.NewKeyring(kr), Configs: configs, closers: []io.Closer{configs}}, nil
	}
	return nil, fmt.Errorf("unknown store type '%s'", storeType)
}

func (c *Config) storePath(t StoreType) (string, error) {
	path := c.StorePath
	if path == "" {
		switch t {
		case StoreSQLite:
			path = filepath.Join(defaultDataDirectory, "divesync.db")
		case StoreFile:
			path = filepath.Join(defaultDataDirectory, "divesync.json")
		}
	}
	return expandHome(path)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
