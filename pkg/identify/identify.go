/*
Package identify decides which protocol family and model to use for a dive computer.

Evidence is weighed in a fixed order: the hardware report from the device itself, then the
configuration stored for the device address, then the BLE advertised name. The first source that
answers wins. Hardware reports are ground truth, and [Identifier.Reconcile] writes them back to the
store when an earlier guess turns out to be wrong.
*/
package identify

import (
	"context"
	"errors"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/store"
)

// ErrUnresolved is returned when no source can identify the device.
var ErrUnresolved = errors.New("identify: device family and model unresolved")

// Source records which evidence produced a descriptor.
type Source int

const (
	SourceUnresolved Source = iota
	SourceHardware
	SourceStored
	SourceName
	SourceForced
)

var sourceNames = map[Source]string{
	SourceUnresolved: "unresolved",
	SourceHardware:   "hardware",
	SourceStored:     "stored",
	SourceName:       "name",
	SourceForced:     "forced",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// Evidence is what is known about a device when it needs to be identified.
type Evidence struct {
	Name    string
	Address string
	Info    device.Info
	// HaveInfo is set once the device has reported its hardware info.
	HaveInfo bool
}

// ResolverFunc answers from a single source of evidence.
type ResolverFunc func(ctx context.Context, ev Evidence) (descriptor.Descriptor, bool)

type resolver struct {
	source Source
	fn     ResolverFunc
}

// Identifier resolves descriptors from evidence. The zero value has no store and resolves from
// hardware reports and names only.
type Identifier struct {
	configs   store.ConfigStore
	resolvers []resolver
}

// New returns an Identifier backed by configs, which may be nil.
func New(configs store.ConfigStore) *Identifier {
	id := &Identifier{configs: configs}
	id.resolvers = []resolver{
		{SourceHardware, id.FromHardware},
		{SourceStored, id.FromStored},
		{SourceName, FromName},
	}
	return id
}

// Resolve walks the resolver chain and returns the first answer.
func (id *Identifier) Resolve(ctx context.Context, ev Evidence) (descriptor.Descriptor, Source, error) {
	resolvers := id.resolvers
	if resolvers == nil {
		resolvers = New(id.configs).resolvers
	}
	for _, r := range resolvers {
		if d, ok := r.fn(ctx, ev); ok {
			log.Debug("Resolved %s at %s from %s: %s (family %s, model %d)",
				ev.Name, ev.Address, r.source, d.Name(), d.Family, d.Model)
			return d, r.source, nil
		}
	}
	return descriptor.Descriptor{}, SourceUnresolved, ErrUnresolved
}

// FromHardware trusts the device's own report. When the report has no family, the family comes
// from the stored configuration or the name and only the model is taken from the report.
func (id *Identifier) FromHardware(ctx context.Context, ev Evidence) (descriptor.Descriptor, bool) {
	if !ev.HaveInfo {
		return descriptor.Descriptor{}, false
	}
	family := ev.Info.Family
	if !family.Known() {
		if d, ok := id.FromStored(ctx, ev); ok {
			family = d.Family
		} else if d, ok := FromName(ctx, ev); ok {
			family = d.Family
		} else {
			return descriptor.Descriptor{}, false
		}
	}
	return describe(family, ev.Info.Model, ev.Name), true
}

// FromStored returns the configuration saved for the device address.
func (id *Identifier) FromStored(ctx context.Context, ev Evidence) (descriptor.Descriptor, bool) {
	cfg, ok := id.stored(ctx, ev.Address)
	if !ok || !cfg.Family.Known() {
		return descriptor.Descriptor{}, false
	}
	return cfg.Descriptor(), true
}

// FromName matches the advertised name against the name table.
func FromName(_ context.Context, ev Evidence) (descriptor.Descriptor, bool) {
	return descriptor.FromName(ev.Name)
}

func (id *Identifier) stored(ctx context.Context, address string) (store.DeviceConfig, bool) {
	if id.configs == nil || address == "" {
		return store.DeviceConfig{}, false
	}
	cfg, err := id.configs.Device(ctx, address)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warning("Could not load stored configuration for %s: %s", address, err)
		}
		return store.DeviceConfig{}, false
	}
	return cfg, true
}

func describe(family descriptor.Family, model uint32, name string) descriptor.Descriptor {
	if d, ok := descriptor.ByModel(family, model); ok {
		return d
	}
	if d, ok := descriptor.FromName(name); ok && d.Family == family {
		d.Model = model
		return d
	}
	return descriptor.Descriptor{Product: descriptor.DisplayName(name), Family: family, Model: model}
}

// Reconcile records the hardware-reported model for address. A stored configuration with a
// different model is overwritten; with nothing stored, a name-inferred configuration is saved when
// its model disagrees with the hardware. Nothing is written when the sources agree.
func (id *Identifier) Reconcile(ctx context.Context, address, name string, info device.Info) error {
	if id.configs == nil || address == "" {
		return nil
	}
	if cfg, ok := id.stored(ctx, address); ok {
		if cfg.Model == info.Model {
			return nil
		}
		log.Info("Updating stored model of %s from %d to %d", descriptor.DisplayName(name), cfg.Model, info.Model)
		cfg.Model = info.Model
		if cfg.DisplayName == "" {
			cfg.DisplayName = descriptor.DisplayName(name)
		}
		return id.configs.SaveDevice(ctx, cfg)
	}
	inferred, ok := descriptor.FromName(name)
	if !ok || inferred.Model == info.Model {
		return nil
	}
	family := inferred.Family
	if info.Family.Known() {
		family = info.Family
	}
	log.Info("Storing %s with model %d (name suggested %d)", descriptor.DisplayName(name), info.Model, inferred.Model)
	return id.configs.SaveDevice(ctx, store.DeviceConfig{
		UUID:        address,
		DisplayName: descriptor.DisplayName(name),
		Family:      family,
		Model:       info.Model,
	})
}
