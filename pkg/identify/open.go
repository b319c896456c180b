package identify

import (
	"context"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/store"
)

// ForOpen picks the configuration to open a device with, before any hardware info exists. A
// forced descriptor beats the stored configuration, which beats the advertised name. When none
// applies the null family is returned with SourceUnresolved, and the device is opened with
// driver defaults.
func (id *Identifier) ForOpen(ctx context.Context, name, address string, forced *descriptor.Descriptor) (descriptor.Descriptor, Source) {
	if forced != nil {
		log.Info("Using forced configuration for %s: family %s, model %d", name, forced.Family, forced.Model)
		return *forced, SourceForced
	}
	if d, ok := id.FromStored(ctx, Evidence{Name: name, Address: address}); ok {
		log.Debug("Found stored configuration for %s: family %s, model %d", address, d.Family, d.Model)
		return d, SourceStored
	}
	if d, ok := descriptor.FromName(name); ok {
		log.Info("Detected configuration from name '%s': family %s, model %d", name, d.Family, d.Model)
		return d, SourceName
	}
	log.Warning("Could not determine configuration for '%s', opening with defaults", name)
	return descriptor.Descriptor{Family: descriptor.FamilyNull}, SourceUnresolved
}

// Remember persists the configuration a device was successfully opened with. Forced
// configurations are always saved; name-inferred ones only when nothing was stored.
func (id *Identifier) Remember(ctx context.Context, name, address string, d descriptor.Descriptor, source Source) error {
	if id.configs == nil || address == "" {
		return nil
	}
	switch source {
	case SourceForced:
	case SourceName:
		if _, ok := id.stored(ctx, address); ok {
			return nil
		}
	default:
		return nil
	}
	return id.configs.SaveDevice(ctx, store.DeviceConfig{
		UUID:        address,
		DisplayName: descriptor.DisplayName(name),
		Family:      d.Family,
		Model:       d.Model,
	})
}
