package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const keyringFingerprintService = "fingerprint"

// Keyring keeps fingerprints in an operating system credential store. It does not hold device
// configurations; pair it with another backend for those.
type Keyring struct {
	kr keyring.Keyring
}

func NewKeyring(kr keyring.Keyring) *Keyring {
	return &Keyring{kr: kr}
}

func keyringItemKey(deviceType, serial string) string {
	return keyringFingerprintService + "." + deviceType + "." + serial
}

func (k *Keyring) Fingerprint(_ context.Context, deviceType, serial string) ([]byte, error) {
	item, err := k.kr.Get(keyringItemKey(deviceType, serial))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: could not load fingerprint: %w", err)
	}
	return copyBytes(item.Data), nil
}

func (k *Keyring) SaveFingerprint(_ context.Context, deviceType, serial string, fingerprint []byte) error {
	err := k.kr.Set(keyring.Item{
		Key:         keyringItemKey(deviceType, serial),
		Data:        copyBytes(fingerprint),
		Label:       "Dive log fingerprint for " + deviceType + " " + serial,
		Description: "divesync fingerprint",
	})
	if err != nil {
		return fmt.Errorf("store: failed to save fingerprint in keyring: %w", err)
	}
	return nil
}

func (k *Keyring) ForgetFingerprint(_ context.Context, deviceType, serial string) error {
	err := k.kr.Remove(keyringItemKey(deviceType, serial))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("store: failed to remove fingerprint from keyring: %w", err)
	}
	return nil
}
