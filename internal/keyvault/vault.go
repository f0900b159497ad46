// Package keyvault lazily provisions and persists the symmetric key
// material used by the pipeline. Losing a key only loses already-queued
// crash telemetry, so every load failure is answered by regenerating the
// material rather than surfacing an error: availability over durability at
// the key layer.
package keyvault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// Purpose names one piece of key material. Distinct purposes always hold
// distinct material.
type Purpose string

const (
	// PurposeFileKey encrypts staged crash files. 32 bytes.
	PurposeFileKey Purpose = "staging-file-key"
	// PurposeStorePassphrase is the longer database-level secret; the
	// store's record key is derived from it. 64 bytes.
	PurposeStorePassphrase Purpose = "store-passphrase"

	installIDName = "install-id"
	storeSaltName = "store-salt"
)

func purposeSize(p Purpose) int {
	if p == PurposeStorePassphrase {
		return 64
	}
	return 32
}

// Vault provisions keys on first use and caches them for the process
// lifetime.
type Vault struct {
	store SecretStore
	log   logging.Logger

	mu    sync.Mutex
	cache map[Purpose][]byte
}

func New(store SecretStore, log logging.Logger) *Vault {
	return &Vault{store: store, log: log, cache: make(map[Purpose][]byte)}
}

// GetOrCreateKey returns the key material for purpose, generating and
// persisting it on first use. Corrupted or wrong-sized persisted material is
// logged and silently replaced.
func (v *Vault) GetOrCreateKey(p Purpose) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.cache[p]; ok {
		return key, nil
	}

	size := purposeSize(p)
	key, err := v.store.Get(string(p))
	if err == nil && len(key) == size {
		v.cache[p] = key
		return key, nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		v.log.Warn(context.Background(), "key material unreadable, regenerating", "purpose", string(p), "error", err)
	} else if err == nil {
		v.log.Warn(context.Background(), "key material has wrong size, regenerating", "purpose", string(p), "size", len(key))
	}

	key = common.GenerateRandByteArray(size)
	if err := v.store.Put(string(p), key); err != nil {
		return nil, fmt.Errorf("persist key %s: %w", p, err)
	}
	v.cache[p] = key
	return key, nil
}

// StoreKey derives the 32-byte durable-store record key from the persisted
// store passphrase via argon2id, with a persisted random salt.
func (v *Vault) StoreKey() ([]byte, error) {
	pass, err := v.GetOrCreateKey(PurposeStorePassphrase)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	salt, err := v.store.Get(storeSaltName)
	if err != nil || len(salt) != 16 {
		salt = common.GenerateRandByteArray(16)
		if err := v.store.Put(storeSaltName, salt); err != nil {
			return nil, fmt.Errorf("persist store salt: %w", err)
		}
	}

	return argon2.IDKey(pass, salt, 1, 64*1024, 4, 32), nil
}

// InstallID returns the persisted installation identifier, minting one on
// first use. A corrupted value is replaced, same policy as keys.
func (v *Vault) InstallID() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	raw, err := v.store.Get(installIDName)
	if err == nil {
		if id, perr := uuid.ParseBytes(raw); perr == nil {
			return id.String(), nil
		}
		v.log.Warn(context.Background(), "install id unreadable, minting a new one")
	}

	id := uuid.NewString()
	if err := v.store.Put(installIDName, []byte(id)); err != nil {
		return "", fmt.Errorf("persist install id: %w", err)
	}
	return id, nil
}
