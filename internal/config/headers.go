package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/keyvault"
)

const headersSecretName = "persisted-headers"

// HeaderStore persists request headers independently of the configuration's
// own lifecycle, encrypted at rest.
type HeaderStore interface {
	Load() (map[string]string, error)
	Save(headers map[string]string) error
	Clear() error
}

// EncryptedHeaderStore keeps the header map as a codec-encrypted JSON blob
// in the secret store.
type EncryptedHeaderStore struct {
	store keyvault.SecretStore
	codec *cryptox.Codec
}

func NewEncryptedHeaderStore(store keyvault.SecretStore, codec *cryptox.Codec) *EncryptedHeaderStore {
	return &EncryptedHeaderStore{store: store, codec: codec}
}

// Load returns the persisted headers, or an empty map when none exist. An
// undecryptable blob is treated as absent: stale headers are not worth
// failing configuration over.
func (s *EncryptedHeaderStore) Load() (map[string]string, error) {
	blob, err := s.store.Get(headersSecretName)
	if errors.Is(err, common.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load headers: %w", err)
	}

	plain, err := s.codec.DecryptString(string(blob))
	if err != nil {
		return map[string]string{}, nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(plain), &headers); err != nil {
		return map[string]string{}, nil
	}
	return headers, nil
}

func (s *EncryptedHeaderStore) Save(headers map[string]string) error {
	plain, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	blob, err := s.codec.EncryptString(string(plain))
	if err != nil {
		return fmt.Errorf("encrypt headers: %w", err)
	}
	if err := s.store.Put(headersSecretName, []byte(blob)); err != nil {
		return fmt.Errorf("persist headers: %w", err)
	}
	return nil
}

func (s *EncryptedHeaderStore) Clear() error {
	return s.store.Delete(headersSecretName)
}
