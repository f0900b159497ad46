package keyvault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

// SecretStore is the boundary to the platform's secure keyed storage: put,
// get and delete an opaque blob by name. On mobile targets this is backed by
// a hardware keystore's encrypted-file primitive; FileSecretStore is the
// stand-in for development and tests.
type SecretStore interface {
	Put(name string, data []byte) error
	// Get returns common.ErrNotFound when no blob exists under name.
	Get(name string) ([]byte, error)
	Delete(name string) error
}

// FileSecretStore keeps secrets as mode-0600 files in a private directory.
type FileSecretStore struct {
	dir string
}

// NewFileSecretStore creates the directory if needed.
func NewFileSecretStore(dir string) (*FileSecretStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FileSecretStore{dir: dir}, nil
}

func (s *FileSecretStore) path(name string) string {
	return filepath.Join(s.dir, name+".secret")
}

func (s *FileSecretStore) Put(name string, data []byte) error {
	if err := os.WriteFile(s.path(name), data, 0o600); err != nil {
		return fmt.Errorf("write secret %s: %w", name, err)
	}
	return nil
}

func (s *FileSecretStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", name, err)
	}
	return data, nil
}

func (s *FileSecretStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete secret %s: %w", name, err)
	}
	return nil
}
