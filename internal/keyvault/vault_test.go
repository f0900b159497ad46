package keyvault

import (
	"bytes"
	"io"
	"testing"

	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVault(t *testing.T, dir string) *Vault {
	t.Helper()
	store, err := NewFileSecretStore(dir)
	require.NoError(t, err)
	return New(store, logging.NewWithWriter(io.Discard, true))
}

func TestGetOrCreateKey_StableAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	v1 := newVault(t, dir)
	key1, err := v1.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)
	require.Len(t, key1, cryptox.KeySize)

	// a fresh vault over the same backing store loads the same material
	v2 := newVault(t, dir)
	key2, err := v2.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestGetOrCreateKey_DistinctPurposes(t *testing.T) {
	v := newVault(t, t.TempDir())

	fileKey, err := v.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)
	pass, err := v.GetOrCreateKey(PurposeStorePassphrase)
	require.NoError(t, err)

	assert.Len(t, pass, 64, "store passphrase is the longer secret")
	assert.NotEqual(t, fileKey, pass[:cryptox.KeySize])
}

func TestGetOrCreateKey_RegeneratesOnCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSecretStore(dir)
	require.NoError(t, err)
	v := New(store, logging.NewWithWriter(io.Discard, true))

	key1, err := v.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)

	// corrupt the persisted blob and force a reload
	require.NoError(t, store.Put(string(PurposeFileKey), []byte("short")))
	v2 := New(store, logging.NewWithWriter(io.Discard, true))
	key2, err := v2.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)

	require.Len(t, key2, cryptox.KeySize)
	assert.NotEqual(t, key1, key2, "corruption must yield fresh material")
}

func TestStoreKey_DeterministicAndDistinctFromFileKey(t *testing.T) {
	dir := t.TempDir()

	v := newVault(t, dir)
	k1, err := v.StoreKey()
	require.NoError(t, err)
	require.Len(t, k1, cryptox.KeySize)

	k2, err := newVault(t, dir).StoreKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "same passphrase and salt must derive the same key")

	fileKey, err := v.GetOrCreateKey(PurposeFileKey)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(k1, fileKey))
}

func TestInstallID_PersistsAndRecovers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSecretStore(dir)
	require.NoError(t, err)
	v := New(store, logging.NewWithWriter(io.Discard, true))

	id1, err := v.InstallID()
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := New(store, logging.NewWithWriter(io.Discard, true)).InstallID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	require.NoError(t, store.Put(installIDName, []byte("not-a-uuid")))
	id3, err := New(store, logging.NewWithWriter(io.Discard, true)).InstallID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}
