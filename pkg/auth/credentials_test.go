package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects every write.
type failingStore struct {
	*MockStore
}

func (f *failingStore) Store(account *Account) error {
	return errors.New("store unavailable")
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())

	account := &Account{Username: "alice", APIKey: "key123"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	got, err := manager.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "key123", got.APIKey)
}

func TestManagerRejectsInvalidAccounts(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())

	assert.ErrorIs(t, manager.Store(nil), ErrInvalidCredentials)
	assert.ErrorIs(t, manager.Store(&Account{APIKey: "key"}), ErrInvalidCredentials)
}

func TestManagerRetrieveNotFound(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())

	_, err := manager.Retrieve("ghost")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerFallsBackOnStoreFailure(t *testing.T) {
	primary := &failingStore{NewMockStore()}
	fallback := NewMockStore()
	manager := NewManagerWithStores(primary, fallback)

	require.NoError(t, manager.Store(&Account{Username: "alice", APIKey: "key"}))

	assert.False(t, primary.Exists("alice"))
	assert.True(t, fallback.Exists("alice"))

	got, err := manager.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "key", got.APIKey)
}

func TestManagerRetrievePrefersFirstStore(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Account{Username: "alice", APIKey: "from-first"}))
	require.NoError(t, second.Store(&Account{Username: "alice", APIKey: "from-second"}))

	manager := NewManagerWithStores(first, second)
	got, err := manager.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "from-first", got.APIKey)
}

func TestManagerListDeduplicatesAcrossStores(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Account{Username: "alice", APIKey: "a"}))
	require.NoError(t, second.Store(&Account{Username: "alice", APIKey: "b"}))
	require.NoError(t, second.Store(&Account{Username: "bob", APIKey: "c"}))

	manager := NewManagerWithStores(first, second)
	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestManagerDeleteEverywhere(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Account{Username: "alice", APIKey: "a"}))
	require.NoError(t, second.Store(&Account{Username: "alice", APIKey: "b"}))

	manager := NewManagerWithStores(first, second)
	require.NoError(t, manager.Delete("alice"))

	assert.False(t, first.Exists("alice"))
	assert.False(t, second.Exists("alice"))

	assert.ErrorIs(t, manager.Delete("alice"), ErrCredentialsNotFound)
}

func TestEnvironmentStoreIsReadOnly(t *testing.T) {
	t.Setenv("BOORUFETCH_LOGIN", "envuser")
	t.Setenv("BOORUFETCH_API_KEY", "envkey")

	store := NewEnvironmentStore()

	got, err := store.Retrieve("envuser")
	require.NoError(t, err)
	assert.Equal(t, "envkey", got.APIKey)

	assert.Error(t, store.Store(&Account{Username: "x", APIKey: "y"}))
	assert.Error(t, store.Delete("envuser"))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("BOORUFETCH_PASSPHRASE", "test-passphrase")

	path := t.TempDir() + "/credentials.enc"
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "alice", APIKey: "key123"}))

	// A fresh store over the same file decrypts the same accounts
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "key123", got.APIKey)

	assert.True(t, reopened.Exists("alice"))
	require.NoError(t, reopened.Delete("alice"))
	assert.False(t, reopened.Exists("alice"))
}
