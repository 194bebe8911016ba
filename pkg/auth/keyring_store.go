package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "boorufetch"
	keyringPrefix  = "booru_"
	keyringIndex   = "account_index"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	key := keyringPrefix + account.Username
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	k.addToIndex(account.Username)
	return nil
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+username)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns all accounts recorded in the keyring index.
// The keychain has no native enumeration, so a separate index entry
// tracks stored usernames.
func (k *KeyringStore) List() ([]*Account, error) {
	index, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var accounts []*Account
	for _, username := range strings.Split(index, "\n") {
		if username == "" {
			continue
		}
		if account, err := k.Retrieve(username); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+username); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	k.removeFromIndex(username)
	return nil
}

// Exists checks if credentials exist for a username
func (k *KeyringStore) Exists(username string) bool {
	_, err := keyring.Get(keyringService, keyringPrefix+username)
	return err == nil
}

func (k *KeyringStore) addToIndex(username string) {
	index, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		index = ""
	}
	for _, existing := range strings.Split(index, "\n") {
		if existing == username {
			return
		}
	}
	if index != "" {
		index += "\n"
	}
	_ = keyring.Set(keyringService, keyringIndex, index+username)
}

func (k *KeyringStore) removeFromIndex(username string) {
	index, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return
	}
	var kept []string
	for _, existing := range strings.Split(index, "\n") {
		if existing != "" && existing != username {
			kept = append(kept, existing)
		}
	}
	_ = keyring.Set(keyringService, keyringIndex, strings.Join(kept, "\n"))
}
