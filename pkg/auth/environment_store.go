package auth

import "os"

// EnvironmentStore reads credentials from BOORUFETCH_LOGIN and
// BOORUFETCH_API_KEY. It is read-only: Store and Delete report that the
// backend cannot be written so the manager falls through to another
// store.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (s *EnvironmentStore) account() *Account {
	login := os.Getenv("BOORUFETCH_LOGIN")
	apiKey := os.Getenv("BOORUFETCH_API_KEY")
	if login == "" || apiKey == "" {
		return nil
	}
	return &Account{Username: login, APIKey: apiKey}
}

// Store is unsupported for environment variables
func (s *EnvironmentStore) Store(account *Account) error {
	return ErrInvalidCredentials
}

// Retrieve gets credentials from the environment
func (s *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := s.account()
	if account == nil || (username != "" && account.Username != username) {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns the environment account, if set
func (s *EnvironmentStore) List() ([]*Account, error) {
	if account := s.account(); account != nil {
		return []*Account{account}, nil
	}
	return nil, nil
}

// Delete is unsupported for environment variables
func (s *EnvironmentStore) Delete(username string) error {
	return ErrCredentialsNotFound
}

// Exists checks if the environment account matches the username
func (s *EnvironmentStore) Exists(username string) bool {
	account := s.account()
	return account != nil && account.Username == username
}
