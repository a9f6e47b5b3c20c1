package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Read-only; exists so CI and containers can supply a token without any file.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets an account from VKMUSIC_TOKEN / VKMUSIC_USER_ID
func (e *EnvironmentStore) Retrieve(login string) (*Account, error) {
	token := os.Getenv("VKMUSIC_TOKEN")
	userIDStr := os.Getenv("VKMUSIC_USER_ID")

	if token == "" || userIDStr == "" {
		return nil, ErrCredentialsNotFound
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if login == "" {
		login = os.Getenv("VKMUSIC_LOGIN")
	}
	if login == "" {
		login = "default"
	}

	return &Account{
		Login:        login,
		AccessToken:  token,
		UserID:       userID,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(login string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(login string) bool {
	_, err := e.Retrieve(login)
	return err == nil
}
