package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account is a VK account mirrored into secure storage by the auth
// subcommands. The plaintext cache file remains the authority for the
// authorization flow itself; these backends exist so `vkmusic auth` can keep
// tokens out of plain sight.
type Account struct {
	Login        string    `json:"login"`
	AccessToken  string    `json:"access_token"`
	UserID       int64     `json:"user_id"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving accounts
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(login string) (*Account, error)
	List() ([]*Account, error)
	Delete(login string) error
	Exists(login string) bool
}

// Store-chain errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Manager handles credential storage with fallback mechanisms: system
// keychain first, encrypted file second, environment variables last.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves an account using the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account.Login == "" {
		return errors.New("login is required")
	}
	if account.AccessToken == "" {
		return errors.New("access token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets an account from the first store that has it
func (m *Manager) Retrieve(login string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(login); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for account: %s", login)
}

// List returns all stored accounts across all stores, newest version wins
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Login]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Login] = account
			}
		}
	}

	var result []*Account
	for _, account := range accountMap {
		result = append(result, account)
	}

	return result, nil
}

// Delete removes an account from all stores
func (m *Manager) Delete(login string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(login); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for account: %s", login)
	}

	return nil
}

// configDir returns the configuration directory path
func configDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "vkmusic")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "vkmusic")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			dir = filepath.Join(xdgConfig, "vkmusic")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "vkmusic")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return dir, nil
}

// SanitizeAccount creates a copy of the account with the token masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	return &Account{
		Login:        account.Login,
		AccessToken:  maskString(account.AccessToken),
		UserID:       account.UserID,
		LastModified: account.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
