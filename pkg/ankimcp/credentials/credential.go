package credentials

import (
	"errors"
	"fmt"
	"time"
)

// ErrCorrupt marks a stored record that exists but cannot be parsed.
var ErrCorrupt = errors.New("stored credentials are corrupt")

// User identifies the account a credential belongs to.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Tier  string `json:"tier" yaml:"tier"`
}

// Credential is the durable result of a successful login.
type Credential struct {
	AccessToken  string    `json:"access_token" yaml:"-"`
	RefreshToken string    `json:"refresh_token" yaml:"-"`
	ExpiresAt    time.Time `json:"expires_at" yaml:"expiresAt"`
	User         User      `json:"user" yaml:"user"`
}

// Expired reports whether the access token is no longer valid at now.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store is a single-record credential backend.
type Store interface {
	// Save replaces any existing record.
	Save(cred Credential) error
	// Exists reports whether a record is present without reading it.
	Exists() (bool, error)
	// Load returns nil without error when no record exists, and an error
	// wrapping ErrCorrupt when the record cannot be parsed.
	Load() (*Credential, error)
	// Clear removes the record; clearing an empty store is not an error.
	Clear() error
	// Path describes where the record lives, for user-facing messages.
	Path() string
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendKeychain Backend = "keychain"
)

// ParseBackend maps a configured storage name onto a Backend; empty means file.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case "", BackendFile:
		return BackendFile, nil
	case BackendKeychain:
		return BackendKeychain, nil
	default:
		return "", fmt.Errorf("unsupported token storage %q (expected file or keychain)", name)
	}
}

// Open returns the store for backend. path is only used by the file backend.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		if path == "" {
			return nil, errors.New("credentials path is required")
		}
		return NewFileStore(path), nil
	case BackendKeychain:
		return NewKeyringStore(), nil
	default:
		return nil, fmt.Errorf("unsupported token storage %q", backend)
	}
}
