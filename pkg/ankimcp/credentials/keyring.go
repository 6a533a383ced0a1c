package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "ankimcp"
	keyringUser    = "tunnel-credentials"
)

// KeyringStore keeps the credential as a single secret in the OS keychain.
type KeyringStore struct {
	service string
	user    string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService, user: keyringUser}
}

func (s *KeyringStore) Path() string {
	return fmt.Sprintf("keychain:%s/%s", s.service, s.user)
}

func (s *KeyringStore) Save(cred Credential) error {
	content, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := keyring.Set(s.service, s.user, string(content)); err != nil {
		return fmt.Errorf("failed to store credentials in keychain: %w", err)
	}
	return nil
}

func (s *KeyringStore) Exists() (bool, error) {
	_, err := keyring.Get(s.service, s.user)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read keychain: %w", err)
}

func (s *KeyringStore) Load() (*Credential, error) {
	secret, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keychain: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path(), err)
	}
	return &cred, nil
}

func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove credentials from keychain: %w", err)
	}
	return nil
}
