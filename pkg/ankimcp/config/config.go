// Package config loads the ankimcp CLI configuration: where the identity
// provider lives and how tunnel credentials are stored.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultBaseURL  = "https://keycloak.ankimcp.ai"
	DefaultRealm    = "ankimcp"
	DefaultClientID = "ankimcp-cli"
)

var defaultScopes = []string{"openid", "email", "profile"}

type Config struct {
	Auth            Auth   `yaml:"auth"`
	TokenStorage    string `yaml:"token-storage,omitempty"`
	CredentialsPath string `yaml:"credentials-path,omitempty"`
}

// Auth describes the identity provider the device flow talks to.
type Auth struct {
	BaseURL         string   `yaml:"base-url"`
	Realm           string   `yaml:"realm"`
	ClientID        string   `yaml:"client-id"`
	Scopes          []string `yaml:"scopes,omitempty"`
	Discovery       bool     `yaml:"discovery,omitempty"`
	CAFile          string   `yaml:"ca-file,omitempty"`
	InsecureSkipTLS bool     `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Auth: Auth{
			BaseURL:  DefaultBaseURL,
			Realm:    DefaultRealm,
			ClientID: DefaultClientID,
			Scopes:   append([]string(nil), defaultScopes...),
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
// Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// ApplyEnv lets ANKIMCP_* variables override file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ANKIMCP_AUTH_URL"); v != "" {
		c.Auth.BaseURL = v
	}
	if v := os.Getenv("ANKIMCP_AUTH_REALM"); v != "" {
		c.Auth.Realm = v
	}
	if v := os.Getenv("ANKIMCP_CLIENT_ID"); v != "" {
		c.Auth.ClientID = v
	}
	if v := os.Getenv("ANKIMCP_TOKEN_STORAGE"); v != "" {
		c.TokenStorage = v
	}
	if v := os.Getenv("ANKIMCP_CREDENTIALS_PATH"); v != "" {
		c.CredentialsPath = v
	}
}

// CredentialsPathOrDefault returns the configured credentials file or ~/.ankimcp/credentials.json.
func (c *Config) CredentialsPathOrDefault() string {
	if c.CredentialsPath != "" {
		return c.CredentialsPath
	}
	return DefaultCredentialsPath()
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.BaseURL) == "" {
		return errors.New("auth base-url is required")
	}
	if !strings.HasPrefix(c.Auth.BaseURL, "https://") && !strings.HasPrefix(c.Auth.BaseURL, "http://") {
		return fmt.Errorf("auth base-url must be an http(s) URL: %s", c.Auth.BaseURL)
	}
	if strings.TrimSpace(c.Auth.Realm) == "" {
		return errors.New("auth realm is required")
	}
	if strings.TrimSpace(c.Auth.ClientID) == "" {
		return errors.New("auth client-id is required")
	}
	switch c.TokenStorage {
	case "", "file", "keychain":
	default:
		return fmt.Errorf("unsupported token-storage %q (expected file or keychain)", c.TokenStorage)
	}
	return nil
}
