package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName  = "ankimcp"
	defaultHomeDirName    = ".ankimcp"
	defaultConfigFile     = "config.yaml"
	defaultCredentialFile = "credentials.json"
)

func DefaultConfigPath() string {
	if env := os.Getenv("ANKIMCP_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultHomeDirName, defaultConfigFile)
}

// DefaultCredentialsPath is ~/.ankimcp/credentials.json, falling back to the
// user config dir when no home directory is known.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, defaultHomeDirName, defaultCredentialFile)
	}
	base, _ := os.UserConfigDir()
	return filepath.Join(base, defaultConfigDirName, defaultCredentialFile)
}
