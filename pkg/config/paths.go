package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the path to the config directory (~/.rediscache).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".rediscache"), nil
}

// DefaultPath returns the path to the named config file, e.g. "rediscache.yaml".
// It checks ~/.rediscache/configs/ first and then ~/.rediscache/.
// If name is already an absolute path, it is returned as-is.
func DefaultPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	configsPath := filepath.Join(dir, "configs", name)
	if _, err := os.Stat(configsPath); err == nil {
		return configsPath, nil
	}

	legacyPath := filepath.Join(dir, name)
	if _, err := os.Stat(legacyPath); err == nil {
		return legacyPath, nil
	}

	// Return configs path as default (even if it doesn't exist yet)
	// so the error message shows the expected location.
	return configsPath, nil
}
