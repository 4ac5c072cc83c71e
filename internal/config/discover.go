package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar names the environment variable that pins the config file.
const EnvVar = "ANDRATE_CONFIG"

// ErrNotFound is returned by Discover when no candidate file exists.
var ErrNotFound = errors.New("config not found")

// DefaultPath is the per-user config location, under XDG_CONFIG_HOME
// (default ~/.config).
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./config.toml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "andrate", "config.toml")
}

// SearchPaths lists the locations Discover tries, in order, when EnvVar is
// unset.
func SearchPaths() []string {
	return []string{"./config.toml", DefaultPath(), "/etc/andrate/config.toml"}
}

// Discover returns the config file to load. A path in EnvVar must exist;
// otherwise the first existing SearchPaths entry wins.
func Discover() (string, error) {
	if pinned := os.Getenv(EnvVar); pinned != "" {
		if _, err := os.Stat(pinned); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvVar, pinned, err)
		}
		return pinned, nil
	}

	paths := SearchPaths()
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (checked %s)", ErrNotFound, strings.Join(paths, ", "))
}
