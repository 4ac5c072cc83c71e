package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default_config.toml
var defaultConfig string

// ErrExists is returned by WriteDefault when the target file is present.
var ErrExists = errors.New("config file already exists")

// WriteDefault writes the commented example config to path, creating parent
// directories. An existing file is never overwritten. The file may end up
// holding TMDB credentials, so it is readable by the owner only.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return err
	}
	if _, err := io.WriteString(f, defaultConfig); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

const redacted = "[redacted]"

// Redacted returns a copy with provider credentials masked.
func (c Config) Redacted() Config {
	if c.TMDB.Bearer != "" {
		c.TMDB.Bearer = redacted
	}
	if c.TMDB.APIKey != "" {
		c.TMDB.APIKey = redacted
	}
	return c
}

// Encode writes the config as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
