package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "andrate", "config.toml")

	require.NoError(t, WriteDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{"[server]", "[database]", "[anilist]", "[tmdb]", "[search]", "[cache]", "[breaker]", "[events]"} {
		assert.Contains(t, string(content), section)
	}
	assert.Contains(t, string(content), "${TMDB_API_KEY:-}")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWriteDefault_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 1\n"), 0600))

	err := WriteDefault(path)
	require.ErrorIs(t, err, ErrExists)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "[server]\nport = 1\n", string(content))
}

func TestDefaultConfigFileMatchesDefault(t *testing.T) {
	t.Setenv("TMDB_BEARER", "")
	t.Setenv("TMDB_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Default()
	cfg.TMDB.Bearer = "eyJhbGciOi"
	cfg.TMDB.APIKey = ""

	r := cfg.Redacted()
	assert.Equal(t, "[redacted]", r.TMDB.Bearer)
	assert.Empty(t, r.TMDB.APIKey, "unset credentials stay visibly unset")
	assert.Equal(t, "eyJhbGciOi", cfg.TMDB.Bearer, "original untouched")
}

func TestConfig_EncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	cfg.Search.GlobalDebounce = 650 * time.Millisecond

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "127.0.0.1")

	var decoded Config
	_, err := toml.Decode(buf.String(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}
