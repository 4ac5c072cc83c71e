package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_Empty(t *testing.T) {
	e := &ConfigError{Path: "/etc/andrate/config.toml"}
	assert.False(t, e.HasErrors())
	assert.Empty(t, e.Error())
}

func TestConfigError_SingleProblemIsOneLine(t *testing.T) {
	e := &ConfigError{
		Path:    "/etc/andrate/config.toml",
		Invalid: []FieldError{{Key: "tmdb.timeout", Message: "must not be negative, got -1s"}},
	}
	assert.Equal(t, "/etc/andrate/config.toml: tmdb.timeout: must not be negative, got -1s", e.Error())
}

func TestConfigError_MissingAndInvalid(t *testing.T) {
	e := &ConfigError{
		Missing: []string{"TMDB_BEARER", "TMDB_API_KEY"},
		Invalid: []FieldError{{Key: "server.port", Message: "must be between 1 and 65535, got 0"}},
	}
	want := "2 problems:\n" +
		"  - missing environment variables: TMDB_BEARER, TMDB_API_KEY\n" +
		"  - server.port: must be between 1 and 65535, got 0"
	assert.Equal(t, want, e.Error())
	assert.True(t, e.HasErrors())
}

func TestConfigError_Invalidates(t *testing.T) {
	e := &ConfigError{Invalid: []FieldError{{Key: "anilist.url", Message: "bad"}}}
	assert.True(t, e.Invalidates("anilist.url"))
	assert.False(t, e.Invalidates("tmdb.url"))
}
