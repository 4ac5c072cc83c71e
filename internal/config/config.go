// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	AniList  AniListConfig  `toml:"anilist"`
	TMDB     TMDBConfig     `toml:"tmdb"`
	Search   SearchConfig   `toml:"search"`
	Cache    CacheConfig    `toml:"cache"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Events   EventsConfig   `toml:"events"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AniListConfig struct {
	URL           string        `toml:"url"`
	RatePerMinute int           `toml:"rate_per_minute"`
	Burst         int           `toml:"burst"`
	Timeout       time.Duration `toml:"timeout"`
}

type TMDBConfig struct {
	URL     string        `toml:"url"`
	Bearer  string        `toml:"bearer"`
	APIKey  string        `toml:"api_key"`
	Timeout time.Duration `toml:"timeout"`
}

// HasCredentials reports whether either TMDB credential is set.
func (c TMDBConfig) HasCredentials() bool {
	return c.Bearer != "" || c.APIKey != ""
}

type SearchConfig struct {
	GlobalDebounce time.Duration `toml:"global_debounce"`
	BrowseDebounce time.Duration `toml:"browse_debounce"`
	MinQueryLength int           `toml:"min_query_length"`
}

type CacheConfig struct {
	Enabled       bool          `toml:"enabled"`
	SearchTTL     time.Duration `toml:"search_ttl"`
	DiscoverTTL   time.Duration `toml:"discover_ttl"`
	DetailTTL     time.Duration `toml:"detail_ttl"`
	PruneInterval time.Duration `toml:"prune_interval"`
}

type BreakerConfig struct {
	Failures uint32        `toml:"failures"`
	Cooldown time.Duration `toml:"cooldown"`
	Interval time.Duration `toml:"interval"`
}

type EventsConfig struct {
	Retention time.Duration `toml:"retention"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8585,
			LogLevel: "info",
		},
		Database: DatabaseConfig{Path: "./data/andrate.db"},
		AniList: AniListConfig{
			URL:           "https://graphql.anilist.co",
			RatePerMinute: 90,
			Burst:         5,
			Timeout:       10 * time.Second,
		},
		TMDB: TMDBConfig{
			URL:     "https://api.themoviedb.org",
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			GlobalDebounce: 500 * time.Millisecond,
			BrowseDebounce: 300 * time.Millisecond,
			MinQueryLength: 3,
		},
		Cache: CacheConfig{
			Enabled:       true,
			SearchTTL:     time.Hour,
			DiscoverTTL:   time.Hour,
			DetailTTL:     24 * time.Hour,
			PruneInterval: 15 * time.Minute,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Cooldown: 30 * time.Second,
			Interval: time.Minute,
		},
		Events: EventsConfig{Retention: 30 * 24 * time.Hour},
	}
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cfgErr := &ConfigError{Path: path, Missing: missing, Invalid: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file without
// validating it. Unresolved environment variables are left as written.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	// Keys absent from the file keep their defaults.
	cfg := Default()
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Server.LogLevel = strings.ToLower(cfg.Server.LogLevel)
	return &cfg, missing, nil
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars replaces environment variable references and returns the
// names (or "NAME: message" for ${NAME:?message}) that could not be resolved.
// Unresolved references are left unchanged.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case ":-":
			// Empty counts as unset.
			if value == "" {
				return arg
			}
			return value
		case ":?":
			if value == "" {
				missing = append(missing, name+": "+arg)
				return match
			}
			return value
		default:
			if !ok {
				missing = append(missing, name)
				return match
			}
			return value
		}
	})
	return out, missing
}
