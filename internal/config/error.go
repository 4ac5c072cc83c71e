package config

import (
	"fmt"
	"strings"
)

// FieldError is one rejected setting, addressed by its dotted TOML key.
type FieldError struct {
	Key     string
	Message string
}

func (e FieldError) String() string {
	return e.Key + ": " + e.Message
}

// ConfigError reports everything wrong with a config file at once.
type ConfigError struct {
	Path    string       // Config file path
	Missing []string     // Unresolved environment variables
	Invalid []FieldError // Settings that failed validation
}

func (e *ConfigError) Error() string {
	var lines []string
	if len(e.Missing) > 0 {
		lines = append(lines, "missing environment variables: "+strings.Join(e.Missing, ", "))
	}
	for _, fe := range e.Invalid {
		lines = append(lines, fe.String())
	}

	var msg string
	switch len(lines) {
	case 0:
		return ""
	case 1:
		msg = lines[0]
	default:
		msg = fmt.Sprintf("%d problems:\n  - %s", len(lines), strings.Join(lines, "\n  - "))
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return msg
}

// HasErrors reports whether anything was recorded.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0
}

// Invalidates reports whether key was rejected.
func (e *ConfigError) Invalidates(key string) bool {
	for _, fe := range e.Invalid {
		if fe.Key == key {
			return true
		}
	}
	return false
}
