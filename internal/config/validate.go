package config

import (
	"fmt"
	"net/url"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

type validator struct {
	errs []FieldError
}

func (v *validator) check(ok bool, key, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, FieldError{Key: key, Message: fmt.Sprintf(format, args...)})
	}
}

func (v *validator) url(key, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	v.check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
		key, "must be an http(s) URL, got %q", raw)
}

func (v *validator) duration(key string, d time.Duration) {
	v.check(d >= 0, key, "must not be negative, got %s", d)
}

// Validate checks the configuration. Zero values mean "use the default" and
// are accepted.
func (c *Config) Validate() []FieldError {
	var v validator

	v.check(c.Server.Port == 0 || (c.Server.Port >= 1 && c.Server.Port <= 65535),
		"server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	v.check(validLogLevels[c.Server.LogLevel],
		"server.log_level", "must be one of debug, info, warn, error; got %q", c.Server.LogLevel)

	v.url("anilist.url", c.AniList.URL)
	v.check(c.AniList.RatePerMinute >= 0, "anilist.rate_per_minute", "must not be negative")
	v.check(c.AniList.Burst >= 0, "anilist.burst", "must not be negative")
	v.duration("anilist.timeout", c.AniList.Timeout)

	v.url("tmdb.url", c.TMDB.URL)
	v.duration("tmdb.timeout", c.TMDB.Timeout)

	v.check(c.Search.MinQueryLength >= 0,
		"search.min_query_length", "must not be negative, got %d", c.Search.MinQueryLength)
	v.duration("search.global_debounce", c.Search.GlobalDebounce)
	v.duration("search.browse_debounce", c.Search.BrowseDebounce)

	v.duration("cache.search_ttl", c.Cache.SearchTTL)
	v.duration("cache.discover_ttl", c.Cache.DiscoverTTL)
	v.duration("cache.detail_ttl", c.Cache.DetailTTL)
	v.duration("cache.prune_interval", c.Cache.PruneInterval)

	v.duration("breaker.cooldown", c.Breaker.Cooldown)
	v.duration("breaker.interval", c.Breaker.Interval)
	v.duration("events.retention", c.Events.Retention)

	return v.errs
}
