package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/vmunix/andrate/internal/anilist"
	v1 "github.com/vmunix/andrate/internal/api/v1"
	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/config"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/metadata"
	"github.com/vmunix/andrate/internal/migrations"
	"github.com/vmunix/andrate/internal/providers"
	"github.com/vmunix/andrate/internal/query"
	"github.com/vmunix/andrate/internal/server"
	"github.com/vmunix/andrate/internal/tmdb"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvFile loads KEY=value pairs into the environment. A missing file is
// not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig loads path, or the discovered config file when path is empty.
// With nothing to discover the built-in defaults apply.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		found, err := config.Discover()
		if errors.Is(err, config.ErrNotFound) {
			cfg := config.Default()
			return &cfg, "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func writeDefaultConfig(path string) (string, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.WriteDefault(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// showConfig prints the effective configuration with credentials masked.
func showConfig(w io.Writer, configPath, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	cfg, loadedFrom, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if loadedFrom == "" {
		loadedFrom = "built-in defaults"
	}
	fmt.Fprintf(w, "# loaded from %s\n", loadedFrom)
	return cfg.Redacted().Encode(w)
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

// buildSources wires the provider clients behind circuit breakers and, when
// enabled, the response cache. It also returns the breakers for /status.
func buildSources(cfg *config.Config, cache *metadata.Cache, logger *slog.Logger) (catalog.Sources, []v1.Breaker) {
	an := anilist.New(
		anilist.WithBaseURL(cfg.AniList.URL),
		anilist.WithRateLimit(cfg.AniList.RatePerMinute, cfg.AniList.Burst),
		anilist.WithHTTPClient(&http.Client{Timeout: cfg.AniList.Timeout}),
		anilist.WithLogger(logger),
	)
	tm := tmdb.NewClient(
		tmdb.WithBaseURL(cfg.TMDB.URL),
		tmdb.WithBearer(cfg.TMDB.Bearer),
		tmdb.WithAPIKey(cfg.TMDB.APIKey),
		tmdb.WithHTTPClient(&http.Client{Timeout: cfg.TMDB.Timeout}),
		tmdb.WithLogger(logger),
	)

	sources := providers.Sources(an, tm, providers.BreakerConfig{
		Failures: cfg.Breaker.Failures,
		Cooldown: cfg.Breaker.Cooldown,
		Interval: cfg.Breaker.Interval,
	}, logger)

	var breakers []v1.Breaker
	seen := make(map[*providers.Guarded]bool)
	for _, kind := range sources.Kinds() {
		if g, ok := sources[kind].(*providers.Guarded); ok && !seen[g] {
			seen[g] = true
			breakers = append(breakers, g)
		}
	}

	if cache != nil {
		sources = metadata.Wrap(sources, cache, metadata.TTLs{
			Search:   cfg.Cache.SearchTTL,
			Discover: cfg.Cache.DiscoverTTL,
			Detail:   cfg.Cache.DetailTTL,
		}, logger)
	}
	return sources, breakers
}

// surfaceConfig applies the configured debounce and query length to a
// surface of the given kind.
func surfaceConfig(cfg config.SearchConfig) func(query.Kind) query.Config {
	return func(kind query.Kind) query.Config {
		qc := query.DefaultConfig(kind)
		if qc.Kind == query.KindAll {
			if cfg.GlobalDebounce > 0 {
				qc.Debounce = cfg.GlobalDebounce
			}
		} else if cfg.BrowseDebounce > 0 {
			qc.Debounce = cfg.BrowseDebounce
		}
		if cfg.MinQueryLength > 0 {
			qc.MinQueryLength = cfg.MinQueryLength
		}
		return qc
	}
}

func runServer(configPath, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return fmt.Errorf("env: %w", err)
	}

	// Load config
	cfg, loadedFrom, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Create logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)
	if loadedFrom == "" {
		logger.Warn("no config file found, using defaults", "checked", config.SearchPaths())
	} else {
		logger.Info("loaded config", "path", loadedFrom)
	}
	if !cfg.TMDB.HasCredentials() {
		logger.Warn("TMDB credentials not set; tv and movie results will be unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Event bus with persistence
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger)
	defer func() { _ = bus.Close() }()

	var cache *metadata.Cache
	var pruner server.CachePruner
	if cfg.Cache.Enabled {
		cache = metadata.NewCache(db)
		pruner = cache
	}
	sources, breakers := buildSources(cfg, cache, logger)

	deps := v1.ServerDeps{
		Sources:  sources,
		Library:  library.NewSynchronizer(library.NewStore(db), bus, logger),
		Bus:      bus,
		EventLog: eventLog,
		Breakers: breakers,
		Surface:  surfaceConfig(cfg.Search),
		Version:  version,
	}
	if cache != nil {
		deps.Cache = cache
	}
	api, err := v1.New(deps, logger)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	runner := server.NewRunner(server.Config{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		EventRetention:  cfg.Events.Retention,
		PruneInterval:   cfg.Cache.PruneInterval,
		ShutdownTimeout: 30 * time.Second,
	}, server.Components{
		Handler:  mux,
		Bus:      bus,
		EventLog: eventLog,
		Cache:    pruner,
	}, logger)

	logger.Info("andrated starting", "version", version, "kinds", sources.Kinds())
	if err := runner.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
