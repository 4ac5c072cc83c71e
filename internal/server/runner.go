// Package server runs the daemon's long-lived components: the HTTP API and
// the background maintenance loops.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/andrate/internal/events"
)

// Config for the daemon runner.
type Config struct {
	Addr            string
	EventRetention  time.Duration // 0 keeps events forever
	PruneInterval   time.Duration
	ShutdownTimeout time.Duration
}

// CachePruner drops expired cache rows. *metadata.Cache implements it.
type CachePruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Components are the pieces the runner drives. Handler is required.
type Components struct {
	Handler  http.Handler
	Bus      *events.Bus      // Optional: events are logged as they happen
	EventLog *events.EventLog // Optional: pruned to EventRetention
	Cache    CachePruner      // Optional: nil when caching is disabled
}

// Runner manages the daemon components.
type Runner struct {
	comps  Components
	config Config
	logger *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(cfg Config, comps Components, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Runner{
		comps:  comps,
		config: cfg,
		logger: logger.With("component", "runner"),
	}
}

// Run listens on the configured address and blocks until ctx is canceled or
// a component fails.
func (r *Runner) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.config.Addr, err)
	}
	return r.Serve(ctx, ln)
}

// Serve runs all components using ln for the HTTP server. A clean shutdown
// returns nil.
func (r *Runner) Serve(ctx context.Context, ln net.Listener) error {
	if r.comps.Handler == nil {
		_ = ln.Close()
		return errors.New("runner: handler is required")
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           r.comps.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived surface connections end when the runner stops.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		r.logger.Info("starting server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("shutdown error", "error", err)
		}
		return nil
	})

	if r.config.PruneInterval > 0 && (r.comps.Cache != nil || (r.comps.EventLog != nil && r.config.EventRetention > 0)) {
		g.Go(func() error {
			r.pruneLoop(ctx)
			return nil
		})
	}

	if r.comps.Bus != nil {
		sub := r.comps.Bus.Subscribe(100)
		g.Go(func() error {
			r.logEvents(ctx, sub)
			return nil
		})
	}

	return g.Wait()
}

func (r *Runner) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	for {
		r.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) prune(ctx context.Context) {
	if r.comps.EventLog != nil && r.config.EventRetention > 0 {
		n, err := r.comps.EventLog.Prune(ctx, r.config.EventRetention)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.Warn("event prune failed", "error", err)
		case n > 0:
			r.logger.Info("pruned events", "count", n)
		}
	}
	if r.comps.Cache != nil {
		n, err := r.comps.Cache.Prune(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.Warn("cache prune failed", "error", err)
		case n > 0:
			r.logger.Debug("pruned cache entries", "count", n)
		}
	}
}

func (r *Runner) logEvents(ctx context.Context, sub <-chan events.Event) {
	defer r.comps.Bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			r.logger.Debug("event",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}
}
