package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/metrics"
)

// BreakerConfig controls when an upstream is taken out of rotation.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a trial request.
	Cooldown time.Duration
	// Interval resets failure counts while closed. Zero never resets.
	Interval time.Duration
}

// DefaultBreakerConfig returns the breaker settings used by the daemon.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Failures: 5,
		Cooldown: 30 * time.Second,
		Interval: time.Minute,
	}
}

// Guarded wraps a provider with a circuit breaker and records metrics for
// every call. While the breaker is open calls fail fast with
// catalog.ErrProviderUnavailable.
type Guarded struct {
	name string
	next catalog.Provider
	cb   *gobreaker.CircuitBreaker[any]
	log  *slog.Logger
}

// Guard wraps next. name identifies the upstream in logs and metrics.
func Guard(name string, next catalog.Provider, cfg BreakerConfig, log *slog.Logger) *Guarded {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "breaker", "upstream", name)
	if cfg.Failures == 0 {
		cfg.Failures = DefaultBreakerConfig().Failures
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			// A missing title or an abandoned request says nothing about upstream health.
			return err == nil ||
				errors.Is(err, catalog.ErrNotFound) ||
				errors.Is(err, catalog.ErrUnsupportedKind) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Guarded{name: name, next: next, cb: cb, log: log}
}

// Name returns the upstream name.
func (g *Guarded) Name() string {
	return g.name
}

// State returns the breaker state name (closed, half-open, open).
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func (g *Guarded) Search(ctx context.Context, kind catalog.ItemType, query string) ([]catalog.Item, error) {
	return cast[[]catalog.Item](g.execute(kind, "search", func() (any, error) {
		return g.next.Search(ctx, kind, query)
	}))
}

func (g *Guarded) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	return cast[[]catalog.Item](g.execute(kind, "discover", func() (any, error) {
		return g.next.Discover(ctx, kind, page)
	}))
}

func (g *Guarded) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	return cast[*catalog.ItemDetail](g.execute(kind, "detail", func() (any, error) {
		return g.next.Detail(ctx, kind, id)
	}))
}

func (g *Guarded) execute(kind catalog.ItemType, op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	res, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w: %w", g.name, catalog.ErrProviderUnavailable, err)
	}

	metrics.ProviderRequests.WithLabelValues(string(kind), op, outcome(err)).Inc()
	metrics.ProviderDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
	if err != nil {
		g.log.Debug("provider call failed", "kind", kind, "operation", op, "error", err)
	}
	return res, err
}

func cast[T any](res any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return v, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
