package providers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker/v2"

	"github.com/vmunix/andrate/internal/anilist"
	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/tmdb"
)

// classify maps client errors onto the catalog error taxonomy, keeping the
// original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrProviderTimeout),
		errors.Is(err, catalog.ErrProviderUnavailable):
		return err
	case errors.Is(err, anilist.ErrNotFound), errors.Is(err, tmdb.ErrNotFound):
		return fmt.Errorf("%w: %w", catalog.ErrNotFound, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %w", catalog.ErrProviderTimeout, err)
	default:
		return fmt.Errorf("%w: %w", catalog.ErrProviderUnavailable, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// outcome is the metrics label for a provider call result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, catalog.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
