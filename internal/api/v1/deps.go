package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/query"
	"github.com/vmunix/andrate/internal/rating"
)

//go:generate mockgen -destination=mocks/mock_library_service.go -package=mocks . LibraryService

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// LibraryService is the library surface the API exposes.
// *library.Synchronizer implements it.
type LibraryService interface {
	Save(ctx context.Context, userID int64, item catalog.Item, status library.Status, r rating.Rating) (*library.Entry, error)
	Rate(ctx context.Context, userID int64, item catalog.Item, proposed rating.Rating, defaultStatus library.Status) (*library.Entry, error)
	List(ctx context.Context, userID int64, spec library.ViewSpec) ([]*library.Entry, error)
}

// Breaker reports the state of a provider circuit breaker.
// *providers.Guarded implements it.
type Breaker interface {
	Name() string
	State() string
}

// CacheStats reports live provider-cache entries per operation.
// *metadata.Cache implements it.
type CacheStats interface {
	Live(ctx context.Context) (map[string]int, error)
}

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required dependencies
	Sources catalog.Sources
	Library LibraryService

	// Optional dependencies
	Bus      *events.Bus                   // Optional: surface lifecycle events
	EventLog *events.EventLog              // Optional: for /events
	Breakers []Breaker                     // Optional: reported by /status
	Cache    CacheStats                    // Optional: reported by /status
	Surface  func(query.Kind) query.Config // Optional: defaults to query.DefaultConfig
	Version  string
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	if len(d.Sources) == 0 {
		return fmt.Errorf("%w: catalog sources", ErrMissingDependency)
	}
	if d.Library == nil {
		return fmt.Errorf("%w: library service", ErrMissingDependency)
	}
	return nil
}

func (d ServerDeps) surfaceConfig(kind query.Kind) query.Config {
	if d.Surface != nil {
		return d.Surface(kind)
	}
	return query.DefaultConfig(kind)
}
