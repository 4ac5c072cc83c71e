package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/metrics"
)

// TTLs sets how long each kind of response stays cached.
type TTLs struct {
	Search   time.Duration
	Discover time.Duration
	Detail   time.Duration
}

// DefaultTTLs returns the cache lifetimes used when none are configured.
func DefaultTTLs() TTLs {
	return TTLs{
		Search:   time.Hour,
		Discover: time.Hour,
		Detail:   24 * time.Hour,
	}
}

// Service is a catalog.Provider that serves repeated requests from the
// cache. Concurrent identical requests share one upstream call. Errors are
// never cached.
type Service struct {
	next  catalog.Provider
	cache *Cache
	ttl   TTLs
	group singleflight.Group
	log   *slog.Logger
}

// NewService wraps next with cache.
func NewService(next catalog.Provider, cache *Cache, ttl TTLs, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With("component", "metadata"),
	}
}

// Wrap puts a caching Service in front of every provider in src. Kinds that
// share a provider share the Service.
func Wrap(src catalog.Sources, cache *Cache, ttl TTLs, log *slog.Logger) catalog.Sources {
	wrapped := make(map[catalog.Provider]*Service, len(src))
	out := make(catalog.Sources, len(src))
	for kind, p := range src {
		svc, ok := wrapped[p]
		if !ok {
			svc = NewService(p, cache, ttl, log)
			wrapped[p] = svc
		}
		out[kind] = svc
	}
	return out
}

func (s *Service) Search(ctx context.Context, kind catalog.ItemType, query string) ([]catalog.Item, error) {
	return cached(ctx, s, SearchKey(kind, query), s.ttl.Search, func(ctx context.Context) ([]catalog.Item, error) {
		return s.next.Search(ctx, kind, query)
	})
}

func (s *Service) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	return cached(ctx, s, DiscoverKey(kind, page), s.ttl.Discover, func(ctx context.Context) ([]catalog.Item, error) {
		return s.next.Discover(ctx, kind, page)
	})
}

func (s *Service) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	return cached(ctx, s, DetailKey(kind, id), s.ttl.Detail, func(ctx context.Context) (*catalog.ItemDetail, error) {
		return s.next.Detail(ctx, kind, id)
	})
}

// sharedFetchTimeout bounds an upstream call that other callers may be
// waiting on. It runs detached from any one caller's context.
const sharedFetchTimeout = 30 * time.Second

// cached returns the value stored under key, or calls fetch and stores its
// result. A zero ttl bypasses the cache.
func cached[T any](ctx context.Context, s *Service, key Key, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if ttl <= 0 || s.cache == nil {
		return fetch(ctx)
	}

	if v, ok := lookup[T](ctx, s, key); ok {
		metrics.CacheHits.WithLabelValues(string(key.Op)).Inc()
		return v, nil
	}

	ch := s.group.DoChan(key.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		// Another caller may have filled the cache while we waited.
		if v, ok := lookup[T](fctx, s, key); ok {
			return v, nil
		}
		metrics.CacheMisses.WithLabelValues(string(key.Op)).Inc()

		v, err := fetch(fctx)
		if err != nil {
			return zero, err
		}
		if data, err := json.Marshal(v); err != nil {
			s.log.Warn("cache encode failed", "key", key.String(), "error", err)
		} else if err := s.cache.Put(fctx, key, data, ttl); err != nil {
			s.log.Warn("cache write failed", "key", key.String(), "error", err)
		}
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		// The shared call keeps running for the other waiters.
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}
	if res.Shared {
		s.log.Debug("shared in-flight request", "key", key.String())
	}
	v, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("metadata: unexpected result type %T", res.Val)
	}
	return v, nil
}

func lookup[T any](ctx context.Context, s *Service, key Key) (T, bool) {
	var v T
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn("cache decode failed, refetching", "key", key.String(), "error", err)
		return v, false
	}
	return v, true
}
