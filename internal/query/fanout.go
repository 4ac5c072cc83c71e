package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vmunix/andrate/internal/catalog"
)

// Call asks one provider for the items of one kind.
type Call func(ctx context.Context, p catalog.Provider, kind catalog.ItemType) ([]catalog.Item, error)

// FanOut runs call for every kind in parallel and merges the results in the
// order of kinds, keeping each provider's own order. A failing source
// contributes no items; its error is reported in the matching SourceResult
// and classified as ErrProviderUnavailable unless it is already a timeout.
func FanOut(ctx context.Context, sources catalog.Sources, kinds []catalog.ItemType, call Call) ([]catalog.Item, []SourceResult) {
	type slot struct {
		items []catalog.Item
		err   error
	}
	slots := make([]slot, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		p, err := sources.For(kind)
		if err != nil {
			slots[i].err = err
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := call(ctx, p, kind)
			slots[i] = slot{items: items, err: sourceError(err)}
		}()
	}
	wg.Wait()

	merged := make([]catalog.Item, 0)
	results := make([]SourceResult, len(kinds))
	for i, kind := range kinds {
		results[i] = SourceResult{Kind: kind, Err: slots[i].err}
		if slots[i].err != nil {
			continue
		}
		results[i].Count = len(slots[i].items)
		merged = append(merged, slots[i].items...)
	}
	return merged, results
}

func sourceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrProviderTimeout),
		errors.Is(err, catalog.ErrProviderUnavailable),
		errors.Is(err, catalog.ErrUnsupportedKind):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", catalog.ErrProviderTimeout, err)
	default:
		return fmt.Errorf("%w: %w", catalog.ErrProviderUnavailable, err)
	}
}

// Search fans a text query out to every item type of kind.
func Search(ctx context.Context, sources catalog.Sources, kind Kind, text string) ([]catalog.Item, []SourceResult) {
	return FanOut(ctx, sources, kind.ItemTypes(), func(ctx context.Context, p catalog.Provider, t catalog.ItemType) ([]catalog.Item, error) {
		return p.Search(ctx, t, text)
	})
}

// Discover fans a discovery page out to every item type of kind.
func Discover(ctx context.Context, sources catalog.Sources, kind Kind, page int) ([]catalog.Item, []SourceResult) {
	page = max(page, 1)
	return FanOut(ctx, sources, kind.ItemTypes(), func(ctx context.Context, p catalog.Provider, t catalog.ItemType) ([]catalog.Item, error) {
		return p.Discover(ctx, t, page)
	})
}
