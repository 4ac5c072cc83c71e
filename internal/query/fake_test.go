package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmunix/andrate/internal/catalog"
)

// fakeProvider serves one item type from functions set by the test.
type fakeProvider struct {
	mu        sync.Mutex
	searches  []string
	discovers []int

	search   func(ctx context.Context, q string) ([]catalog.Item, error)
	discover func(ctx context.Context, page int) ([]catalog.Item, error)
}

func (f *fakeProvider) Search(ctx context.Context, kind catalog.ItemType, q string) ([]catalog.Item, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	if f.search == nil {
		return []catalog.Item{}, nil
	}
	return f.search(ctx, q)
}

func (f *fakeProvider) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	f.mu.Lock()
	f.discovers = append(f.discovers, page)
	f.mu.Unlock()
	if f.discover == nil {
		return []catalog.Item{}, nil
	}
	return f.discover(ctx, page)
}

func (f *fakeProvider) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	return nil, catalog.ErrNotFound
}

func (f *fakeProvider) searchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func (f *fakeProvider) discoverCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.discovers...)
}

func items(kind catalog.ItemType, titles ...string) []catalog.Item {
	out := make([]catalog.Item, len(titles))
	for i, t := range titles {
		out[i] = catalog.Item{ItemID: fmt.Sprint(i + 1), ItemType: kind, Title: t, Genres: []string{}}
	}
	return out
}

func rated(it catalog.Item, r float64) catalog.Item {
	it.CommunityRating = &r
	return it
}

func itemTitles(in []catalog.Item) []string {
	out := make([]string, len(in))
	for i, it := range in {
		out[i] = it.Title
	}
	return out
}
