// Package providers adapts the AniList and TMDB clients to catalog.Provider
// and guards each upstream with a circuit breaker.
package providers

import (
	"context"
	"fmt"

	"github.com/vmunix/andrate/internal/anilist"
	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/tmdb"
)

// AniListAPI is the subset of the AniList client used by the adapter.
type AniListAPI interface {
	Search(ctx context.Context, query string) ([]anilist.Media, error)
	Trending(ctx context.Context, page int) ([]anilist.Media, error)
	GetMedia(ctx context.Context, id string) (*anilist.Media, error)
}

// TMDBAPI is the subset of the TMDB client used by the adapter.
type TMDBAPI interface {
	Search(ctx context.Context, kind tmdb.Kind, query string) ([]tmdb.Result, error)
	Discover(ctx context.Context, kind tmdb.Kind, page int) ([]tmdb.Result, error)
	Get(ctx context.Context, kind tmdb.Kind, id string) (*tmdb.Detail, error)
}

// AniList serves the anime catalog.
type AniList struct {
	client AniListAPI
}

// NewAniList creates an anime provider.
func NewAniList(client AniListAPI) *AniList {
	return &AniList{client: client}
}

func (a *AniList) Search(ctx context.Context, kind catalog.ItemType, query string) ([]catalog.Item, error) {
	if kind != catalog.Anime {
		return nil, unsupported("anilist", kind)
	}
	media, err := a.client.Search(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	return normalizeMedia(media), nil
}

func (a *AniList) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	if kind != catalog.Anime {
		return nil, unsupported("anilist", kind)
	}
	media, err := a.client.Trending(ctx, page)
	if err != nil {
		return nil, classify(err)
	}
	return normalizeMedia(media), nil
}

func (a *AniList) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	if kind != catalog.Anime {
		return nil, unsupported("anilist", kind)
	}
	m, err := a.client.GetMedia(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	d := catalog.AniListDetail(*m)
	return &d, nil
}

func normalizeMedia(media []anilist.Media) []catalog.Item {
	items := make([]catalog.Item, 0, len(media))
	for _, m := range media {
		items = append(items, catalog.FromAniList(m))
	}
	return items
}

// TMDB serves the tv and movie catalogs.
type TMDB struct {
	client TMDBAPI
}

// NewTMDB creates a tv/movie provider.
func NewTMDB(client TMDBAPI) *TMDB {
	return &TMDB{client: client}
}

func (t *TMDB) Search(ctx context.Context, kind catalog.ItemType, query string) ([]catalog.Item, error) {
	tk, err := tmdbKind(kind)
	if err != nil {
		return nil, err
	}
	results, err := t.client.Search(ctx, tk, query)
	if err != nil {
		return nil, classify(err)
	}
	return normalizeResults(results, kind), nil
}

func (t *TMDB) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	tk, err := tmdbKind(kind)
	if err != nil {
		return nil, err
	}
	results, err := t.client.Discover(ctx, tk, page)
	if err != nil {
		return nil, classify(err)
	}
	return normalizeResults(results, kind), nil
}

func (t *TMDB) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	tk, err := tmdbKind(kind)
	if err != nil {
		return nil, err
	}
	d, err := t.client.Get(ctx, tk, id)
	if err != nil {
		return nil, classify(err)
	}
	detail := catalog.TMDBDetail(*d, kind)
	return &detail, nil
}

func tmdbKind(kind catalog.ItemType) (tmdb.Kind, error) {
	switch kind {
	case catalog.TV:
		return tmdb.KindTV, nil
	case catalog.Movie:
		return tmdb.KindMovie, nil
	}
	return "", unsupported("tmdb", kind)
}

func normalizeResults(results []tmdb.Result, kind catalog.ItemType) []catalog.Item {
	items := make([]catalog.Item, 0, len(results))
	for _, r := range results {
		items = append(items, catalog.FromTMDB(r, kind))
	}
	return items
}

func unsupported(provider string, kind catalog.ItemType) error {
	return fmt.Errorf("%s: %w: %q", provider, catalog.ErrUnsupportedKind, kind)
}
