package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/catalog/mocks"
)

func TestFanOut_MergeOrderIsKindOrder(t *testing.T) {
	// The slowest source is first in merge order; completion order must not matter.
	anime := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		time.Sleep(30 * time.Millisecond)
		return items(catalog.Anime, "A1", "A2"), nil
	}}
	tv := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		time.Sleep(10 * time.Millisecond)
		return items(catalog.TV, "T1"), nil
	}}
	movie := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		return items(catalog.Movie, "M1", "M2"), nil
	}}
	sources := catalog.Sources{catalog.Anime: anime, catalog.TV: tv, catalog.Movie: movie}

	got, results := Search(context.Background(), sources, KindAll, "x")

	assert.Equal(t, []string{"A1", "A2", "T1", "M1", "M2"}, itemTitles(got))
	require.Len(t, results, 3)
	assert.Equal(t, SourceResult{Kind: catalog.Anime, Count: 2}, results[0])
	assert.Equal(t, SourceResult{Kind: catalog.TV, Count: 1}, results[1])
	assert.Equal(t, SourceResult{Kind: catalog.Movie, Count: 2}, results[2])
}

func TestFanOut_RunsInParallel(t *testing.T) {
	slow := func(ctx context.Context, q string) ([]catalog.Item, error) {
		time.Sleep(100 * time.Millisecond)
		return nil, nil
	}
	sources := catalog.Sources{
		catalog.Anime: &fakeProvider{search: slow},
		catalog.TV:    &fakeProvider{search: slow},
		catalog.Movie: &fakeProvider{search: slow},
	}

	start := time.Now()
	_, _ = Search(context.Background(), sources, KindAll, "x")
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestFanOut_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	tv := mocks.NewMockProvider(ctrl)
	tv.EXPECT().Search(gomock.Any(), catalog.TV, "Attack").Return(nil, errors.New("connection refused"))

	movieTimeout := mocks.NewMockProvider(ctrl)
	movieTimeout.EXPECT().Search(gomock.Any(), catalog.Movie, "Attack").Return(nil, context.DeadlineExceeded)

	sources := catalog.Sources{
		catalog.Anime: &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
			return items(catalog.Anime, "Attack on Titan"), nil
		}},
		catalog.TV:    tv,
		catalog.Movie: movieTimeout,
	}

	got, results := Search(context.Background(), sources, KindAll, "Attack")

	assert.Equal(t, []string{"Attack on Titan"}, itemTitles(got))
	require.Len(t, results, 3)
	assert.False(t, results[0].Failed())
	assert.ErrorIs(t, results[1].Err, catalog.ErrProviderUnavailable)
	assert.Zero(t, results[1].Count)
	assert.ErrorIs(t, results[2].Err, catalog.ErrProviderTimeout)
}

func TestFanOut_MissingSource(t *testing.T) {
	sources := catalog.Sources{catalog.Anime: &fakeProvider{}}

	got, results := Discover(context.Background(), sources, KindAll, 1)

	assert.Empty(t, got)
	assert.NotNil(t, got)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, catalog.ErrUnsupportedKind)
	assert.ErrorIs(t, results[2].Err, catalog.ErrUnsupportedKind)
}

func TestDiscover_SingleKindAndPageFloor(t *testing.T) {
	anime, movie := &fakeProvider{}, &fakeProvider{}
	sources := catalog.Sources{catalog.Anime: anime, catalog.Movie: movie}

	_, results := Discover(context.Background(), sources, Kind("movie"), 0)

	require.Len(t, results, 1)
	assert.Equal(t, catalog.Movie, results[0].Kind)
	assert.Equal(t, []int{1}, movie.discoverCalls())
	assert.Empty(t, anime.discoverCalls())
}

func TestSourceResult_MarshalJSON(t *testing.T) {
	b, err := SourceResult{Kind: catalog.TV, Err: catalog.ErrProviderUnavailable}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"tv","count":0,"error":"provider unavailable"}`, string(b))

	b, err = SourceResult{Kind: catalog.Anime, Count: 4}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"anime","count":4}`, string(b))
}
