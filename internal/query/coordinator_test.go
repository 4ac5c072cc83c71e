package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/metrics"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig(kind Kind) Config {
	cfg := DefaultConfig(kind)
	cfg.Debounce = 20 * time.Millisecond
	return cfg
}

func startCoordinator(t *testing.T, sources catalog.Sources, cfg Config) *Coordinator {
	t.Helper()
	c := New(sources, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c
}

func waitSnapshot(t *testing.T, c *Coordinator, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.Latest()) }, waitFor, tick)
	return c.Latest()
}

func settledIn(mode Mode) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.Settled && s.Mode == mode }
}

func TestCoordinator_InitialDiscoveryAllKinds(t *testing.T) {
	anime := &fakeProvider{discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
		return items(catalog.Anime, "Frieren"), nil
	}}
	tv := &fakeProvider{discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
		return items(catalog.TV, "Andor"), nil
	}}
	movie := &fakeProvider{discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
		return items(catalog.Movie, "Dune"), nil
	}}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime, catalog.TV: tv, catalog.Movie: movie}, testConfig(KindAll))

	snap := waitSnapshot(t, c, settledIn(ModeIdle))
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, []string{"Frieren", "Andor", "Dune"}, itemTitles(snap.Items))
	assert.Equal(t, uint64(1), snap.State.Epoch)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 3, snap.Stats.Count)
	assert.Equal(t, []int{1}, movie.discoverCalls())
}

func TestCoordinator_DebounceCoalescesKeystrokes(t *testing.T) {
	anime := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		return items(catalog.Anime, "Attack on Titan"), nil
	}}
	cfg := testConfig(Kind("anime"))
	cfg.Debounce = 50 * time.Millisecond
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, cfg)
	waitSnapshot(t, c, settledIn(ModeIdle))

	for _, text := range []string{"A", "At", "Att", "Atta", "Attac"} {
		require.NoError(t, c.Input(text))
	}

	require.Eventually(t, func() bool { return c.Latest().Phase == PhaseDebouncing }, waitFor, tick)
	assert.Empty(t, anime.searchCalls(), "no query before the quiet period")

	snap := waitSnapshot(t, c, settledIn(ModeSearch))
	assert.Equal(t, []string{"Attac"}, anime.searchCalls())
	assert.Equal(t, PhaseSettled, snap.Phase)
	assert.Equal(t, "Attac", snap.State.Text)
	assert.Equal(t, uint64(2), snap.State.Epoch, "keystrokes alone do not bump the epoch")
}

func TestCoordinator_ShortInputStaysIdle(t *testing.T) {
	anime := &fakeProvider{}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.Input(" at "))
	require.Eventually(t, func() bool {
		s := c.Latest()
		return s.Phase == PhaseIdle && s.Settled && s.State.Text == " at "
	}, waitFor, tick)

	assert.Empty(t, anime.searchCalls())
	assert.Equal(t, []int{1}, anime.discoverCalls(), "discovery is not refetched")
	assert.Equal(t, int64(1), c.FanOuts())
}

func TestCoordinator_StaleEpochDropped(t *testing.T) {
	gate := make(chan struct{})
	anime := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		if q == "Att" {
			<-gate
			return items(catalog.Anime, "Attila"), nil
		}
		return items(catalog.Anime, "Attack on Titan"), nil
	}}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
	waitSnapshot(t, c, settledIn(ModeIdle))
	staleBefore := testutil.ToFloat64(metrics.StaleResults)

	// e1 starts and stalls.
	require.NoError(t, c.Input("Att"))
	require.Eventually(t, func() bool { return len(anime.searchCalls()) == 1 }, waitFor, tick)

	// e2 starts after e1 and settles first.
	require.NoError(t, c.Input("Attack"))
	snap := waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.State.Text == "Attack" })
	assert.Equal(t, []string{"Attack on Titan"}, itemTitles(snap.Items))
	e2 := snap.State.Epoch

	// e1 settles last and must not replace e2.
	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleResults) >= staleBefore+1
	}, waitFor, tick)

	final := c.Latest()
	assert.Equal(t, e2, final.State.Epoch)
	assert.Equal(t, []string{"Attack on Titan"}, itemTitles(final.Items))
}

func TestCoordinator_AttackPartialFailure(t *testing.T) {
	anime := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		return items(catalog.Anime, "Attack on Titan", "Attack on Titan: Junior High"), nil
	}}
	tv := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		return nil, errors.New("503 Service Unavailable")
	}}
	movie := &fakeProvider{search: func(ctx context.Context, q string) ([]catalog.Item, error) {
		return items(catalog.Movie, "Attack the Block"), nil
	}}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime, catalog.TV: tv, catalog.Movie: movie}, testConfig(KindAll))
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.Input("Attack"))
	snap := waitSnapshot(t, c, settledIn(ModeSearch))

	assert.Equal(t, PhaseError, snap.Phase)
	assert.True(t, snap.Failed())
	assert.Equal(t, []string{"Attack on Titan", "Attack on Titan: Junior High", "Attack the Block"}, itemTitles(snap.Items))
	require.Len(t, snap.Sources, 3)
	assert.Equal(t, 2, snap.Sources[0].Count)
	assert.ErrorIs(t, snap.Sources[1].Err, catalog.ErrProviderUnavailable)
	assert.Equal(t, 1, snap.Sources[2].Count)

	// Errors are not terminal: the next query runs normally.
	tv.search = nil
	require.NoError(t, c.Input("Attack on"))
	snap = waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.State.Text == "Attack on" })
	assert.Equal(t, PhaseSettled, snap.Phase)
}

func TestCoordinator_ClearReturnsToDiscovery(t *testing.T) {
	anime := &fakeProvider{
		search: func(ctx context.Context, q string) ([]catalog.Item, error) {
			return items(catalog.Anime, "Mushishi"), nil
		},
		discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
			return items(catalog.Anime, "Trending"), nil
		},
	}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.Input("Mushi"))
	searched := waitSnapshot(t, c, settledIn(ModeSearch))

	require.NoError(t, c.Clear())
	snap := waitSnapshot(t, c, settledIn(ModeIdle))
	assert.Empty(t, snap.State.Text)
	assert.Greater(t, snap.State.Epoch, searched.State.Epoch)
	assert.Equal(t, []string{"Trending"}, itemTitles(snap.Items))
	assert.Len(t, anime.discoverCalls(), 2)
}

func TestCoordinator_ClearCancelsPendingInput(t *testing.T) {
	anime := &fakeProvider{}
	cfg := testConfig(Kind("anime"))
	cfg.Debounce = 50 * time.Millisecond
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, cfg)
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.Input("Cowboy"))
	require.NoError(t, c.Clear())
	waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.State.Epoch == 2 })

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, anime.searchCalls())
}

func TestCoordinator_ClearDropsInFlightSearch(t *testing.T) {
	for name, empty := range map[string]func(*Coordinator) error{
		"clear":       func(c *Coordinator) error { return c.Clear() },
		"empty input": func(c *Coordinator) error { return c.Input("") },
		"blank input": func(c *Coordinator) error { return c.Input("   ") },
	} {
		t.Run(name, func(t *testing.T) {
			gate := make(chan struct{})
			anime := &fakeProvider{
				search: func(ctx context.Context, q string) ([]catalog.Item, error) {
					<-gate
					return items(catalog.Anime, "Attack on Titan"), nil
				},
				discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
					return items(catalog.Anime, "Frieren"), nil
				},
			}
			c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
			waitSnapshot(t, c, settledIn(ModeIdle))
			staleBefore := testutil.ToFloat64(metrics.StaleResults)

			require.NoError(t, c.Input("Attack"))
			require.Eventually(t, func() bool { return c.Latest().Phase == PhaseQuerying }, waitFor, tick)

			require.NoError(t, empty(c))
			snap := waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.Mode == ModeIdle && s.State.Epoch == 3 })
			assert.Empty(t, snap.State.Text)
			assert.Equal(t, PhaseIdle, snap.Phase)
			assert.Equal(t, []string{"Frieren"}, itemTitles(snap.Items))
			assert.Equal(t, []int{1, 1}, anime.discoverCalls())

			close(gate)
			require.Eventually(t, func() bool {
				return testutil.ToFloat64(metrics.StaleResults) >= staleBefore+1
			}, waitFor, tick)

			final := c.Latest()
			assert.Equal(t, ModeIdle, final.Mode)
			assert.Equal(t, uint64(3), final.State.Epoch)
			assert.Equal(t, []string{"Frieren"}, itemTitles(final.Items))
		})
	}
}


func TestCoordinator_SetFilterReappliesPipeline(t *testing.T) {
	anime := &fakeProvider{discover: func(ctx context.Context, page int) ([]catalog.Item, error) {
		in := items(catalog.Anime, "Low", "High", "Mid")
		return []catalog.Item{rated(in[0], 5), rated(in[1], 9), rated(in[2], 7)}, nil
	}}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
	before := waitSnapshot(t, c, settledIn(ModeIdle))
	assert.Equal(t, []string{"Low", "High", "Mid"}, itemTitles(before.Items))

	require.NoError(t, c.SetFilter(catalog.FilterSort{MinRating: 6, SortBy: catalog.SortRating}))
	snap := waitSnapshot(t, c, func(s Snapshot) bool { return s.Filter.MinRating == 6 })

	assert.Equal(t, []string{"High", "Mid"}, itemTitles(snap.Items))
	assert.Len(t, snap.Raw, 3)
	assert.Equal(t, before.State.Epoch, snap.State.Epoch, "filtering does not refetch")
	assert.Equal(t, []int{1}, anime.discoverCalls())
}

func TestCoordinator_SetKindRerunsSearch(t *testing.T) {
	anime, tv, movie := &fakeProvider{}, &fakeProvider{}, &fakeProvider{}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime, catalog.TV: tv, catalog.Movie: movie}, testConfig(KindAll))
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.Input("Andor"))
	first := waitSnapshot(t, c, settledIn(ModeSearch))
	require.Len(t, first.Sources, 3)

	require.NoError(t, c.SetKind(Kind("tv")))
	snap := waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.State.Kind == Kind("tv") })

	assert.Equal(t, ModeSearch, snap.Mode)
	assert.Greater(t, snap.State.Epoch, first.State.Epoch)
	require.Len(t, snap.Sources, 1)
	assert.Equal(t, catalog.TV, snap.Sources[0].Kind)
	assert.Equal(t, []string{"Andor", "Andor"}, tv.searchCalls())
	assert.Equal(t, []string{"Andor"}, anime.searchCalls())
}

func TestCoordinator_SetPageRerunsDiscovery(t *testing.T) {
	movie := &fakeProvider{}
	c := startCoordinator(t, catalog.Sources{catalog.Movie: movie}, testConfig(Kind("movie")))
	waitSnapshot(t, c, settledIn(ModeIdle))

	require.NoError(t, c.SetPage(3))
	snap := waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.Page == 3 })
	assert.Equal(t, uint64(2), snap.State.Epoch)

	require.NoError(t, c.SetPage(-1))
	waitSnapshot(t, c, func(s Snapshot) bool { return s.Settled && s.State.Epoch == 3 })
	assert.Equal(t, []int{1, 3, 1}, movie.discoverCalls())
}

func TestCoordinator_UpdatesLatestWins(t *testing.T) {
	anime := &fakeProvider{}
	c := startCoordinator(t, catalog.Sources{catalog.Anime: anime}, testConfig(Kind("anime")))
	waitSnapshot(t, c, settledIn(ModeIdle))

	for i := 1; i <= 5; i++ {
		require.NoError(t, c.SetFilter(catalog.FilterSort{MinRating: float64(i), SortBy: catalog.SortPopularity}))
	}

	// Intermediate snapshots may be skipped but the newest one arrives.
	require.Eventually(t, func() bool {
		select {
		case s := <-c.Updates():
			return s.Filter.MinRating == 5
		default:
			return false
		}
	}, waitFor, tick)
}

func TestCoordinator_StoppedAfterCancel(t *testing.T) {
	c := New(catalog.Sources{catalog.Anime: &fakeProvider{}}, testConfig(Kind("anime")), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.ErrorIs(t, c.Input("late"), ErrStopped)
}
