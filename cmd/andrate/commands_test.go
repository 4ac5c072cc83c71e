package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/rating"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"search", "discover", "detail", "library", "rate", "status", "events", "live"} {
		assert.True(t, names[want], "missing %q command", want)
	}

	var sub []string
	for _, c := range libraryCmd.Commands() {
		sub = append(sub, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "save"}, sub)
}

func TestSearchCmd_PrintsResultsAndFailedSources(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/search").
		ExpectQuery(url.Values{"q": {"cowboy bebop"}, "sort": {"title"}}).
		RespondJSON(ResultsResponse{
			Items: []catalog.Item{
				{ItemID: "1", ItemType: catalog.Anime, Title: "Cowboy Bebop", Year: ptr(1998), CommunityRating: ptr(8.6)},
			},
			Sources: []SourceResponse{
				{Kind: catalog.Anime, Count: 1},
				{Kind: catalog.TV, Error: "provider unavailable"},
			},
			Stats: catalog.Stats{Count: 1, Rated: 1, AverageRating: 8.6},
		}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, searchCmd, []string{"cowboy", "bebop"}, map[string]string{"sort": "title"})
	require.NoError(t, err)
	assert.Contains(t, out, "Cowboy Bebop (1998)")
	assert.Contains(t, out, " 8.6")
	assert.Contains(t, out, "! tv: provider unavailable")
	assert.Contains(t, out, "1 results, 1 rated, average 8.6")
}

func TestSearchCmd_JSON(t *testing.T) {
	srv := newMockServer(t).
		RespondJSON(ResultsResponse{Items: []catalog.Item{{ItemID: "550", ItemType: catalog.Movie, Title: "Fight Club"}}}).
		Build()
	withServer(t, srv.URL, 0)
	jsonOutput = true

	out, err := runCommand(t, searchCmd, []string{"fight"}, nil)
	require.NoError(t, err)

	var resp ResultsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Fight Club", resp.Items[0].Title)
}

func TestSearchCmd_ServerError(t *testing.T) {
	srv := newMockServer(t).
		RespondAPIError(http.StatusBadRequest, "VALIDATION", "q is required").
		Build()
	withServer(t, srv.URL, 0)

	_, err := runCommand(t, searchCmd, []string{" "}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
	assert.Contains(t, err.Error(), "q is required")
}

func TestDiscoverCmd_Flags(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/discover/anime").
		ExpectQuery(url.Values{"page": {"3"}, "min_rating": {"7"}}).
		RespondJSON(ResultsResponse{Page: 3}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, discoverCmd, nil, map[string]string{"kind": "anime", "page": "3", "min-rating": "7"})
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestDetailCmd(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/detail/anime/1").
		RespondJSON(catalog.ItemDetail{Item: catalog.Item{
			ItemID: "1", ItemType: catalog.Anime, Title: "Cowboy Bebop",
			CommunityRating: ptr(8.6), CommunityRatingCount: ptr(120),
			Genres: []string{"Action", "Sci-Fi"}, Overview: ptr("Space bounty hunters."),
		}}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, detailCmd, []string{"anime", "1"}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Cowboy Bebop [anime 1]")
	assert.Contains(t, out, "8.6 (120 votes)")
	assert.Contains(t, out, "Action, Sci-Fi")
	assert.Contains(t, out, "Space bounty hunters.")
}

func TestLibraryListCmd_PrintsCounts(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/library").
		ExpectUser("7").
		ExpectQuery(url.Values{"status": {"completed"}}).
		RespondJSON(LibraryResponse{
			Items: []*library.Entry{
				{ItemID: "550", ItemType: catalog.Movie, Title: "Fight Club", Status: library.StatusCompleted, Rating: rating.MustNew(9)},
			},
			Counts: map[library.Status]int{library.StatusCompleted: 1, library.StatusWatching: 2},
		}).
		Build()
	withServer(t, srv.URL, 7)

	out, err := runCommand(t, libraryListCmd, nil, map[string]string{"status": "completed"})
	require.NoError(t, err)
	assert.Contains(t, out, "Fight Club")
	assert.Contains(t, out, " 9.0")
	assert.Contains(t, out, "planning 0 | watching 2 | completed 1 | abandoned 0")
}

func TestLibraryListCmd_NoUser(t *testing.T) {
	withServer(t, "http://localhost:1", 0)

	_, err := runCommand(t, libraryListCmd, nil, nil)
	require.ErrorIs(t, err, ErrNoUser)
}

// libraryServer serves detail lookups and records library writes.
func libraryServer(t *testing.T, got *[]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/detail/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, catalog.ItemDetail{Item: catalog.Item{
			ItemID: r.PathValue("id"), ItemType: catalog.ItemType(r.PathValue("kind")),
			Title: "Looked Up", PosterURL: ptr("https://img.example/p.jpg"),
		}})
	})
	write := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.Header.Get("X-User-ID"))
		var body struct {
			Item   ItemRef  `json:"item"`
			Status string   `json:"status"`
			Rating *float64 `json:"rating"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*got, _ = json.Marshal(body)
		r2, _ := rating.FromPtr(body.Rating)
		respondJSON(t, w, library.Entry{
			ItemID: body.Item.ItemID, ItemType: catalog.ItemType(body.Item.ItemType), Title: body.Item.Title,
			Status: library.Status(body.Status), Rating: r2,
		})
	}
	mux.HandleFunc("PUT /api/v1/library", write)
	mux.HandleFunc("POST /api/v1/library/rate", write)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLibrarySaveCmd_LooksUpTitle(t *testing.T) {
	var got []byte
	withServer(t, libraryServer(t, &got).URL, 7)

	out, err := runCommand(t, librarySaveCmd, []string{"movie", "550"}, map[string]string{"status": "Watching", "rating": "7.5"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"item_id":"550","item_type":"movie","title":"Looked Up","poster_url":"https://img.example/p.jpg"},"status":"watching","rating":7.5}`, string(got))
	assert.Contains(t, out, "Looked Up [movie 550]: watching, rating 7.5")
}

func TestLibrarySaveCmd_TitleFlagSkipsLookup(t *testing.T) {
	var got []byte
	withServer(t, libraryServer(t, &got).URL, 7)

	_, err := runCommand(t, librarySaveCmd, []string{"anime", "1"}, map[string]string{"status": "planning", "title": "Bebop", "rating": "none"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"item_id":"1","item_type":"anime","title":"Bebop"},"status":"planning","rating":null}`, string(got))
}

func TestLibrarySaveCmd_InvalidInput(t *testing.T) {
	withServer(t, "http://localhost:1", 7)

	_, err := runCommand(t, librarySaveCmd, []string{"anime", "1"}, map[string]string{"status": "dropped"})
	require.ErrorIs(t, err, library.ErrValidation)

	_, err = runCommand(t, librarySaveCmd, []string{"anime", "1"}, map[string]string{"status": "planning", "rating": "7.3"})
	require.ErrorIs(t, err, rating.ErrInvalid)
}

func TestRateCmd_StarPosition(t *testing.T) {
	var got []byte
	withServer(t, libraryServer(t, &got).URL, 7)

	out, err := runCommand(t, rateCmd, []string{"tv", "1399"}, map[string]string{"star": "9", "pos": "0.3", "title": "Thrones"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"item_id":"1399","item_type":"tv","title":"Thrones"},"status":"","rating":8.5}`, string(got))
	assert.Contains(t, out, "rating 8.5")
}

func TestRateCmd_ValueAndStatus(t *testing.T) {
	var got []byte
	withServer(t, libraryServer(t, &got).URL, 7)

	_, err := runCommand(t, rateCmd, []string{"anime", "1", "10"}, map[string]string{"status": "WATCHING", "title": "Bebop"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"item_id":"1","item_type":"anime","title":"Bebop"},"status":"watching","rating":10}`, string(got))
}

func TestSelectedRating(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		flags   map[string]string
		want    rating.Rating
		wantErr bool
	}{
		{"value", []string{"a", "1", "6.5"}, nil, rating.MustNew(6.5), false},
		{"left half of first star", []string{"a", "1"}, map[string]string{"star": "1", "pos": "0.2"}, rating.MustNew(0.5), false},
		{"right half of last star", []string{"a", "1"}, map[string]string{"star": "10"}, rating.MustNew(10), false},
		{"both forms", []string{"a", "1", "5"}, map[string]string{"star": "3"}, rating.None, true},
		{"neither", []string{"a", "1"}, nil, rating.None, true},
		{"star out of range", []string{"a", "1"}, map[string]string{"star": "11"}, rating.None, true},
		{"unset value", []string{"a", "1", "none"}, nil, rating.None, true},
		{"off step", []string{"a", "1", "3.2"}, nil, rating.None, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().Int("star", 0, "")
			cmd.Flags().Float64("pos", 1, "")
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}
			got, err := selectedRating(cmd, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusCmd(t *testing.T) {
	srv := newMockServer(t).
		ExpectPath("/api/v1/status").
		RespondJSON(StatusResponse{
			Status:        "degraded",
			Version:       "1.0.0",
			UptimeSeconds: 90,
			Kinds:         []catalog.ItemType{catalog.Anime, catalog.TV, catalog.Movie},
			Breakers:      []BreakerResponse{{Name: "anilist", State: "closed"}, {Name: "tmdb", State: "open"}},
			Cache:         map[string]int{"search": 3, "detail": 1},
		}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, statusCmd, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "(degraded)")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "tmdb     open")
	assert.Contains(t, out, "Cache:    search 3, discover 0, detail 1")
	assert.NotContains(t, out, "Dropped")
}

func TestEventsCmd_Empty(t *testing.T) {
	srv := newMockServer(t).
		ExpectQuery(url.Values{"limit": {"20"}}).
		RespondJSON(ListEventsResponse{}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, eventsCmd, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "No events\n", out)
}

func TestEventsCmd_DescribesPayloads(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	srv := newMockServer(t).
		RespondJSON(ListEventsResponse{Items: []events.RawEvent{
			{ID: 2, EventType: events.EventSurfaceClosed, EntityType: events.EntitySurface, EntityID: 7, OccurredAt: at,
				Payload: `{"surface_id":"s1","queries":3,"duration_ms":1500}`},
			{ID: 1, EventType: events.EventEntrySaved, EntityType: events.EntityLibraryEntry, EntityID: 4, OccurredAt: at,
				Payload: `{"user_id":7,"item_type":"movie","title":"Fight Club","status":"completed","rating":9,"created":true}`},
		}, Total: 2}).
		Build()
	withServer(t, srv.URL, 0)

	out, err := runCommand(t, eventsCmd, nil, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `user 7 added movie "Fight Club": completed, rated 9.0`)
	assert.Contains(t, lines[1], "surface s1 closed after 3 queries in 1.5s")
	assert.True(t, strings.HasPrefix(lines[0], "2026-03-01 12:00:00"))
}

func TestEventsCmd_EntityNeedsID(t *testing.T) {
	withServer(t, "http://localhost:1", 0)

	_, err := runCommand(t, eventsCmd, nil, map[string]string{"entity": "surface"})
	assert.ErrorContains(t, err, "--entity requires --id")
}

func TestDescribeEvent_Fallbacks(t *testing.T) {
	reg := events.DefaultRegistry()

	got := describeEvent(reg, events.RawEvent{EventType: "import.finished", EntityType: "job", EntityID: 3, Payload: "{}"})
	assert.Equal(t, "job #3", got)

	got = describeEvent(reg, events.RawEvent{EventType: events.EventSurfaceOpened, Payload: `{"surface_id":"s9","user_id":2,"kind":"all"}`})
	assert.Equal(t, "surface s9 opened by user 2 (all)", got)

	got = describeEvent(reg, events.RawEvent{EventType: events.EventEntrySaved, Payload: `{"user_id":2,"item_type":"tv","title":"Dark","status":"watching"}`})
	assert.Equal(t, `user 2 updated tv "Dark": watching, unrated`, got)
}
