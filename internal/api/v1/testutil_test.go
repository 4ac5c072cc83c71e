package v1

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/migrations"
	"github.com/vmunix/andrate/internal/query"
	"github.com/vmunix/andrate/internal/session"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)
	return db
}

// stubProvider serves canned items per kind and records discover pages.
type stubProvider struct {
	mu      sync.Mutex
	items   map[catalog.ItemType][]catalog.Item
	details map[string]*catalog.ItemDetail
	pages   []int
}

func (p *stubProvider) Search(ctx context.Context, kind catalog.ItemType, q string) ([]catalog.Item, error) {
	return p.items[kind], nil
}

func (p *stubProvider) Discover(ctx context.Context, kind catalog.ItemType, page int) ([]catalog.Item, error) {
	p.mu.Lock()
	p.pages = append(p.pages, page)
	p.mu.Unlock()
	return p.items[kind], nil
}

func (p *stubProvider) Detail(ctx context.Context, kind catalog.ItemType, id string) (*catalog.ItemDetail, error) {
	if d, ok := p.details[string(kind)+":"+id]; ok {
		return d, nil
	}
	return nil, catalog.ErrNotFound
}

func (p *stubProvider) discoverPages() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.pages...)
}

func rated(kind catalog.ItemType, id, title string, r float64) catalog.Item {
	return catalog.Item{ItemID: id, ItemType: kind, Title: title, CommunityRating: &r, Genres: []string{}}
}

func newStub() *stubProvider {
	return &stubProvider{
		items: map[catalog.ItemType][]catalog.Item{
			catalog.Anime: {rated(catalog.Anime, "16498", "Attack on Titan", 8.5), rated(catalog.Anime, "1", "Cowboy Bebop", 8.6)},
			catalog.TV:    {rated(catalog.TV, "1429", "Attack on Titan", 8.7)},
			catalog.Movie: {rated(catalog.Movie, "550", "Fight Club", 7.5)},
		},
		details: map[string]*catalog.ItemDetail{
			"movie:550": {Item: rated(catalog.Movie, "550", "Fight Club", 8.4)},
		},
	}
}

func stubSources(p catalog.Provider) catalog.Sources {
	return catalog.Sources{catalog.Anime: p, catalog.TV: p, catalog.Movie: p}
}

// testEnv is a running API backed by an in-memory library.
type testEnv struct {
	srv      *httptest.Server
	stub     *stubProvider
	eventLog *events.EventLog
	bus      *events.Bus
}

func fastSurface(kind query.Kind) query.Config {
	cfg := query.DefaultConfig(kind)
	cfg.Debounce = 10 * time.Millisecond
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*ServerDeps)) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, nil)
	t.Cleanup(func() { _ = bus.Close() })
	stub := newStub()

	deps := ServerDeps{
		Sources:  stubSources(stub),
		Library:  library.NewSynchronizer(library.NewStore(db), bus, nil),
		Bus:      bus,
		EventLog: eventLog,
		Surface:  fastSurface,
		Version:  "test",
	}
	for _, m := range mutate {
		m(&deps)
	}
	return newTestEnvWithDeps(t, deps, stub, eventLog, bus)
}

func newTestEnvWithDeps(t *testing.T, deps ServerDeps, stub *stubProvider, eventLog *events.EventLog, bus *events.Bus) *testEnv {
	t.Helper()
	s, err := New(deps, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, stub: stub, eventLog: eventLog, bus: bus}
}

// do sends a request as userID (0 for anonymous) and returns the response
// with its body read.
func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if userID != 0 {
		req.Header.Set(session.UserHeader, strconv.FormatInt(userID, 10))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

// sourceJSON mirrors the rendered query.SourceResult.
type sourceJSON struct {
	Kind  catalog.ItemType `json:"kind"`
	Count int              `json:"count"`
	Error string           `json:"error"`
}

type resultsJSON struct {
	Items   []catalog.Item `json:"items"`
	Sources []sourceJSON   `json:"sources"`
	Stats   catalog.Stats  `json:"stats"`
	Page    int            `json:"page"`
}

func titles(items []catalog.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it.ItemType) + ":" + it.Title
	}
	return out
}
