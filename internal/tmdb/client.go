package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const defaultBaseURL = "https://api.themoviedb.org"

var (
	// ErrNotFound is returned when a title doesn't exist in TMDB.
	ErrNotFound = errors.New("title not found")
	// ErrNoCredentials is returned when neither a bearer token nor an API key is set.
	ErrNoCredentials = errors.New("set a TMDB bearer token (v4) or API key (v3)")
	// ErrInvalidKind is returned for kinds other than movie and tv.
	ErrInvalidKind = errors.New("invalid TMDB kind")
)

// Client is a TMDB API client.
type Client struct {
	bearer     string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithBearer authenticates with a v4 read access token.
// It takes precedence over an API key.
func WithBearer(token string) Option {
	return func(c *Client) {
		c.bearer = token
	}
}

// WithAPIKey authenticates with a v3 API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "tmdb")
	}
}

// NewClient creates a new TMDB client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasCredentials reports whether a bearer token or API key is configured.
func (c *Client) HasCredentials() bool {
	return c.bearer != "" || c.apiKey != ""
}

// Search finds movies or TV shows by free text.
func (c *Client) Search(ctx context.Context, kind Kind, query string) ([]Result, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	var p page
	if err := c.get(ctx, "/3/search/"+string(kind), url.Values{"query": {query}}, &p); err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	return p.Results, nil
}

// Discover returns a page of movies or TV shows ordered by popularity.
func (c *Client) Discover(ctx context.Context, kind Kind, pageNum int) ([]Result, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if pageNum < 1 {
		pageNum = 1
	}
	params := url.Values{
		"sort_by": {"popularity.desc"},
		"page":    {strconv.Itoa(pageNum)},
	}
	var p page
	if err := c.get(ctx, "/3/discover/"+string(kind), params, &p); err != nil {
		return nil, fmt.Errorf("discover %s: %w", kind, err)
	}
	return p.Results, nil
}

// Get fetches a single movie or TV show by TMDB ID.
func (c *Client) Get(ctx context.Context, kind Kind, id string) (*Detail, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	var d Detail
	if err := c.get(ctx, "/3/"+string(kind)+"/"+id, nil, &d); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return &d, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if !c.HasCredentials() {
		return ErrNoCredentials
	}
	if params == nil {
		params = url.Values{}
	}
	if c.bearer == "" {
		params.Set("api_key", c.apiKey)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c.log != nil {
		c.log.Debug("tmdb request", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TMDB API error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
