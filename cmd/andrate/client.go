package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/session"
)

// ErrNoUser is returned by library calls made without a user ID.
var ErrNoUser = errors.New("no user: pass --user or set ANDRATE_USER")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Client wraps HTTP calls to the andrate server.
type Client struct {
	baseURL    string
	userID     int64
	httpClient *http.Client
}

// NewClient creates a new andrate API client. userID may be 0 for catalog
// calls.
func NewClient(serverURL string, userID int64) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// newClient builds a client from the global flags.
func newClient() *Client {
	id := userID
	if id == 0 {
		id, _ = session.ParseUserID(os.Getenv("ANDRATE_USER"))
	}
	return NewClient(serverURL, id)
}

func (c *Client) do(method, path string, body, result any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID > 0 {
		req.Header.Set(session.UserHeader, strconv.FormatInt(c.userID, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Error
		}
		return apiErr
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) requireUser() error {
	if c.userID <= 0 {
		return ErrNoUser
	}
	return nil
}

// API response types (mirror server types)

type SourceResponse struct {
	Kind  catalog.ItemType `json:"kind"`
	Count int              `json:"count"`
	Error string           `json:"error,omitempty"`
}

type ResultsResponse struct {
	Items   []catalog.Item   `json:"items"`
	Sources []SourceResponse `json:"sources"`
	Stats   catalog.Stats    `json:"stats"`
	Page    int              `json:"page,omitempty"`
}

type LibraryResponse struct {
	Items  []*library.Entry       `json:"items"`
	Counts map[library.Status]int `json:"counts"`
}

type BreakerResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type StatusResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Kinds         []catalog.ItemType `json:"kinds"`
	Breakers      []BreakerResponse  `json:"breakers"`
	EventsDropped int64              `json:"events_dropped"`
	Cache         map[string]int     `json:"cache,omitempty"`
}

type ListEventsResponse struct {
	Items []events.RawEvent `json:"items"`
	Total int               `json:"total"`
}

// ItemRef identifies a catalog item in library requests.
type ItemRef struct {
	ItemID    string  `json:"item_id"`
	ItemType  string  `json:"item_type"`
	Title     string  `json:"title"`
	PosterURL *string `json:"poster_url,omitempty"`
}

type SaveRequest struct {
	Item   ItemRef  `json:"item"`
	Status string   `json:"status"`
	Rating *float64 `json:"rating"`
}

type RateRequest struct {
	Item   ItemRef `json:"item"`
	Rating float64 `json:"rating"`
	Status string  `json:"status,omitempty"`
}

// ViewOptions are the shared filter/sort query parameters.
type ViewOptions struct {
	MinRating float64
	Sort      string
}

func (o ViewOptions) apply(v url.Values) {
	if o.MinRating > 0 {
		v.Set("min_rating", strconv.FormatFloat(o.MinRating, 'f', -1, 64))
	}
	if o.Sort != "" {
		v.Set("sort", o.Sort)
	}
}

// Search runs a one-shot search. kind may be empty for all kinds.
func (c *Client) Search(q, kind string, opts ViewOptions) (*ResultsResponse, error) {
	v := url.Values{"q": {q}}
	if kind != "" {
		v.Set("kind", kind)
	}
	opts.apply(v)
	var resp ResultsResponse
	if err := c.get("/api/v1/search?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discover fetches a page of trending/popular items for kind ("all" for every kind).
func (c *Client) Discover(kind string, page int, opts ViewOptions) (*ResultsResponse, error) {
	if kind == "" {
		kind = "all"
	}
	v := url.Values{"page": {strconv.Itoa(max(page, 1))}}
	opts.apply(v)
	var resp ResultsResponse
	if err := c.get("/api/v1/discover/"+url.PathEscape(kind)+"?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detail fetches the full record for one item.
func (c *Client) Detail(kind, id string) (*catalog.ItemDetail, error) {
	var d catalog.ItemDetail
	if err := c.get("/api/v1/detail/"+url.PathEscape(kind)+"/"+url.PathEscape(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Library lists the user's entries.
func (c *Client) Library(itemType, status, q, sort string) (*LibraryResponse, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}
	v := url.Values{}
	for key, val := range map[string]string{"type": itemType, "status": status, "q": q, "sort": sort} {
		if val != "" {
			v.Set(key, val)
		}
	}
	path := "/api/v1/library"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var resp LibraryResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Save records status and rating for an item.
func (c *Client) Save(req SaveRequest) (*library.Entry, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}
	var e library.Entry
	if err := c.do(http.MethodPut, "/api/v1/library", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Rate applies a rating selection; selecting the stored rating clears it.
func (c *Client) Rate(req RateRequest) (*library.Entry, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}
	var e library.Entry
	if err := c.do(http.MethodPost, "/api/v1/library/rate", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Status returns server health and breaker states.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EventFilter narrows an events query. Zero values match everything.
type EventFilter struct {
	Since      string // RFC 3339 time or a duration such as 1h
	EntityType string
	EntityID   int64
}

// Events returns the most recent events matching f.
func (c *Client) Events(limit int, f EventFilter) (*ListEventsResponse, error) {
	v := url.Values{"limit": {strconv.Itoa(limit)}}
	if f.Since != "" {
		v.Set("since", f.Since)
	}
	if f.EntityType != "" {
		v.Set("entity_type", f.EntityType)
		v.Set("entity_id", strconv.FormatInt(f.EntityID, 10))
	}
	var resp ListEventsResponse
	if err := c.get("/api/v1/events?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// surfaceURL returns the WebSocket URL of a live search surface.
func (c *Client) surfaceURL(kind string) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/surface")
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if kind != "" {
		u.RawQuery = url.Values{"kind": {kind}}.Encode()
	}
	return u.String(), nil
}
