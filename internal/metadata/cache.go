// Package metadata caches catalog provider responses in SQLite and
// collapses identical concurrent requests.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/andrate/internal/catalog"
)

// Operation is the provider call a cached response came from.
type Operation string

const (
	OpSearch   Operation = "search"
	OpDiscover Operation = "discover"
	OpDetail   Operation = "detail"
)

// Key identifies one cached provider response.
type Key struct {
	Op   Operation
	Kind catalog.ItemType
	Arg  string // normalized query, page number or item ID
}

func SearchKey(kind catalog.ItemType, query string) Key {
	return Key{Op: OpSearch, Kind: kind, Arg: strings.ToLower(strings.Join(strings.Fields(query), " "))}
}

func DiscoverKey(kind catalog.ItemType, page int) Key {
	return Key{Op: OpDiscover, Kind: kind, Arg: strconv.Itoa(max(page, 1))}
}

func DetailKey(kind catalog.ItemType, id string) Key {
	return Key{Op: OpDetail, Kind: kind, Arg: id}
}

func (k Key) String() string {
	return string(k.Op) + ":" + string(k.Kind) + ":" + k.Arg
}

// Cache is the metadata_cache table. Expiry is stored in UTC so stored
// values compare in order.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get returns the live value stored under k.
func (c *Cache) Get(ctx context.Context, k Key) ([]byte, bool) {
	var (
		value     string
		expiresAt time.Time
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM metadata_cache WHERE key = ?`, k.String(),
	).Scan(&value, &expiresAt)
	if err != nil || !c.now().Before(expiresAt) {
		return nil, false
	}
	return []byte(value), true
}

// Put stores value under k for ttl, replacing what was there.
func (c *Cache) Put(ctx context.Context, k Key, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO metadata_cache (key, operation, kind, value, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		k.String(), string(k.Op), string(k.Kind), string(value), c.now().Add(ttl).UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", k, err)
	}
	return nil
}

// Prune deletes expired rows and reports how many went.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM metadata_cache WHERE expires_at <= ?`, c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return res.RowsAffected()
}

// Live counts unexpired entries per operation.
func (c *Cache) Live(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT operation, COUNT(*) FROM metadata_cache WHERE expires_at > ? GROUP BY operation`, c.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var (
			op string
			n  int
		)
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("cache stats: %w", err)
		}
		out[op] = n
	}
	return out, rows.Err()
}
