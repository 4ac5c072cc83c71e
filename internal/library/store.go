package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmunix/andrate/internal/catalog"
)

// querier abstracts *sql.DB and *sql.Tx for shared query logic.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is the SQLite-backed library.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new library store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, now: s.now}, nil
}

// Tx wraps a database transaction with the same methods as Store.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// mapSQLiteError converts SQLite errors to custom error types.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	// modernc.org/sqlite wraps errors; check error message for constraint violations
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicate
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") ||
		strings.Contains(errStr, "NOT NULL constraint failed") {
		return ErrConstraint
	}
	return err
}

const entryColumns = `id, user_id, item_id, item_type, title, poster_url, status, rating, added_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	err := row.Scan(&e.ID, &e.UserID, &e.ItemID, &e.ItemType, &e.Title, &e.PosterURL, &e.Status, &e.Rating, &e.AddedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// upsertEntry inserts e or, when the user already has the item, overwrites
// title, poster, status and rating. added_at is kept from the first save.
func upsertEntry(ctx context.Context, q querier, now time.Time, e *Entry) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO library (user_id, item_id, item_type, title, poster_url, status, rating, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, item_id, item_type) DO UPDATE SET
			title = excluded.title,
			poster_url = excluded.poster_url,
			status = excluded.status,
			rating = excluded.rating,
			updated_at = excluded.updated_at
		RETURNING id`,
		e.UserID, e.ItemID, e.ItemType, e.Title, e.PosterURL, e.Status, e.Rating, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert entry %s for user %d: %w", e.Key(), e.UserID, mapSQLiteError(err))
	}
	return id, nil
}

func getEntryByID(ctx context.Context, q querier, id int64) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM library WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, mapSQLiteError(err))
	}
	return e, nil
}

func getEntry(ctx context.Context, q querier, userID int64, key catalog.Key) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM library WHERE user_id = ? AND item_id = ? AND item_type = ?`,
		userID, key.ItemID, key.ItemType,
	))
	if err != nil {
		return nil, fmt.Errorf("get entry %s for user %d: %w", key, userID, mapSQLiteError(err))
	}
	return e, nil
}

func listEntries(ctx context.Context, q querier, f EntryFilter) ([]*Entry, error) {
	conditions := []string{"user_id = ?"}
	args := []any{f.UserID}

	if f.ItemType != nil {
		conditions = append(conditions, "item_type = ?")
		args = append(args, *f.ItemType)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}

	query := `SELECT ` + entryColumns + ` FROM library WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return results, nil
}

// Upsert saves e and returns the stored row. The write and the read-back
// run in one transaction.
func (s *Store) Upsert(ctx context.Context, e *Entry) (*Entry, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	saved, err := tx.Upsert(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return saved, nil
}

// Upsert saves e within the transaction and returns the stored row.
func (t *Tx) Upsert(ctx context.Context, e *Entry) (*Entry, error) {
	id, err := upsertEntry(ctx, t.tx, t.now().UTC(), e)
	if err != nil {
		return nil, err
	}
	return getEntryByID(ctx, t.tx, id)
}

// Get returns the user's entry for key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID int64, key catalog.Key) (*Entry, error) {
	return getEntry(ctx, s.db, userID, key)
}

// Get returns the user's entry for key within the transaction.
func (t *Tx) Get(ctx context.Context, userID int64, key catalog.Key) (*Entry, error) {
	return getEntry(ctx, t.tx, userID, key)
}

// List returns the user's entries matching f in insertion order.
func (s *Store) List(ctx context.Context, f EntryFilter) ([]*Entry, error) {
	return listEntries(ctx, s.db, f)
}

// List returns entries matching f within the transaction.
func (t *Tx) List(ctx context.Context, f EntryFilter) ([]*Entry, error) {
	return listEntries(ctx, t.tx, f)
}
