package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/metrics"
	"github.com/vmunix/andrate/internal/rating"
)

//go:generate mockgen -destination=mocks/mock_entry_store.go -package=mocks . EntryStore

// EntryStore persists library entries. *Store implements it.
type EntryStore interface {
	Upsert(ctx context.Context, e *Entry) (*Entry, error)
	Get(ctx context.Context, userID int64, key catalog.Key) (*Entry, error)
	List(ctx context.Context, f EntryFilter) ([]*Entry, error)
}

// Publisher receives library events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Synchronizer validates library edits and reconciles them into the store.
type Synchronizer struct {
	store EntryStore
	bus   Publisher
	log   *slog.Logger
}

// NewSynchronizer creates a Synchronizer. bus may be nil.
func NewSynchronizer(store EntryStore, bus Publisher, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		store: store,
		bus:   bus,
		log:   log.With("component", "library"),
	}
}

// Save records status and rating for item in the user's library, replacing
// any previous values for the same item. Validation happens before any
// store call; a store failure is reported as ErrStoreUnavailable.
func (s *Synchronizer) Save(ctx context.Context, userID int64, item catalog.Item, status Status, r rating.Rating) (*Entry, error) {
	if userID <= 0 {
		metrics.LibrarySaves.WithLabelValues("unauthenticated").Inc()
		return nil, ErrUnauthenticated
	}
	if err := validateSave(item, status); err != nil {
		metrics.LibrarySaves.WithLabelValues("invalid").Inc()
		return nil, err
	}

	saved, err := s.store.Upsert(ctx, &Entry{
		UserID:    userID,
		ItemID:    item.ItemID,
		ItemType:  item.ItemType,
		Title:     item.Title,
		PosterURL: item.PosterURL,
		Status:    status,
		Rating:    r,
	})
	if err != nil {
		metrics.LibrarySaves.WithLabelValues("store_error").Inc()
		s.log.Error("save failed", "user_id", userID, "item", item.Key().String(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	metrics.LibrarySaves.WithLabelValues("ok").Inc()

	s.log.Info("entry saved", "user_id", userID, "item", saved.Key().String(), "status", saved.Status, "rating", saved.Rating.String())
	s.publish(ctx, saved)
	return saved, nil
}

// Rate applies a rating selection to item. Selecting the stored rating
// again clears it. An item not yet in the library is saved with
// defaultStatus; an existing entry keeps its status.
func (s *Synchronizer) Rate(ctx context.Context, userID int64, item catalog.Item, proposed rating.Rating, defaultStatus Status) (*Entry, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	if err := validateSave(item, defaultStatus); err != nil {
		return nil, err
	}

	status, current := defaultStatus, rating.None
	existing, err := s.store.Get(ctx, userID, item.Key())
	switch {
	case err == nil:
		status, current = existing.Status, existing.Rating
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return s.Save(ctx, userID, item, status, rating.Toggle(current, proposed))
}

// List returns the user's entries shaped by spec. Type and status filters
// are pushed down to the store.
func (s *Synchronizer) List(ctx context.Context, userID int64, spec ViewSpec) ([]*Entry, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	entries, err := s.store.List(ctx, EntryFilter{UserID: userID, ItemType: spec.ItemType, Status: spec.Status})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return View(entries, spec), nil
}

func (s *Synchronizer) publish(ctx context.Context, e *Entry) {
	if s.bus == nil {
		return
	}
	ev := &events.EntrySaved{
		Header:    events.Stamp(events.EventEntrySaved, events.EntityLibraryEntry, e.ID),
		UserID:    e.UserID,
		ItemID:    e.ItemID,
		ItemType:  string(e.ItemType),
		Title:     e.Title,
		Status:    string(e.Status),
		Rating:    e.Rating.Ptr(),
		Created:   e.AddedAt.Equal(e.UpdatedAt),
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("publish failed", "entry_id", e.ID, "error", err)
	}
}

func validateSave(item catalog.Item, status Status) error {
	switch {
	case strings.TrimSpace(item.ItemID) == "":
		return &ValidationError{Field: "item_id", Reason: "must not be empty"}
	case !item.ItemType.Valid():
		return &ValidationError{Field: "item_type", Reason: fmt.Sprintf("unknown item type %q", item.ItemType)}
	case strings.TrimSpace(item.Title) == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case !status.Valid():
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	return nil
}
