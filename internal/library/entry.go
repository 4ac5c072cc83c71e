// Package library tracks each user's personal status and rating for catalog
// items and reconciles edits into the store.
package library

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/rating"
)

// Status is the user's progress with an item.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusWatching  Status = "watching"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPlanning, StatusWatching, StatusCompleted, StatusAbandoned}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusWatching, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// ParseStatus validates s case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Entry is one item in a user's library. (UserID, ItemID, ItemType) is unique.
type Entry struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	ItemID    string           `json:"item_id"`
	ItemType  catalog.ItemType `json:"item_type"`
	Title     string           `json:"title"`
	PosterURL *string          `json:"poster_url"`
	Status    Status           `json:"status"`
	Rating    rating.Rating    `json:"rating"`
	AddedAt   time.Time        `json:"added_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Key returns the catalog identity of the entry's item.
func (e *Entry) Key() catalog.Key {
	return catalog.Key{ItemID: e.ItemID, ItemType: e.ItemType}
}

// EntryFilter selects entries for one user. Nil fields match everything.
type EntryFilter struct {
	UserID   int64
	ItemType *catalog.ItemType
	Status   *Status
}
