// Package events carries library and surface activity: an in-process
// fan-out bus and the SQLite log behind it.
package events

import (
	"slices"
	"time"
)

// Event is anything published on the Bus and recorded in the EventLog.
type Event interface {
	EventType() string
	EntityType() string
	EntityID() int64
	OccurredAt() time.Time
}

// Summarizer is implemented by events that can describe themselves in one
// line for the activity feed.
type Summarizer interface {
	Summary() string
}

// Header holds the routing fields every event carries. Concrete events embed
// it so the fields land at the top level of the stored payload.
type Header struct {
	Type   string    `json:"type"`
	Entity string    `json:"entity_type"`
	ID     int64     `json:"entity_id"`
	At     time.Time `json:"occurred_at"`
}

func (h Header) EventType() string     { return h.Type }
func (h Header) EntityType() string    { return h.Entity }
func (h Header) EntityID() int64       { return h.ID }
func (h Header) OccurredAt() time.Time { return h.At }

// Stamp returns a header for an event happening now.
func Stamp(eventType, entityType string, entityID int64) Header {
	return Header{Type: eventType, Entity: entityType, ID: entityID, At: time.Now()}
}

// Entity types. Library events key on the entry row, surface events on the
// connecting user.
const (
	EntityLibraryEntry = "library_entry"
	EntitySurface      = "surface"
)

const (
	EventEntrySaved    = "library.entry.saved"
	EventSurfaceOpened = "surface.opened"
	EventSurfaceClosed = "surface.closed"
)

var entityTypes = []string{EntityLibraryEntry, EntitySurface}

// IsEntityType reports whether s names an entity events are recorded for.
func IsEntityType(s string) bool {
	return slices.Contains(entityTypes, s)
}
