package events

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrUnknownType is returned by Decode for event types nobody registered.
var ErrUnknownType = errors.New("unknown event type")

// Registry turns logged payloads back into typed events.
type Registry struct {
	payloads map[string]func() Event
}

func NewRegistry() *Registry {
	return &Registry{payloads: make(map[string]func() Event)}
}

// Register maps eventType to a constructor for its payload.
func (r *Registry) Register(eventType string, newEvent func() Event) {
	r.payloads[eventType] = newEvent
}

func register[T any, P interface {
	*T
	Event
}](r *Registry, eventType string) {
	r.Register(eventType, func() Event { return P(new(T)) })
}

// Decode rebuilds the event recorded in raw. Header fields absent from the
// payload are taken from the log columns.
func (r *Registry) Decode(raw RawEvent) (Event, error) {
	newEvent, ok := r.payloads[raw.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, raw.EventType)
	}
	e := newEvent()
	if err := json.Unmarshal([]byte(raw.Payload), e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", raw.EventType, err)
	}
	if h, ok := e.(interface{ header() *Header }); ok {
		h.header().fill(raw)
	}
	return e, nil
}

func (h *Header) header() *Header { return h }

func (h *Header) fill(raw RawEvent) {
	if h.Type == "" {
		h.Type = raw.EventType
	}
	if h.Entity == "" {
		h.Entity = raw.EntityType
	}
	if h.ID == 0 {
		h.ID = raw.EntityID
	}
	if h.At.IsZero() {
		h.At = raw.OccurredAt
	}
}

// DefaultRegistry knows every event andrate publishes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	register[EntrySaved](r, EventEntrySaved)
	register[SurfaceOpened](r, EventSurfaceOpened)
	register[SurfaceClosed](r, EventSurfaceClosed)
	return r
}
