package query

import (
	"github.com/goccy/go-json"

	"github.com/vmunix/andrate/internal/catalog"
)

// State identifies the query a snapshot answers.
type State struct {
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
	Epoch uint64 `json:"epoch"`
}

// Phase is where a surface is in its query lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDebouncing Phase = "debouncing"
	PhaseQuerying   Phase = "querying"
	PhaseSettled    Phase = "settled"
	PhaseError      Phase = "error"
)

// Mode says whether results come from discovery or from a text search.
type Mode string

const (
	ModeIdle   Mode = "idle"
	ModeSearch Mode = "search"
)

// SourceResult reports one provider's contribution to a fan-out.
type SourceResult struct {
	Kind  catalog.ItemType
	Count int
	Err   error
}

// Failed reports whether the source contributed nothing because of an error.
func (s SourceResult) Failed() bool { return s.Err != nil }

// MarshalJSON renders the error as a message string.
func (s SourceResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind  catalog.ItemType `json:"kind"`
		Count int              `json:"count"`
		Error string           `json:"error,omitempty"`
	}{Kind: s.Kind, Count: s.Count}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// Snapshot is what a surface shows at one moment. Items is Raw after the
// current filter and sort; while a query is in flight the previous results
// stay visible and Settled is false.
type Snapshot struct {
	State   State              `json:"state"`
	Phase   Phase              `json:"phase"`
	Mode    Mode               `json:"mode"`
	Page    int                `json:"page"`
	Filter  catalog.FilterSort `json:"filter"`
	Items   []catalog.Item     `json:"items"`
	Raw     []catalog.Item     `json:"-"`
	Sources []SourceResult     `json:"sources"`
	Stats   catalog.Stats      `json:"stats"`
	Settled bool               `json:"settled"`
}

// Failed reports whether any source failed in the committed fan-out.
func (s Snapshot) Failed() bool {
	for _, src := range s.Sources {
		if src.Failed() {
			return true
		}
	}
	return false
}
