package events

import (
	"fmt"
	"time"
)

// SurfaceOpened is emitted when a live search surface connects.
type SurfaceOpened struct {
	Header
	SurfaceID string `json:"surface_id"`
	UserID    int64  `json:"user_id"`
	Kind      string `json:"kind"`
}

func (e *SurfaceOpened) Summary() string {
	return fmt.Sprintf("surface %s opened by user %d (%s)", e.SurfaceID, e.UserID, e.Kind)
}

// SurfaceClosed is emitted when a live search surface disconnects. Queries
// counts provider fan-outs, not keystrokes.
type SurfaceClosed struct {
	Header
	SurfaceID  string `json:"surface_id"`
	Queries    int    `json:"queries"`
	DurationMS int64  `json:"duration_ms"`
}

// Duration is how long the surface stayed open.
func (e *SurfaceClosed) Duration() time.Duration {
	return time.Duration(e.DurationMS) * time.Millisecond
}

func (e *SurfaceClosed) Summary() string {
	return fmt.Sprintf("surface %s closed after %d queries in %s", e.SurfaceID, e.Queries, e.Duration())
}
