package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
)

type breakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type statusResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version,omitempty"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Kinds         []catalog.ItemType `json:"kinds"`
	Breakers      []breakerStatus    `json:"breakers"`
	EventsDropped int64              `json:"events_dropped"`
	Cache         map[string]int     `json:"cache,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		Version:       s.deps.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Kinds:         s.deps.Sources.Kinds(),
		Breakers:      make([]breakerStatus, 0, len(s.deps.Breakers)),
	}
	for _, b := range s.deps.Breakers {
		st := b.State()
		if st != "closed" {
			resp.Status = "degraded"
		}
		resp.Breakers = append(resp.Breakers, breakerStatus{Name: b.Name(), State: st})
	}
	if s.deps.Bus != nil {
		resp.EventsDropped = s.deps.Bus.Dropped()
	}
	if s.deps.Cache != nil {
		live, err := s.deps.Cache.Live(r.Context())
		if err != nil {
			s.log.Warn("cache stats unavailable", "error", err)
		} else {
			resp.Cache = live
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type listEventsResponse struct {
	Items []events.RawEvent `json:"items"`
	Total int               `json:"total"`
}

// listEvents returns the newest events. since (RFC 3339 time or a duration
// such as 1h) and entity_type with entity_id narrow the query and combine.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	q := r.URL.Query()
	f := events.Filter{Limit: limit}
	if et := q.Get("entity_type"); et != "" {
		if !events.IsEntityType(et) {
			writeError(w, http.StatusBadRequest, "VALIDATION", "unknown entity_type "+strconv.Quote(et))
			return
		}
		id, err := strconv.ParseInt(q.Get("entity_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "entity_id must be an integer")
			return
		}
		f.EntityType, f.EntityID = et, id
	}
	if raw := q.Get("since"); raw != "" {
		since, ok := parseSince(raw, time.Now())
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION", "since must be an RFC 3339 time or a duration")
			return
		}
		f.Since = since
	}

	evts, err := s.deps.EventLog.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}
	if evts == nil {
		evts = []events.RawEvent{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Items: evts, Total: len(evts)})
}

func parseSince(s string, now time.Time) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d), true
	}
	return time.Time{}, false
}
