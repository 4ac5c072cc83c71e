package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/query"
)

// resultsResponse is a merged, filtered result set with per-source outcomes.
type resultsResponse struct {
	Items   []catalog.Item       `json:"items"`
	Sources []query.SourceResult `json:"sources"`
	Stats   catalog.Stats        `json:"stats"`
	Page    int                  `json:"page,omitempty"`
}

// viewParams are the filter/sort parameters shared by catalog listings.
type viewParams struct {
	MinRating float64 `query:"min_rating" validate:"gte=0,lte=10"`
	Sort      string  `query:"sort" validate:"omitempty,oneof=popularity rating title"`
}

func (p viewParams) filter() catalog.FilterSort {
	sortBy, _ := catalog.ParseSortKey(p.Sort)
	return catalog.FilterSort{MinRating: p.MinRating, SortBy: sortBy}
}

type searchParams struct {
	Query     string  `query:"q" validate:"required"`
	MinRating float64 `query:"min_rating" validate:"gte=0,lte=10"`
	Sort      string  `query:"sort" validate:"omitempty,oneof=popularity rating title"`
}

// parseViewParams reads min_rating and sort. A malformed number is reported
// as a validation message.
func parseViewParams(r *http.Request) (viewParams, string) {
	q := r.URL.Query()
	p := viewParams{Sort: strings.ToLower(strings.TrimSpace(q.Get("sort")))}
	if v := q.Get("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, "min_rating must be a number"
		}
		p.MinRating = f
	}
	return p, ""
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	view, msg := parseViewParams(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", msg)
		return
	}
	params := searchParams{
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		MinRating: view.MinRating,
		Sort:      view.Sort,
	}
	if msg := validateRequest(params); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", msg)
		return
	}
	kind, err := query.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	// Partial failure still answers 200; failed sources are listed.
	raw, sources := query.Search(r.Context(), s.deps.Sources, kind, params.Query)
	items := catalog.Apply(raw, view.filter())
	writeJSON(w, http.StatusOK, resultsResponse{
		Items:   items,
		Sources: sources,
		Stats:   catalog.Summarize(items),
	})
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	kind, err := query.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}
	view, msg := parseViewParams(r)
	if msg == "" {
		msg = validateRequest(view)
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", msg)
		return
	}
	page := max(queryInt(r, "page", 1), 1)

	raw, sources := query.Discover(r.Context(), s.deps.Sources, kind, page)
	items := catalog.Apply(raw, view.filter())
	writeJSON(w, http.StatusOK, resultsResponse{
		Items:   items,
		Sources: sources,
		Stats:   catalog.Summarize(items),
		Page:    page,
	})
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseItemType(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}
	p, err := s.deps.Sources.For(kind)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	d, err := p.Detail(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		s.log.Debug("detail failed", "kind", kind, "id", r.PathValue("id"), "error", err)
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
