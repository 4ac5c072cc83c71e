package v1

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/rating"
	"github.com/vmunix/andrate/internal/session"
)

// itemPayload identifies the catalog item a library request refers to.
type itemPayload struct {
	ItemID    string  `json:"item_id" validate:"required"`
	ItemType  string  `json:"item_type" validate:"required,oneof=anime tv movie"`
	Title     string  `json:"title" validate:"required"`
	PosterURL *string `json:"poster_url" validate:"omitempty,url"`
}

func (p itemPayload) item() catalog.Item {
	return catalog.Item{
		ItemID:    p.ItemID,
		ItemType:  catalog.ItemType(p.ItemType),
		Title:     p.Title,
		PosterURL: p.PosterURL,
	}
}

type saveRequest struct {
	Item   itemPayload `json:"item"`
	Status string      `json:"status" validate:"required,oneof=planning watching completed abandoned"`
	Rating *float64    `json:"rating"`
}

type rateRequest struct {
	Item   itemPayload `json:"item"`
	Rating float64     `json:"rating" validate:"gte=0.5,lte=10"`
	Status string      `json:"status" validate:"omitempty,oneof=planning watching completed abandoned"`
}

type libraryResponse struct {
	Items  []*library.Entry       `json:"items"`
	Counts map[library.Status]int `json:"counts"`
}

// decodeBody decodes and validates a JSON request body. It writes the
// error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	if msg := validateRequest(dst); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", msg)
		return false
	}
	return true
}

func (s *Server) saveEntry(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rt, err := rating.FromPtr(req.Rating)
	if err != nil {
		writeLibraryError(w, err)
		return
	}

	entry, err := s.deps.Library.Save(r.Context(), session.UserID(r.Context()), req.Item.item(), library.Status(req.Status), rt)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) rateEntry(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rt, err := rating.New(req.Rating)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	status := library.StatusCompleted
	if req.Status != "" {
		status = library.Status(req.Status)
	}

	entry, err := s.deps.Library.Rate(r.Context(), session.UserID(r.Context()), req.Item.item(), rt, status)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) listLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var spec library.ViewSpec

	if v := q.Get("type"); v != "" {
		t, err := catalog.ParseItemType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
			return
		}
		spec.ItemType = &t
	}
	if v := q.Get("status"); v != "" {
		st, err := library.ParseStatus(v)
		if err != nil {
			writeLibraryError(w, err)
			return
		}
		spec.Status = &st
	}
	sortBy, err := library.ParseViewSort(q.Get("sort"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	spec.SortBy = sortBy
	spec.Query = q.Get("q")

	userID := session.UserID(r.Context())
	items, err := s.deps.Library.List(r.Context(), userID, spec)
	if err != nil {
		writeLibraryError(w, err)
		return
	}

	// Counts always cover the whole library.
	all := items
	if spec.Status != nil || spec.ItemType != nil || spec.Query != "" {
		all, err = s.deps.Library.List(r.Context(), userID, library.ViewSpec{})
		if err != nil {
			writeLibraryError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, libraryResponse{Items: items, Counts: library.Counts(all)})
}
