package library

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/vmunix/andrate/internal/catalog"
)

// ViewSort orders a library view.
type ViewSort string

const (
	SortByTitle  ViewSort = "title"
	SortByRating ViewSort = "rating"
	SortByAdded  ViewSort = "added"
)

// ParseViewSort validates s. Empty means SortByTitle.
func ParseViewSort(s string) (ViewSort, error) {
	switch v := ViewSort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortByTitle, nil
	case SortByTitle, SortByRating, SortByAdded:
		return v, nil
	}
	return "", &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort %q", s)}
}

// ViewSpec filters and orders a user's library.
type ViewSpec struct {
	Status   *Status
	ItemType *catalog.ItemType
	Query    string // case-insensitive title substring
	SortBy   ViewSort
}

// View applies spec to entries and returns a new slice.
// Entries without a rating sort as 0; "added" puts the newest first.
func View(entries []*Entry, spec ViewSpec) []*Entry {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(spec.Query))

	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if spec.Status != nil && e.Status != *spec.Status {
			continue
		}
		if spec.ItemType != nil && e.ItemType != *spec.ItemType {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(e.Title), needle) {
			continue
		}
		out = append(out, e)
	}

	switch spec.SortBy {
	case SortByRating:
		slices.SortStableFunc(out, func(a, b *Entry) int {
			ra, rb := a.Rating.OrZero(), b.Rating.OrZero()
			switch {
			case ra > rb:
				return -1
			case ra < rb:
				return 1
			}
			return 0
		})
	case SortByAdded:
		slices.SortStableFunc(out, func(a, b *Entry) int {
			switch {
			case a.ID > b.ID:
				return -1
			case a.ID < b.ID:
				return 1
			}
			return 0
		})
	default:
		slices.SortStableFunc(out, func(a, b *Entry) int {
			return catalog.CompareTitles(a.Title, b.Title)
		})
	}
	return out
}

// Counts tallies entries per status. Every status is present.
func Counts(entries []*Entry) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}
