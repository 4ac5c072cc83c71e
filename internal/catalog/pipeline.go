package catalog

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// SortKey selects the ordering of a result set.
type SortKey string

const (
	// SortPopularity keeps provider order.
	SortPopularity SortKey = "popularity"
	// SortRating orders by community rating, highest first.
	SortRating SortKey = "rating"
	// SortTitle orders by title, case-insensitively.
	SortTitle SortKey = "title"
)

// ParseSortKey validates s. Empty means SortPopularity.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortPopularity, nil
	case SortPopularity, SortRating, SortTitle:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// FilterSort is the view specification applied to merged results.
type FilterSort struct {
	MinRating float64 `json:"min_rating"`
	SortBy    SortKey `json:"sort_by"`
}

// DefaultFilterSort keeps every item in provider order.
func DefaultFilterSort() FilterSort {
	return FilterSort{SortBy: SortPopularity}
}

// Apply filters items below spec.MinRating and sorts the rest. Items without
// a community rating count as 0. Sorting is stable and the input slice is
// never modified. Apply(Apply(x, s), s) == Apply(x, s).
func Apply(items []Item, spec FilterSort) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Rating() >= spec.MinRating {
			out = append(out, it)
		}
	}

	switch spec.SortBy {
	case SortRating:
		slices.SortStableFunc(out, func(a, b Item) int {
			ra, rb := a.Rating(), b.Rating()
			switch {
			case ra > rb:
				return -1
			case ra < rb:
				return 1
			}
			return 0
		})
	case SortTitle:
		slices.SortStableFunc(out, func(a, b Item) int {
			return CompareTitles(a.Title, b.Title)
		})
	}
	return out
}

// CompareTitles compares two titles using Unicode case folding.
func CompareTitles(a, b string) int {
	// A Caser is stateful, so each call gets its own.
	fold := cases.Fold()
	return strings.Compare(fold.String(a), fold.String(b))
}

// Stats summarizes a result set.
type Stats struct {
	Count         int     `json:"count"`
	Rated         int     `json:"rated"`
	AverageRating float64 `json:"average_rating"`
}

// Summarize counts items and averages their community ratings. Unrated items
// count as 0, the same as the MinRating filter treats them.
func Summarize(items []Item) Stats {
	var s Stats
	var sum float64
	for _, it := range items {
		s.Count++
		if it.CommunityRating != nil {
			s.Rated++
			sum += *it.CommunityRating
		}
	}
	if s.Count > 0 {
		s.AverageRating = sum / float64(s.Count)
	}
	return s
}
