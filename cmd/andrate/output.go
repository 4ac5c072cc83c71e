package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/library"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRating(r *float64) string {
	if r == nil {
		return "  - "
	}
	return fmt.Sprintf("%4.1f", *r)
}

func printItems(w io.Writer, items []catalog.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	width := len(strconv.Itoa(len(items)))
	for i, it := range items {
		title := it.Title
		if it.Year != nil {
			title += fmt.Sprintf(" (%d)", *it.Year)
		}
		fmt.Fprintf(w, "%*d. %s  %-5s  %s  [%s]\n", width, i+1, formatRating(it.CommunityRating), it.ItemType, title, it.ItemID)
	}
}

func printResults(w io.Writer, resp *ResultsResponse) {
	printItems(w, resp.Items)
	for _, s := range resp.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "  ! %s: %s\n", s.Kind, s.Error)
		}
	}
	if resp.Stats.Rated > 0 {
		fmt.Fprintf(w, "\n%d results, %d rated, average %.1f\n", resp.Stats.Count, resp.Stats.Rated, resp.Stats.AverageRating)
	}
}

func printDetail(w io.Writer, d *catalog.ItemDetail) {
	fmt.Fprintf(w, "%s [%s %s]\n", d.Title, d.ItemType, d.ItemID)
	if d.Year != nil {
		fmt.Fprintf(w, "  Year:    %d\n", *d.Year)
	}
	if d.CommunityRating != nil {
		votes := ""
		if d.CommunityRatingCount != nil {
			votes = fmt.Sprintf(" (%d votes)", *d.CommunityRatingCount)
		}
		fmt.Fprintf(w, "  Rating:  %.1f%s\n", *d.CommunityRating, votes)
	}
	if len(d.Genres) > 0 {
		fmt.Fprintf(w, "  Genres:  %s\n", strings.Join(d.Genres, ", "))
	}
	if d.PosterURL != nil {
		fmt.Fprintf(w, "  Poster:  %s\n", *d.PosterURL)
	}
	if d.Overview != nil {
		fmt.Fprintf(w, "\n%s\n", *d.Overview)
	}
}

func printEntry(w io.Writer, e *library.Entry) {
	fmt.Fprintf(w, "%s [%s %s]: %s, rating %s\n", e.Title, e.ItemType, e.ItemID, e.Status, e.Rating)
}

func printLibrary(w io.Writer, resp *LibraryResponse) {
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, "Library is empty")
	}
	for _, e := range resp.Items {
		r := "  - "
		if v, ok := e.Rating.Float(); ok {
			r = fmt.Sprintf("%4.1f", v)
		}
		fmt.Fprintf(w, "%-9s %s  %-5s  %s  [%s]\n", e.Status, r, e.ItemType, e.Title, e.ItemID)
	}
	parts := make([]string, 0, len(library.Statuses))
	for _, s := range library.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", s, resp.Counts[s]))
	}
	fmt.Fprintf(w, "\n%s\n", strings.Join(parts, " | "))
}
