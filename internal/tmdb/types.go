// Package tmdb provides a client for The Movie Database API.
package tmdb

import "strconv"

// Kind selects the TMDB media namespace.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// Valid reports whether k is a namespace the client can query.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindTV
}

// Result is a movie or TV show as returned by search and discover.
// Movies populate Title/ReleaseDate; TV shows populate Name/FirstAirDate.
type Result struct {
	ID           int64    `json:"id"`
	Title        *string  `json:"title"`
	Name         *string  `json:"name"`
	Overview     *string  `json:"overview"`
	ReleaseDate  *string  `json:"release_date"`   // "2024-03-01"
	FirstAirDate *string  `json:"first_air_date"` // "2013-04-07"
	PosterPath   *string  `json:"poster_path"`    // "/abc123.jpg"
	VoteAverage  *float64 `json:"vote_average"`
	VoteCount    *int     `json:"vote_count"`
	Popularity   *float64 `json:"popularity"`
	GenreIDs     []int    `json:"genre_ids"`
}

// DisplayTitle returns Title for movies and Name for TV.
func (r *Result) DisplayTitle(kind Kind) string {
	p := r.Name
	if kind == KindMovie {
		p = r.Title
	}
	if p == nil {
		return ""
	}
	return *p
}

// Year extracts the year from the release or first-air date.
func (r *Result) Year(kind Kind) int {
	d := r.FirstAirDate
	if kind == KindMovie {
		d = r.ReleaseDate
	}
	if d == nil || len(*d) < 4 {
		return 0
	}
	year, err := strconv.Atoi((*d)[:4])
	if err != nil {
		return 0
	}
	return year
}

// PosterURL returns the full poster image URL.
// Size can be: w92, w154, w185, w342, w500, w780, original
func (r *Result) PosterURL(size string) string {
	if r.PosterPath == nil || *r.PosterPath == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/" + size + *r.PosterPath
}

// Detail is the full record for a single movie or TV show.
type Detail struct {
	Result
	Genres []Genre `json:"genres"`
}

// GenreNames returns the genre names in order.
func (d *Detail) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

// Genre represents a genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type page struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}
