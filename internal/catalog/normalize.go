package catalog

import (
	"math"
	"strconv"
	"strings"

	"github.com/vmunix/andrate/internal/anilist"
	"github.com/vmunix/andrate/internal/tmdb"
)

// PosterSize is the TMDB image size used for poster URLs.
const PosterSize = "w500"

// FromAniList normalizes an AniList media record.
// AniList scores are 0-100 and are scaled to 0-10.
func FromAniList(m anilist.Media) Item {
	score := m.AverageScore
	if score == nil {
		score = m.MeanScore
	}
	var rating *float64
	if score != nil {
		rating = communityRating(*score / 10)
	}

	return Item{
		ItemID:          strconv.Itoa(m.ID),
		ItemType:        Anime,
		Title:           m.Title.Preferred(),
		PosterURL:       nonEmpty(m.CoverImage.Large),
		CommunityRating: rating,
		Year:            positive(m.SeasonYear),
		Genres:          genres(m.Genres),
		Overview:        nonEmpty(m.Description),
	}
}

// AniListDetail normalizes an AniList media record fetched by ID.
func AniListDetail(m anilist.Media) ItemDetail {
	return ItemDetail{Item: FromAniList(m)}
}

// FromTMDB normalizes a TMDB search or discover result. Kinds other than
// Movie are treated as TV.
func FromTMDB(r tmdb.Result, kind ItemType) Item {
	tk := tmdbKind(kind)
	if tk == tmdb.KindMovie {
		kind = Movie
	} else {
		kind = TV
	}

	var rating *float64
	if r.VoteAverage != nil {
		rating = communityRating(*r.VoteAverage)
	}
	var year *int
	if y := r.Year(tk); y > 0 {
		year = &y
	}
	var poster *string
	if u := r.PosterURL(PosterSize); u != "" {
		poster = &u
	}

	return Item{
		ItemID:               strconv.FormatInt(r.ID, 10),
		ItemType:             kind,
		Title:                r.DisplayTitle(tk),
		PosterURL:            poster,
		CommunityRating:      rating,
		CommunityRatingCount: r.VoteCount,
		Year:                 year,
		Genres:               []string{},
		Overview:             nonEmpty(r.Overview),
	}
}

// TMDBDetail normalizes a TMDB detail record.
func TMDBDetail(d tmdb.Detail, kind ItemType) ItemDetail {
	item := FromTMDB(d.Result, kind)
	item.Genres = genres(d.GenreNames())
	return ItemDetail{Item: item}
}

func tmdbKind(kind ItemType) tmdb.Kind {
	if kind == Movie {
		return tmdb.KindMovie
	}
	return tmdb.KindTV
}

// communityRating drops values outside 0-10.
func communityRating(v float64) *float64 {
	if math.IsNaN(v) || v < 0 || v > 10 {
		return nil
	}
	return &v
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func positive(n *int) *int {
	if n == nil || *n <= 0 {
		return nil
	}
	v := *n
	return &v
}

func genres(in []string) []string {
	out := make([]string, 0, len(in))
	for _, g := range in {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
