// Package anilist provides a client for the AniList GraphQL API.
package anilist

// Media is an anime entry as returned by AniList.
type Media struct {
	ID           int        `json:"id"`
	Title        Title      `json:"title"`
	CoverImage   CoverImage `json:"coverImage"`
	Description  *string    `json:"description"`
	AverageScore *float64   `json:"averageScore"` // 0-100
	MeanScore    *float64   `json:"meanScore"`    // 0-100
	Popularity   *int       `json:"popularity"`
	SeasonYear   *int       `json:"seasonYear"`
	Genres       []string   `json:"genres"`
}

// Title holds the title variants.
type Title struct {
	English *string `json:"english"`
	Romaji  *string `json:"romaji"`
	Native  *string `json:"native"`
}

// Preferred returns the English title, falling back to romaji and native.
func (t Title) Preferred() string {
	for _, s := range []*string{t.English, t.Romaji, t.Native} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

// CoverImage holds cover URLs.
type CoverImage struct {
	Large  *string `json:"large"`
	Medium *string `json:"medium"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type pageData struct {
	Page struct {
		Media []Media `json:"media"`
	} `json:"Page"`
}

type mediaData struct {
	Media *Media `json:"Media"`
}
