// Package catalog defines the normalized item model shared by every content
// provider, the provider contract, and the filter/sort pipeline applied to
// merged results.
package catalog

import "fmt"

// ItemType identifies which catalog an item came from.
type ItemType string

const (
	Anime ItemType = "anime"
	TV    ItemType = "tv"
	Movie ItemType = "movie"
)

// Kinds lists the item types in merge order.
var Kinds = []ItemType{Anime, TV, Movie}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case Anime, TV, Movie:
		return true
	}
	return false
}

// ParseItemType validates s as an item type.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown item type %q", s)
	}
	return t, nil
}

// Item is a catalog entry normalized across providers.
type Item struct {
	ItemID               string   `json:"item_id"`
	ItemType             ItemType `json:"item_type"`
	Title                string   `json:"title"`
	PosterURL            *string  `json:"poster_url"`
	CommunityRating      *float64 `json:"community_rating"` // 0-10
	CommunityRatingCount *int     `json:"community_rating_count"`
	Year                 *int     `json:"year"`
	Genres               []string `json:"genres"`
	Overview             *string  `json:"overview"`
}

// Key identifies an item across providers.
type Key struct {
	ItemID   string
	ItemType ItemType
}

func (k Key) String() string {
	return string(k.ItemType) + ":" + k.ItemID
}

// Key returns the item's identity.
func (i Item) Key() Key {
	return Key{ItemID: i.ItemID, ItemType: i.ItemType}
}

// Rating returns the community rating, treating unknown as 0.
func (i Item) Rating() float64 {
	if i.CommunityRating == nil {
		return 0
	}
	return *i.CommunityRating
}

// ItemDetail is the full record for a single item, fetched lazily.
type ItemDetail struct {
	Item
}
