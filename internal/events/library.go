package events

import "fmt"

// EntrySaved is emitted after a library entry is inserted or overwritten.
// EntityID is the store key of the entry.
type EntrySaved struct {
	Header
	UserID   int64    `json:"user_id"`
	ItemID   string   `json:"item_id"`
	ItemType string   `json:"item_type"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Rating   *float64 `json:"rating"`
	Created  bool     `json:"created"`
}

func (e *EntrySaved) Summary() string {
	verb := "updated"
	if e.Created {
		verb = "added"
	}
	r := "unrated"
	if e.Rating != nil {
		r = fmt.Sprintf("rated %.1f", *e.Rating)
	}
	return fmt.Sprintf("user %d %s %s %q: %s, %s", e.UserID, verb, e.ItemType, e.Title, e.Status, r)
}
