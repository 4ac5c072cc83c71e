// Package query coordinates debounced, epoch-ordered searches across catalog
// providers for one interactive surface.
package query

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vmunix/andrate/internal/catalog"
)

// Kind scopes a surface to one item type or to all of them.
type Kind string

// KindAll is the global surface that fans out to every provider.
const KindAll Kind = "all"

// ParseKind validates s. Empty means KindAll.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" || k == KindAll {
		return KindAll, nil
	}
	if !catalog.ItemType(k).Valid() {
		return "", fmt.Errorf("%w: %q", catalog.ErrUnsupportedKind, s)
	}
	return k, nil
}

// ItemTypes returns the item types the kind fans out to, in merge order.
func (k Kind) ItemTypes() []catalog.ItemType {
	if k == KindAll || k == "" {
		return slices.Clone(catalog.Kinds)
	}
	return []catalog.ItemType{catalog.ItemType(k)}
}

const (
	// BrowseDebounce is the quiet period for kind-scoped surfaces.
	BrowseDebounce = 300 * time.Millisecond
	// GlobalDebounce is the quiet period for the all-kinds surface.
	GlobalDebounce = 500 * time.Millisecond
	// MinQueryLength is the shortest trimmed input that triggers a search.
	MinQueryLength = 3
)

// Config controls a Coordinator.
type Config struct {
	Kind           Kind
	Debounce       time.Duration
	MinQueryLength int
	Filter         catalog.FilterSort
}

// DefaultConfig returns the settings for a surface of the given kind.
func DefaultConfig(kind Kind) Config {
	d := BrowseDebounce
	if kind == KindAll || kind == "" {
		kind = KindAll
		d = GlobalDebounce
	}
	return Config{
		Kind:           kind,
		Debounce:       d,
		MinQueryLength: MinQueryLength,
		Filter:         catalog.DefaultFilterSort(),
	}
}
