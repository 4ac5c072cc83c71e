package catalog

import (
	"context"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks . Provider

// Provider is a content catalog. Implementations return items already
// normalized and in the provider's own relevance order.
type Provider interface {
	Search(ctx context.Context, kind ItemType, query string) ([]Item, error)
	Discover(ctx context.Context, kind ItemType, page int) ([]Item, error)
	Detail(ctx context.Context, kind ItemType, id string) (*ItemDetail, error)
}

// Sources maps each item type to the provider that serves it.
type Sources map[ItemType]Provider

// For returns the provider for kind.
func (s Sources) For(kind ItemType) (Provider, error) {
	p, ok := s[kind]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return p, nil
}

// Kinds returns the configured item types in merge order.
func (s Sources) Kinds() []ItemType {
	kinds := make([]ItemType, 0, len(s))
	for _, k := range Kinds {
		if p, ok := s[k]; ok && p != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
