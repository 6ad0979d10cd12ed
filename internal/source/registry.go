package source

import (
	"fmt"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Registry keeps a mapping from feed types to their article sources.
// Feed-specific scraping stays behind the ArticleSource capability, so
// the distribution logic never branches on how a type is fetched.
type Registry struct {
	sources map[domain.FeedType]ports.ArticleSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[domain.FeedType]ports.ArticleSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src ports.ArticleSource) {
	if r.sources == nil {
		r.sources = map[domain.FeedType]ports.ArticleSource{}
	}
	r.sources[src.Type()] = src
}

// Resolve returns a source by feed type or an error if it is absent.
func (r *Registry) Resolve(feedType domain.FeedType) (ports.ArticleSource, error) {
	if src, ok := r.sources[feedType]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("no source registered for feed type %s", feedType)
}

// Types lists every registered feed type.
func (r *Registry) Types() []domain.FeedType {
	types := make([]domain.FeedType, 0, len(r.sources))
	for feedType := range r.sources {
		types = append(types, feedType)
	}
	return types
}
