package source

import (
	"context"
	"testing"

	"github.com/aurzen/unearthedarcana/internal/domain"
)

type stubSource struct {
	feedType domain.FeedType
}

func (s stubSource) Type() domain.FeedType { return s.feedType }

func (s stubSource) Fetch(context.Context) ([]domain.ArticleRecord, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubSource{feedType: domain.FeedUnearthedArcana})
	r.Register(stubSource{feedType: domain.FeedSageAdvice})

	src, err := r.Resolve(domain.FeedUnearthedArcana)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src.Type() != domain.FeedUnearthedArcana {
		t.Fatalf("resolved wrong source: %q", src.Type())
	}

	if _, err := r.Resolve(domain.FeedType("ghost")); err == nil {
		t.Fatal("expected error for unregistered type")
	}

	if got := len(r.Types()); got != 2 {
		t.Fatalf("Types length %d", got)
	}
}

func TestRegistryReplacesExisting(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := stubSource{feedType: domain.FeedUnearthedArcana}
	second := stubSource{feedType: domain.FeedUnearthedArcana}
	r.Register(first)
	r.Register(second)

	if got := len(r.Types()); got != 1 {
		t.Fatalf("duplicate registration added a type: %d", got)
	}
}
