package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/infrastructure/fetch"
)

const listingFixture = `
<html><body>
  <div class="article-preview">
    <h4>Survey: Playtest 8</h4>
    <div class="category">Class   Feature,
 01/15/2024</div>
    <div class="summary">Tell us what you think.</div>
    <a class="cta-button" href="/articles/playtest-8">More info</a>
  </div>
  <div class="article-preview">
    <h4>Coming Soon</h4>
    <div class="category">Teaser, 01/10/2024</div>
    <div class="summary">Not linkable yet.</div>
    <a class="cta-button" href="/store">Buy now</a>
  </div>
  <div class="article-preview">
    <h4>Playtest 7</h4>
    <div class="category">Class Feature, 12/01/2023</div>
    <div class="summary">Older material.</div>
    <a class="cta-button" href="https://elsewhere.example/playtest-7">More info</a>
  </div>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScannerParse(t *testing.T) {
	t.Parallel()

	s := NewScanner(domain.FeedUnearthedArcana, "https://dnd.wizards.com/articles/unearthed-arcana", fetch.New(nil), nil, testLogger())

	articles, err := s.Parse([]byte(listingFixture))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	// The middle block has no "More info" link and must be skipped.
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.Title != "Survey: Playtest 8" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Category != "Class Feature,\n01/15/2024" {
		t.Fatalf("whitespace not collapsed: %q", first.Category)
	}
	if first.Summary != "Tell us what you think." {
		t.Fatalf("unexpected summary: %q", first.Summary)
	}
	if first.Link != "https://dnd.wizards.com/articles/playtest-8" {
		t.Fatalf("unexpected link: %q", first.Link)
	}
	if first.Type != domain.FeedUnearthedArcana {
		t.Fatalf("unexpected type: %q", first.Type)
	}

	wantDate := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(wantDate) {
		t.Fatalf("unexpected publish date: %v", first.PublishedAt)
	}

	// Absolute hrefs pass through untouched.
	if articles[1].Link != "https://elsewhere.example/playtest-7" {
		t.Fatalf("absolute link rewritten: %q", articles[1].Link)
	}
}

func TestScannerParseNoStructure(t *testing.T) {
	t.Parallel()

	s := NewScanner(domain.FeedUnearthedArcana, "https://dnd.wizards.com/articles/unearthed-arcana", fetch.New(nil), nil, testLogger())

	_, err := s.Parse([]byte(`<html><body><p>maintenance page</p></body></html>`))
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestScannerFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	s := NewScanner(domain.FeedUnearthedArcana, server.URL, fetch.New(server.Client()), nil, testLogger())

	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
}

func TestScannerFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewScanner(domain.FeedUnearthedArcana, server.URL, fetch.New(server.Client()), nil, testLogger())

	_, err := s.Fetch(context.Background())
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestEnricherCollectsPDFLinksAndSummary(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
        <html><body>
          <article><p>The <b>full</b> playtest packet.</p></article>
          <a href="/downloads/packet.pdf">Download</a>
          <a href="/downloads/packet.pdf">Download again</a>
        </body></html>`))
	}))
	defer server.Close()

	enricher := NewEnricher(fetch.New(server.Client()))

	article := domain.ArticleRecord{
		Link:    server.URL + "/articles/playtest-8",
		Summary: "short teaser",
	}
	if err := enricher.Enrich(context.Background(), &article); err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	if article.Summary == "short teaser" {
		t.Fatalf("summary was not enriched")
	}
	if len(article.PDFLinks) != 1 {
		t.Fatalf("expected 1 deduplicated pdf link, got %v", article.PDFLinks)
	}
	if article.PDFLinks[0] != server.URL+"/downloads/packet.pdf" {
		t.Fatalf("unexpected pdf link: %q", article.PDFLinks[0])
	}
}

func TestEnrichmentFailureIsolated(t *testing.T) {
	t.Parallel()

	const listing = `
<html><body>
  <div class="article-preview">
    <h4>Playtest 8</h4>
    <div class="category">Class Feature, 01/15/2024</div>
    <div class="summary">Tell us what you think.</div>
    <a class="cta-button" href="/articles/playtest-8">More info</a>
  </div>
</body></html>`

	// Detail pages all fail; the batch must still come through.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(listing))
	}))
	defer server.Close()

	enricher := NewEnricher(fetch.New(server.Client()))
	s := NewScanner(domain.FeedUnearthedArcana, server.URL, fetch.New(server.Client()), enricher, testLogger())

	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article despite enrichment failure, got %d", len(articles))
	}
	if articles[0].Summary != "Tell us what you think." {
		t.Fatalf("base summary lost: %q", articles[0].Summary)
	}
}
