package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const moreInfoLabel = "More info"

// Scanner turns the announcement listing page of one feed into article
// records, newest-published-first as the source orders them.
type Scanner struct {
	feedType domain.FeedType
	url      string
	baseURL  string
	fetcher  ports.DocumentFetcher
	enricher *Enricher
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*Scanner)(nil)

// NewScanner wires a listing scanner. enricher may be nil to disable the
// secondary per-article fetch.
func NewScanner(feedType domain.FeedType, url string, fetcher ports.DocumentFetcher, enricher *Enricher, logger *slog.Logger) *Scanner {
	return &Scanner{
		feedType: feedType,
		url:      url,
		baseURL:  siteBase(url),
		fetcher:  fetcher,
		enricher: enricher,
		logger:   logger,
	}
}

// Type identifies the feed inside the source registry.
func (s *Scanner) Type() domain.FeedType {
	return s.feedType
}

// Fetch retrieves and parses the listing page. A document without any
// article-preview block fails with domain.ErrParse; a block without a
// "More info" link is skipped, since the article is not linkable yet.
func (s *Scanner) Fetch(ctx context.Context) ([]domain.ArticleRecord, error) {
	raw, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}

	articles, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}

	if s.enricher != nil {
		for i := range articles {
			if err := s.enricher.Enrich(ctx, &articles[i]); err != nil {
				// Enrichment is best effort: the base record stands.
				s.logger.Warn("article enrichment failed",
					"link", articles[i].Link,
					"error", err)
			}
		}
	}

	return articles, nil
}

// Parse extracts article records from a raw listing document.
func (s *Scanner) Parse(raw []byte) ([]domain.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %v: %w", s.url, err, domain.ErrParse)
	}

	previews := doc.Find(".article-preview")
	if previews.Length() == 0 {
		return nil, fmt.Errorf("no article previews in %s: %w", s.url, domain.ErrParse)
	}

	var articles []domain.ArticleRecord
	previews.Each(func(_ int, preview *goquery.Selection) {
		link := preview.Find(".cta-button").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return strings.TrimSpace(sel.Text()) == moreInfoLabel
		}).First()

		href, exists := link.Attr("href")
		if !exists {
			return
		}

		category := domain.CollapseWhitespace(preview.Find(".category").First().Text())

		record := domain.ArticleRecord{
			Title:    strings.TrimSpace(preview.Find("h4").First().Text()),
			Category: category,
			Summary:  strings.TrimSpace(preview.Find(".summary").First().Text()),
			Link:     absoluteURL(s.baseURL, href),
			Type:     s.feedType,
		}

		if published, err := domain.ExtractPublishDate(category); err == nil {
			record.PublishedAt = published
		}

		articles = append(articles, record)
	})

	return articles, nil
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + href
}

func siteBase(listingURL string) string {
	trimmed := listingURL
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(trimmed, prefix) {
			if idx := strings.Index(trimmed[len(prefix):], "/"); idx >= 0 {
				return trimmed[:len(prefix)+idx]
			}
			return trimmed
		}
	}
	return trimmed
}
