package rss

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Source adapts an RSS/Atom feed to the article source port, so feed types
// published as syndication feeds run through the same pipeline as scraped
// listings.
type Source struct {
	feedType domain.FeedType
	url      string
	parser   *gofeed.Parser
	policy   *bluemonday.Policy
}

var _ ports.ArticleSource = (*Source)(nil)

// New builds an RSS source for one feed type.
func New(feedType domain.FeedType, url string) *Source {
	return &Source{
		feedType: feedType,
		url:      url,
		parser:   gofeed.NewParser(),
		// Item descriptions arrive as HTML fragments; summaries must be
		// plain text before they reach chat messages.
		policy: bluemonday.StrictPolicy(),
	}
}

// Type identifies the feed inside the source registry.
func (s *Source) Type() domain.FeedType {
	return s.feedType
}

// Fetch pulls and parses the feed, returning records newest-first.
func (s *Source) Fetch(ctx context.Context) ([]domain.ArticleRecord, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		if _, ok := err.(gofeed.HTTPError); ok {
			return nil, fmt.Errorf("fetch feed %s: %v: %w", s.url, err, domain.ErrFetch)
		}
		return nil, fmt.Errorf("parse feed %s: %v: %w", s.url, err, domain.ErrParse)
	}

	records := make([]domain.ArticleRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		records = append(records, s.toRecord(item))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})

	return records, nil
}

func (s *Source) toRecord(item *gofeed.Item) domain.ArticleRecord {
	record := domain.ArticleRecord{
		Title:    strings.TrimSpace(item.Title),
		Category: strings.Join(item.Categories, ", "),
		Summary:  domain.CollapseWhitespace(s.policy.Sanitize(item.Description)),
		Link:     item.Link,
		Type:     s.feedType,
	}

	if item.PublishedParsed != nil {
		record.PublishedAt = item.PublishedParsed.UTC().Truncate(24 * time.Hour)
	} else if item.UpdatedParsed != nil {
		record.PublishedAt = item.UpdatedParsed.UTC().Truncate(24 * time.Hour)
	}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if enc.Type == "application/pdf" || strings.HasSuffix(enc.URL, ".pdf") {
			record.PDFLinks = append(record.PDFLinks, enc.URL)
		}
	}

	return record
}
