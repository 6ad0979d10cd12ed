package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const maxEnrichedSummary = 600

// Enricher follows an article's link to its detail page and pulls a richer
// summary plus any embedded PDF links. Detail pages come out of scraped
// documents, so the fetcher here should be the SSRF-guarded one.
type Enricher struct {
	fetcher   ports.DocumentFetcher
	converter *md.Converter
}

// NewEnricher builds an enricher around the given fetcher.
func NewEnricher(fetcher ports.DocumentFetcher) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		converter: md.NewConverter("", true, nil),
	}
}

// Enrich mutates the record in place. A failure leaves the record as
// parsed from the listing; the caller decides whether to log it.
func (e *Enricher) Enrich(ctx context.Context, article *domain.ArticleRecord) error {
	raw, err := e.fetcher.Fetch(ctx, article.Link)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse detail page %s: %w", article.Link, err)
	}

	body := doc.Find("article").First()
	if body.Length() == 0 {
		body = doc.Find(".article-content").First()
	}
	if body.Length() > 0 {
		summary := strings.TrimSpace(e.converter.Convert(body))
		if summary != "" {
			article.Summary = truncate(summary, maxEnrichedSummary)
		}
	}

	doc.Find(`a[href$=".pdf"]`).Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		pdf := absoluteURL(siteBase(article.Link), href)
		for _, known := range article.PDFLinks {
			if known == pdf {
				return
			}
		}
		article.PDFLinks = append(article.PDFLinks, pdf)
	})

	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
