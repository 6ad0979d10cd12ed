package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FeedType identifies one configured article feed (ua, sac, ...).
type FeedType string

const (
	FeedUnearthedArcana FeedType = "ua"
	FeedSageAdvice      FeedType = "sac"
)

// Label returns the upper-cased short form used in message headers.
func (t FeedType) Label() string {
	return strings.ToUpper(string(t))
}

// ArticleRecord is one scraped announcement. The Link is the deduplication
// key; records are immutable once emitted.
type ArticleRecord struct {
	Title       string
	Category    string
	Summary     string
	Link        string
	Type        FeedType
	PDFLinks    []string
	PublishedAt time.Time
}

// PublishDate returns the article's publish date, deriving it from the
// category text when the source did not carry an explicit date.
func (a ArticleRecord) PublishDate() (time.Time, error) {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt, nil
	}
	return ExtractPublishDate(a.Category)
}

// ArticlePublished is the event emitted for every not-yet-seen article.
type ArticlePublished struct {
	Article ArticleRecord
}

var publishDateExpr = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// ExtractPublishDate pulls the first MM/DD/YYYY pattern out of a category
// string. A missing or malformed date is an error, not a zero default:
// without it the delivery watermark cannot be ordered.
func ExtractPublishDate(category string) (time.Time, error) {
	match := publishDateExpr.FindString(category)
	if match == "" {
		return time.Time{}, fmt.Errorf("category %q: %w", category, ErrDateParse)
	}

	parsed, err := time.Parse("01/02/2006", match)
	if err != nil {
		return time.Time{}, fmt.Errorf("category %q: %w", category, ErrDateParse)
	}

	return parsed, nil
}

var spaceRunExpr = regexp.MustCompile(`(\s)\s+`)

// CollapseWhitespace reduces every run of whitespace to its first character
// and trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRunExpr.ReplaceAllString(s, "$1"))
}
