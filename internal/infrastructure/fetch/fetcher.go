package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodySize    = 4 << 20
	userAgent      = "uabot/1.0"
)

// Client retrieves raw documents over HTTP. Failures and non-success
// statuses wrap domain.ErrFetch so callers can apply the retry-next-cycle
// policy uniformly.
type Client struct {
	http *http.Client
}

var _ ports.DocumentFetcher = (*Client)(nil)

// New builds a fetcher for operator-configured feed URLs.
func New(client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: client}
}

// NewSafe builds a fetcher for URLs that originate in scraped documents.
// The safeurl client blocks private, loopback, link-local, and metadata
// addresses after DNS resolution, so a hostile listing page cannot point
// enrichment fetches into the local network.
func NewSafe() *Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(defaultTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Client{http: safeurl.Client(cfg).Client}
}

// Fetch performs a GET and returns the body, capped at maxBodySize.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %v: %w", url, err, domain.ErrFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s: %w", url, resp.Status, domain.ErrFetch)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", url, err, domain.ErrFetch)
	}

	return body, nil
}
