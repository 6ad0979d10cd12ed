package ports

import (
	"context"

	"github.com/aurzen/unearthedarcana/internal/domain"
)

// ArticleSource pulls the current article listing for one feed type.
// Results are ordered newest-published-first, matching source order.
type ArticleSource interface {
	Type() domain.FeedType
	Fetch(ctx context.Context) ([]domain.ArticleRecord, error)
}

// DocumentFetcher retrieves a raw document for a URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ConfigStore persists per-community settings and mutable delivery state.
// Keys are type-scoped paths such as "ua/last_post" or "ua/news_channel".
// The store provides last-writer-wins consistency per key, not multi-key
// atomicity.
type ConfigStore interface {
	Get(ctx context.Context, community, key string) (string, bool, error)
	Set(ctx context.Context, community, key, value string) error
	Delete(ctx context.Context, community, key string) error
	Communities(ctx context.Context) ([]string, error)
}

// Message is a chat message as seen by the delivery pipeline.
type Message struct {
	ID      string
	Content string
}

// Announcement is the rich body of a news post. Platform adapters render
// it natively (Discord embed, Telegram text).
type Announcement struct {
	Title       string
	Description string
	Body        string
	Color       int
	RoleID      string
	Nonce       string
}

// ChatPlatform is the boundary to the chat service. FetchMessage and Unpin
// report a missing message as domain.ErrNotFound; callers treat that as a
// no-op, not a failure.
type ChatPlatform interface {
	ResolveChannel(ctx context.Context, community, ref string) (string, error)
	ResolveRole(ctx context.Context, community, ref string) (string, error)
	Send(ctx context.Context, channelID, content string, embed *Announcement) (string, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Pin(ctx context.Context, channelID, messageID string) error
	Unpin(ctx context.Context, channelID, messageID string) error
}

// Publisher accepts article events for distribution. Submission is
// fire-and-forget: the poller never observes delivery outcomes.
type Publisher interface {
	Submit(ev domain.ArticlePublished)
}

// MetricsCollector records pipeline counters. Implementations must be safe
// for concurrent use.
type MetricsCollector interface {
	RecordPollCycle(feed domain.FeedType)
	RecordPollFailure(feed domain.FeedType)
	RecordEmitted(feed domain.FeedType, count int)
	RecordDelivery(feed domain.FeedType)
	RecordDeliveryFailure(feed domain.FeedType)
	RecordSkip(feed domain.FeedType)
}
