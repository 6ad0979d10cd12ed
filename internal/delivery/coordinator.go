package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Coordinator is the per-article, per-community delivery state machine.
// For every known community it evaluates the (community, type) watermark
// and either skips or runs the full announce/digest/watermark sequence.
//
// All invocations are serialized under one lock: concurrent handling of
// two articles for the same community would race on the current/old
// message pointers and corrupt the rotation.
type Coordinator struct {
	store      ports.ConfigStore
	platform   ports.ChatPlatform
	strategies map[domain.FeedType]DigestStrategy
	fallback   DigestStrategy

	operatorChannel string
	metrics         ports.MetricsCollector
	logger          *slog.Logger

	mu sync.Mutex
}

// Deps wires the coordinator's collaborators.
type Deps struct {
	Store           ports.ConfigStore
	Platform        ports.ChatPlatform
	Strategies      map[domain.FeedType]DigestStrategy
	Fallback        DigestStrategy
	OperatorChannel string
	Metrics         ports.MetricsCollector
	Logger          *slog.Logger
}

// NewCoordinator constructs the delivery state machine.
func NewCoordinator(deps Deps) *Coordinator {
	fallback := deps.Fallback
	if fallback == nil {
		fallback = NewAppendBounded(deps.Store, deps.Platform)
	}
	return &Coordinator{
		store:           deps.Store,
		platform:        deps.Platform,
		strategies:      deps.Strategies,
		fallback:        fallback,
		operatorChannel: deps.OperatorChannel,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
	}
}

// HandleArticle distributes one article to every community. A failure in
// one community never aborts the remaining ones.
func (c *Coordinator) HandleArticle(ctx context.Context, article domain.ArticleRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	published, err := article.PublishDate()
	if err != nil {
		// Without a date, the watermark ordering is undefined; this
		// article is skipped everywhere, but the poller carries on.
		c.reportDiagnostic(ctx, fmt.Sprintf("cannot parse article date for %q (%s): %v",
			article.Title, article.Link, err))
		return
	}

	communities, err := c.store.Communities(ctx)
	if err != nil {
		c.logger.Error("list communities failed", "error", err)
		return
	}

	for _, community := range communities {
		if err := c.deliverTo(ctx, community, article, published); err != nil {
			c.metrics.RecordDeliveryFailure(article.Type)
			c.logger.Error("delivery failed",
				"community", community,
				"feed", article.Type,
				"link", article.Link,
				"error", err)
		}
	}
}

// deliverTo runs the state machine for one community. The watermark is
// committed last: a partial failure leaves it untouched so the sequence
// is re-attempted rather than silently skipped.
func (c *Coordinator) deliverTo(ctx context.Context, community string, article domain.ArticleRecord, published time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.DeliveryError{
				Community: community,
				Type:      article.Type,
				Step:      "panic",
				Err:       fmt.Errorf("%v", r),
			}
		}
	}()

	// Idempotency gate: an equal-or-newer watermark means this community
	// already has this article (or a newer one).
	raw, ok, err := c.store.Get(ctx, community, stateKey(article.Type, keyLastPost))
	if err != nil {
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "read watermark", Err: err}
	}
	if ok && raw != "" {
		mark, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return &domain.DeliveryError{Community: community, Type: article.Type, Step: "parse watermark", Err: perr}
		}
		if !published.After(mark) {
			c.metrics.RecordSkip(article.Type)
			return nil
		}
	}

	// Destination: no news channel means the community has not opted in.
	newsRef, ok, err := c.store.Get(ctx, community, stateKey(article.Type, keyNewsChannel))
	if err != nil {
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "read destination", Err: err}
	}
	if !ok || newsRef == "" {
		return nil
	}

	newsChannel, err := c.platform.ResolveChannel(ctx, community, newsRef)
	if err != nil {
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "resolve news channel", Err: err}
	}

	roleID := c.resolveRole(ctx, community, article.Type)

	announcement := composeAnnouncement(article, roleID)
	if _, err := c.platform.Send(ctx, newsChannel, "", &announcement); err != nil {
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "send announcement", Err: err}
	}

	if err := c.rotateDigest(ctx, community, article); err != nil {
		// The announcement went out but the digest did not roll. Leaving
		// the watermark alone keeps the two from desynchronizing quietly;
		// the next event re-attempts the whole sequence and the nonce on
		// the announcement bounds duplicate damage.
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "digest rotation", Err: err}
	}

	if err := c.store.Set(ctx, community, stateKey(article.Type, keyLastPost), published.Format(time.RFC3339)); err != nil {
		return &domain.DeliveryError{Community: community, Type: article.Type, Step: "commit watermark", Err: err}
	}

	c.metrics.RecordDelivery(article.Type)
	c.logger.Info("article delivered",
		"community", community,
		"feed", article.Type,
		"title", article.Title)
	return nil
}

func (c *Coordinator) resolveRole(ctx context.Context, community string, feedType domain.FeedType) string {
	ref, ok, err := c.store.Get(ctx, community, stateKey(feedType, keyRole))
	if err != nil || !ok || ref == "" {
		return ""
	}

	roleID, err := c.platform.ResolveRole(ctx, community, ref)
	if err != nil {
		c.logger.Warn("role resolution failed; announcing without mention",
			"community", community,
			"feed", feedType,
			"error", err)
		return ""
	}
	return roleID
}

func (c *Coordinator) rotateDigest(ctx context.Context, community string, article domain.ArticleRecord) error {
	discussRef, ok, err := c.store.Get(ctx, community, stateKey(article.Type, keyDiscussChannel))
	if err != nil {
		return fmt.Errorf("read discuss channel: %w", err)
	}
	if !ok || discussRef == "" {
		return nil
	}

	channelID, err := c.platform.ResolveChannel(ctx, community, discussRef)
	if err != nil {
		return fmt.Errorf("resolve discuss channel: %w", err)
	}

	strategy, ok := c.strategies[article.Type]
	if !ok {
		strategy = c.fallback
	}
	return strategy.Rotate(ctx, community, channelID, article)
}

// reportDiagnostic surfaces an operator-facing problem. Falls back to the
// log when no operator channel is configured; nothing is ever posted to a
// community's own channels.
func (c *Coordinator) reportDiagnostic(ctx context.Context, text string) {
	c.logger.Warn("pipeline diagnostic", "detail", text)

	if c.operatorChannel == "" {
		return
	}
	if _, err := c.platform.Send(ctx, c.operatorChannel, text, nil); err != nil {
		c.logger.Error("operator diagnostic send failed", "error", err)
	}
}
