package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Poller periodically pulls one feed, filters out already-seen links, and
// emits the rest as events. Emission is fire-and-forget: delivery outcomes
// never flow back into the polling loop.
//
// The seen set lives for the process only. Across restarts the delivery
// watermark is the sole re-delivery guard.
type Poller struct {
	source   ports.ArticleSource
	sink     ports.Publisher
	interval time.Duration
	seen     map[string]struct{}
	metrics  ports.MetricsCollector
	logger   *slog.Logger
}

// New wires a poller for one feed. The logger is expected to already
// carry the feed identity; log lines here do not repeat it.
func New(src ports.ArticleSource, sink ports.Publisher, interval time.Duration, metrics ports.MetricsCollector, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Poller{
		source:   src,
		sink:     sink,
		interval: interval,
		seen:     map[string]struct{}{},
		metrics:  metrics,
		logger:   logger,
	}
}

// Run polls until the context is cancelled, starting with an immediate
// cycle. Fetch and parse failures are logged and retried next interval;
// nothing terminates the loop early.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	articles, err := p.source.Fetch(ctx)
	if err != nil {
		p.metrics.RecordPollFailure(p.source.Type())
		p.logger.Error("poll cycle failed", "error", err)
		return
	}
	p.metrics.RecordPollCycle(p.source.Type())

	unseen := make([]domain.ArticleRecord, 0, len(articles))
	for _, article := range articles {
		if _, ok := p.seen[article.Link]; ok {
			continue
		}
		unseen = append(unseen, article)
	}

	// Mark before emitting: a failure mid-emission must not cause the same
	// article to be emitted again on the next cycle of this process.
	for _, article := range unseen {
		p.seen[article.Link] = struct{}{}
	}

	// The source orders newest-first; downstream advances a monotonic
	// watermark, so events go out oldest-first.
	for i := len(unseen) - 1; i >= 0; i-- {
		p.sink.Submit(domain.ArticlePublished{Article: unseen[i]})
	}

	if len(unseen) > 0 {
		p.metrics.RecordEmitted(p.source.Type(), len(unseen))
		p.logger.Info("emitted new articles", "count", len(unseen))
	}
}
