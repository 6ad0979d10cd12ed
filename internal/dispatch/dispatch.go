package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const defaultBuffer = 64

// Handler consumes one published article at a time.
type Handler interface {
	HandleArticle(ctx context.Context, article domain.ArticleRecord)
}

// Dispatcher is the event stream between pollers and delivery. A single
// consumer goroutine drains the queue, so one article is fully processed
// across all communities before the next one starts. That serialization is
// what keeps overlapping current/old digest rotations from interleaving.
type Dispatcher struct {
	events  chan domain.ArticlePublished
	handler Handler
	logger  *slog.Logger
}

var _ ports.Publisher = (*Dispatcher)(nil)

// New builds a dispatcher around the given handler.
func New(handler Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		events:  make(chan domain.ArticlePublished, defaultBuffer),
		handler: handler,
		logger:  logger,
	}
}

// Submit queues an article event. Blocks only when the buffer is full.
func (d *Dispatcher) Submit(ev domain.ArticlePublished) {
	d.events <- ev
}

// Run consumes events until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case ev := <-d.events:
			d.dispatch(ctx, ev)
		}
	}
}

// dispatch isolates one event: a panicking handler must not stop the
// stream for later articles.
func (d *Dispatcher) dispatch(ctx context.Context, ev domain.ArticlePublished) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("article handler panicked",
				"link", ev.Article.Link,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	d.handler.HandleArticle(ctx, ev.Article)
}
