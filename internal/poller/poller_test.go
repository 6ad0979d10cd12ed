package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/metrics"
)

type fakeSource struct {
	batches [][]domain.ArticleRecord
	errs    []error
	calls   int
}

func (f *fakeSource) Type() domain.FeedType { return domain.FeedUnearthedArcana }

func (f *fakeSource) Fetch(context.Context) ([]domain.ArticleRecord, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return f.batches[i], nil
}

type recordingSink struct {
	events []domain.ArticlePublished
}

func (r *recordingSink) Submit(ev domain.ArticlePublished) {
	r.events = append(r.events, ev)
}

func article(link string) domain.ArticleRecord {
	return domain.ArticleRecord{
		Title: link,
		Link:  "https://example.test/" + link,
		Type:  domain.FeedUnearthedArcana,
	}
}

func TestCycleEmitsOldestFirst(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]domain.ArticleRecord{
		{article("newest"), article("middle"), article("oldest")},
	}}
	sink := &recordingSink{}
	p := New(src, sink, time.Hour, metrics.Nop{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.cycle(context.Background())

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}
	want := []string{"oldest", "middle", "newest"}
	for i, name := range want {
		if sink.events[i].Article.Title != name {
			t.Fatalf("event %d: got %q, want %q", i, sink.events[i].Article.Title, name)
		}
	}
}

func TestCycleDeduplicatesAcrossCycles(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]domain.ArticleRecord{
		{article("a"), article("b")},
		{article("fresh"), article("a"), article("b")},
	}}
	sink := &recordingSink{}
	p := New(src, sink, time.Hour, metrics.Nop{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.cycle(context.Background())
	if len(sink.events) != 2 {
		t.Fatalf("first cycle: expected 2 events, got %d", len(sink.events))
	}

	p.cycle(context.Background())
	if len(sink.events) != 3 {
		t.Fatalf("second cycle: expected 1 new event, got %d total", len(sink.events))
	}
	if got := sink.events[2].Article.Title; got != "fresh" {
		t.Fatalf("second cycle emitted %q", got)
	}

	// A third cycle with nothing new emits nothing.
	p.cycle(context.Background())
	if len(sink.events) != 3 {
		t.Fatalf("third cycle: expected no new events, got %d total", len(sink.events))
	}
}

func TestCycleSurvivesFetchFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		batches: [][]domain.ArticleRecord{nil, {article("late")}},
		errs:    []error{errors.New("site down")},
	}
	sink := &recordingSink{}
	p := New(src, sink, time.Hour, metrics.Nop{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.cycle(context.Background())
	if len(sink.events) != 0 {
		t.Fatalf("failed cycle emitted %d events", len(sink.events))
	}

	p.cycle(context.Background())
	if len(sink.events) != 1 || sink.events[0].Article.Title != "late" {
		t.Fatalf("recovery cycle events: %v", sink.events)
	}
}

// feedAttrHandler counts how many "feed" attributes each record ends up
// with, including ones bound via Logger.With.
type feedAttrHandler struct {
	bound  int
	counts *[]int
}

func (h *feedAttrHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *feedAttrHandler) Handle(_ context.Context, r slog.Record) error {
	n := h.bound
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "feed" {
			n++
		}
		return true
	})
	*h.counts = append(*h.counts, n)
	return nil
}

func (h *feedAttrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if a.Key == "feed" {
			next.bound++
		}
	}
	return &next
}

func (h *feedAttrHandler) WithGroup(string) slog.Handler { return h }

func TestCycleLogsFeedAttributeOnce(t *testing.T) {
	t.Parallel()

	var counts []int
	logger := slog.New(&feedAttrHandler{counts: &counts}).
		With("component", "poller", "feed", "ua")

	src := &fakeSource{
		batches: [][]domain.ArticleRecord{nil, {article("a")}},
		errs:    []error{errors.New("site down")},
	}
	p := New(src, &recordingSink{}, time.Hour, metrics.Nop{}, logger)

	p.cycle(context.Background()) // failure line
	p.cycle(context.Background()) // emission line

	if len(counts) == 0 {
		t.Fatal("no log records produced")
	}
	for i, n := range counts {
		if n != 1 {
			t.Fatalf("record %d carries %d feed attributes", i, n)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	src := &fakeSource{batches: [][]domain.ArticleRecord{nil}}
	p := New(src, &recordingSink{}, time.Hour, metrics.Nop{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
