package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/metrics"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Server is the local operations listener: Prometheus scrapes /metrics,
// and POST /mock pushes a synthetic article through the real distribution
// path without touching the scraper.
type Server struct {
	addr     string
	sink     ports.Publisher
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New builds the control server.
func New(addr string, sink ports.Publisher, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{addr: addr, sink: sink, gatherer: gatherer, logger: logger}
}

// Router assembles the control endpoints.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(s.gatherer))
	mux.HandleFunc("/mock", s.handleMock)
	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info("control server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleMock injects a dummy article of the requested type. The link is
// unique per call so the event survives downstream dedup, and the
// category carries today's date so the watermark gate lets it through.
func (s *Server) handleMock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	feedType := r.URL.Query().Get("type")
	if feedType == "" {
		feedType = string(domain.FeedUnearthedArcana)
	}

	stamp := time.Now().Format("01/02/2006")
	article := domain.ArticleRecord{
		Title:    "Title " + stamp,
		Category: "Category " + stamp,
		Summary:  "Summary " + stamp,
		Link:     "https://mock.invalid/" + uuid.NewString(),
		Type:     domain.FeedType(feedType),
	}

	s.sink.Submit(domain.ArticlePublished{Article: article})
	s.logger.Info("synthetic article injected", "feed", feedType)

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "injected %s article %s\n", feedType, article.Link)
}
