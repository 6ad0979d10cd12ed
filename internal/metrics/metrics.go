// Package metrics collects Prometheus counters for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Collector implements ports.MetricsCollector on a Prometheus registry.
type Collector struct {
	pollCycles        *prometheus.CounterVec
	pollFailures      *prometheus.CounterVec
	articlesEmitted   *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec
	deliveriesSkipped *prometheus.CounterVec
}

var _ ports.MetricsCollector = (*Collector)(nil)

// NewCollector registers the pipeline counters on the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	feedLabel := []string{"feed"}

	c := &Collector{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_poll_cycles_total",
			Help: "Completed poll cycles per feed.",
		}, feedLabel),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_poll_failures_total",
			Help: "Poll cycles that failed to fetch or parse, per feed.",
		}, feedLabel),
		articlesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_articles_emitted_total",
			Help: "Unseen articles emitted to the distribution stream, per feed.",
		}, feedLabel),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_deliveries_total",
			Help: "Successful per-community article deliveries, per feed.",
		}, feedLabel),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_delivery_failures_total",
			Help: "Per-community delivery failures, per feed.",
		}, feedLabel),
		deliveriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uabot_deliveries_skipped_total",
			Help: "Deliveries skipped by the watermark gate, per feed.",
		}, feedLabel),
	}

	reg.MustRegister(
		c.pollCycles,
		c.pollFailures,
		c.articlesEmitted,
		c.deliveries,
		c.deliveryFailures,
		c.deliveriesSkipped,
	)

	return c
}

// RecordPollCycle counts one completed poll cycle.
func (c *Collector) RecordPollCycle(feed domain.FeedType) {
	c.pollCycles.WithLabelValues(string(feed)).Inc()
}

// RecordPollFailure counts one failed poll cycle.
func (c *Collector) RecordPollFailure(feed domain.FeedType) {
	c.pollFailures.WithLabelValues(string(feed)).Inc()
}

// RecordEmitted counts articles emitted to the stream.
func (c *Collector) RecordEmitted(feed domain.FeedType, count int) {
	c.articlesEmitted.WithLabelValues(string(feed)).Add(float64(count))
}

// RecordDelivery counts one successful community delivery.
func (c *Collector) RecordDelivery(feed domain.FeedType) {
	c.deliveries.WithLabelValues(string(feed)).Inc()
}

// RecordDeliveryFailure counts one failed community delivery.
func (c *Collector) RecordDeliveryFailure(feed domain.FeedType) {
	c.deliveryFailures.WithLabelValues(string(feed)).Inc()
}

// RecordSkip counts one watermark-gated skip.
func (c *Collector) RecordSkip(feed domain.FeedType) {
	c.deliveriesSkipped.WithLabelValues(string(feed)).Inc()
}

// Handler returns the Prometheus scrape handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all measurements; used where metrics are not wired.
type Nop struct{}

var _ ports.MetricsCollector = Nop{}

func (Nop) RecordPollCycle(domain.FeedType)       {}
func (Nop) RecordPollFailure(domain.FeedType)     {}
func (Nop) RecordEmitted(domain.FeedType, int)    {}
func (Nop) RecordDelivery(domain.FeedType)        {}
func (Nop) RecordDeliveryFailure(domain.FeedType) {}
func (Nop) RecordSkip(domain.FeedType)            {}
