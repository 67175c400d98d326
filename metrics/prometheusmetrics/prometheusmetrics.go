package prometheusmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adsim/adsim/config"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registry *prometheus.Registry

	adRequests       prometheus.Counter
	auctionTimer     *prometheus.HistogramVec
	bidderRequests   *prometheus.CounterVec
	bidderTimer      *prometheus.HistogramVec
	bidPrices        *prometheus.HistogramVec
	notices          *prometheus.CounterVec
	bidRequests      prometheus.Counter
	bidsGenerated    prometheus.Counter
	noticesProcessed *prometheus.CounterVec
}

const (
	algorithmLabel = "algorithm"
	bidderLabel    = "bidder"
	successLabel   = "success"
	statusLabel    = "status"
	outcomeLabel   = "outcome"
)

// standardTimeBuckets are in seconds, tuned for sub-second auction calls.
var standardTimeBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var priceBuckets = []float64{0.5, 1, 2, 4, 6, 8, 10, 20}

// NewMetrics constructs the engine and registers all metrics with a fresh registry.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.adRequests = newCounter(cfg, m.Registry,
		"ad_requests_total",
		"Count of ad requests received at the publisher boundary.")

	m.auctionTimer = newHistogramVec(cfg, m.Registry,
		"auction_duration_seconds",
		"Seconds to settle an auction, labeled by scoring algorithm.",
		[]string{algorithmLabel},
		standardTimeBuckets)

	m.bidderRequests = newCounterVec(cfg, m.Registry,
		"bidder_requests_total",
		"Count of outbound bid requests by bidder and success.",
		[]string{bidderLabel, successLabel})

	m.bidderTimer = newHistogramVec(cfg, m.Registry,
		"bidder_request_duration_seconds",
		"Seconds waiting for a bidder's bid response.",
		[]string{bidderLabel},
		standardTimeBuckets)

	m.bidPrices = newHistogramVec(cfg, m.Registry,
		"bid_prices",
		"Prices of bids collected from bidders.",
		[]string{bidderLabel},
		priceBuckets)

	m.notices = newCounterVec(cfg, m.Registry,
		"notices_total",
		"Count of win/loss notices sent, by status and delivery success.",
		[]string{statusLabel, successLabel})

	m.bidRequests = newCounter(cfg, m.Registry,
		"bid_requests_served_total",
		"Count of inbound bid requests served by the bidder side.")

	m.bidsGenerated = newCounter(cfg, m.Registry,
		"bids_generated_total",
		"Count of bids synthesized by the bidder side.")

	m.noticesProcessed = newCounterVec(cfg, m.Registry,
		"notices_processed_total",
		"Count of notices resolved by the bidder side, by outcome.",
		[]string{outcomeLabel})

	return m
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string) prometheus.Counter {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(counter)
	return counter
}

func newCounterVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	registry.MustRegister(counter)
	return counter
}

func newHistogramVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	registry.MustRegister(histogram)
	return histogram
}

func (m *Metrics) RecordAdRequest() {
	m.adRequests.Inc()
}

func (m *Metrics) RecordAuction(algorithm string, length time.Duration) {
	m.auctionTimer.With(prometheus.Labels{
		algorithmLabel: algorithm,
	}).Observe(length.Seconds())
}

func (m *Metrics) RecordBidderRequest(bidder string, success bool, length time.Duration) {
	m.bidderRequests.With(prometheus.Labels{
		bidderLabel:  bidder,
		successLabel: strconv.FormatBool(success),
	}).Inc()
	if success {
		m.bidderTimer.With(prometheus.Labels{
			bidderLabel: bidder,
		}).Observe(length.Seconds())
	}
}

func (m *Metrics) RecordBidPrice(bidder string, price float64) {
	m.bidPrices.With(prometheus.Labels{
		bidderLabel: bidder,
	}).Observe(price)
}

func (m *Metrics) RecordNotice(status string, success bool) {
	m.notices.With(prometheus.Labels{
		statusLabel:  status,
		successLabel: strconv.FormatBool(success),
	}).Inc()
}

func (m *Metrics) RecordBidRequestServed(imps int) {
	m.bidRequests.Inc()
	m.bidsGenerated.Add(float64(imps))
}

func (m *Metrics) RecordNoticeProcessed(outcome string) {
	m.noticesProcessed.With(prometheus.Labels{
		outcomeLabel: outcome,
	}).Inc()
}
