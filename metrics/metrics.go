// Package metrics defines the engine interface the rest of the app records
// through. Metrics are a pure side channel; nothing here may influence
// control flow.
package metrics

import "time"

// MetricsEngine is a generic interface to record application metrics into.
type MetricsEngine interface {
	// Publisher side.
	RecordAdRequest()
	RecordAuction(algorithm string, length time.Duration)
	RecordBidderRequest(bidder string, success bool, length time.Duration)
	RecordBidPrice(bidder string, price float64)
	RecordNotice(status string, success bool)

	// Bidder side.
	RecordBidRequestServed(imps int)
	RecordNoticeProcessed(outcome string)
}

// NilMetricsEngine implements the MetricsEngine interface where no metrics are actually captured.
// Used when metrics are disabled, and as the engine in tests.
type NilMetricsEngine struct{}

func (me *NilMetricsEngine) RecordAdRequest()                                       {}
func (me *NilMetricsEngine) RecordAuction(string, time.Duration)                    {}
func (me *NilMetricsEngine) RecordBidderRequest(string, bool, time.Duration)        {}
func (me *NilMetricsEngine) RecordBidPrice(string, float64)                         {}
func (me *NilMetricsEngine) RecordNotice(string, bool)                              {}
func (me *NilMetricsEngine) RecordBidRequestServed(int)                             {}
func (me *NilMetricsEngine) RecordNoticeProcessed(string)                           {}
