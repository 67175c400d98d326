package openrtb_ext

import (
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// AdRequest is the publisher-boundary envelope describing one ad opportunity.
// Device and User are opaque pass-through data; the exchange forwards them to
// bidders without interpreting them.
type AdRequest struct {
	Timestamp time.Time        `json:"timestamp"`
	Device    *openrtb2.Device `json:"device,omitempty"`
	User      *openrtb2.User   `json:"user,omitempty"`
	Imps      []openrtb2.Imp   `json:"imps"`

	// TMax optionally overrides the configured auction time budget, in milliseconds.
	TMax int64 `json:"tmax,omitempty"`
}

// AdResponse maps each settled impression id to the creative markup resolved
// from the winning bidder. Impressions without a deliverable winner are absent.
type AdResponse struct {
	ImpHTML map[string]string `json:"imp_html"`
}
