package openrtb_ext

import "github.com/prebid/openrtb/v20/openrtb2"

// ExtImp is the imp.ext written back onto a stored impression once its
// auction settles, recording the winning bid.
type ExtImp struct {
	Winner *openrtb2.Bid `json:"winner,omitempty"`
}
