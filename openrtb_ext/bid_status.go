package openrtb_ext

import "strconv"

// BidStatus is the win/loss outcome code carried on notice callbacks.
// The numeric values are part of the notice wire format.
type BidStatus int

const (
	BidStatusWin  BidStatus = 1
	BidStatusLoss BidStatus = 2
)

func (s BidStatus) String() string {
	switch s {
	case BidStatusWin:
		return "win"
	case BidStatusLoss:
		return "loss"
	}
	return "unknown"
}

// Wire returns the query-parameter representation of the status.
func (s BidStatus) Wire() string {
	return strconv.Itoa(int(s))
}

// ParseBidStatus parses the notice status query parameter.
func ParseBidStatus(raw string) (BidStatus, bool) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	s := BidStatus(v)
	if s != BidStatusWin && s != BidStatusLoss {
		return 0, false
	}
	return s, true
}
