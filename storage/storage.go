// Package storage is the document store collaborator shared by the exchange
// and the bidder service. The core depends on it only through insert/find/
// update-by-id operations, so any backend capable of point lookups and simple
// field updates can implement it.
package storage

import (
	"context"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/openrtb_ext"
)

// AuctionStatus tracks the one-directional auction lifecycle.
// The numeric values are part of the persisted document format.
type AuctionStatus int

const (
	AuctionPending  AuctionStatus = 1
	AuctionRunning  AuctionStatus = 2
	AuctionFinished AuctionStatus = 3
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionRunning:
		return "running"
	case AuctionFinished:
		return "finished"
	}
	return "unknown"
}

// Bidder is one entry of the registered bidder roster. The roster is
// read-only input for any given auction.
type Bidder struct {
	ID       string `json:"id"`
	Endpoint string `json:"bid_request_url"`
}

// Auction is the orchestration record for one settlement cycle. The exchange
// exclusively owns the value between Run start and finish; this type only
// describes its persisted shape.
type Auction struct {
	ID           string                 `json:"id"`
	ReservePrice float64                `json:"reserved_price"`
	AdRequest    openrtb_ext.AdRequest  `json:"ad_request"`
	Bidders      []Bidder               `json:"bidders"`
	Algorithm    string                 `json:"algorithm"`
	StartTime    time.Time              `json:"start_time"`
	FinishTime   time.Time              `json:"finish_time,omitempty"`
	Status       AuctionStatus          `json:"status"`
	Winners      map[string]openrtb2.Bid `json:"winners,omitempty"`
}

// BidRecord is the bidder-side persisted state for one submitted bid. It must
// carry enough to resolve a notice that arrives on a separate round trip,
// potentially to a different process instance.
type BidRecord struct {
	Bid openrtb2.Bid `json:"bid"`
	// Status is zero until a notice settles the bid.
	Status     openrtb_ext.BidStatus `json:"status,omitempty"`
	CreativeID string                `json:"creative_id,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Creative is one entry of the stored markup pool.
type Creative struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

// PublisherStore is the storage port consumed by the exchange.
// Insert operations assign a fresh id when the document has none, and return
// the id the document was stored under.
type PublisherStore interface {
	InsertAuction(ctx context.Context, auction *Auction) (string, error)
	UpdateAuction(ctx context.Context, auction *Auction) error
	InsertImp(ctx context.Context, imp *openrtb2.Imp) (string, error)
	SetImpWinner(ctx context.Context, impID string, winner *openrtb2.Bid) error
	InsertBidRequest(ctx context.Context, req *openrtb2.BidRequest) (string, error)
	Bidders(ctx context.Context) ([]Bidder, error)
	SeedBidders(ctx context.Context, bidders []Bidder) error
}

// BidderStore is the storage port consumed by the bidder service.
type BidderStore interface {
	InsertBid(ctx context.Context, rec *BidRecord) error
	GetBid(ctx context.Context, id string) (*BidRecord, error)
	SetBidOutcome(ctx context.Context, id string, status openrtb_ext.BidStatus, creativeID string) error
	InsertBidResponse(ctx context.Context, resp *openrtb2.BidResponse) (string, error)
	RandomCreative(ctx context.Context) (*Creative, error)
	SeedCreatives(ctx context.Context, creatives []Creative) error
}

// Store is a full backend serving both sides of the simulation. Lifecycle is
// scoped to process startup/shutdown.
type Store interface {
	PublisherStore
	BidderStore
	Close() error
}
