// Package bidder is the remote-bidder side of the simulation: it answers bid
// requests with one bid per impression and resolves the win/loss notices that
// arrive after the auction settles.
package bidder

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/metrics"
	"github.com/adsim/adsim/openrtb_ext"
	"github.com/adsim/adsim/storage"
)

// Route paths of the bidder HTTP surface. The notice path is the one baked
// into every bid's nurl, so it is part of the wire contract with exchanges.
const (
	RequestPath = "/api/v1/bids/request"
	NoticeRoute = "/api/v1/bids/:bid_id/notice"
)

// NoticePath renders the notice callback path for one bid.
func NoticePath(bidID string) string {
	return "/api/v1/bids/" + bidID + "/notice"
}

// Service implements the bid responder and the notice resolver.
type Service struct {
	store       storage.BidderStore
	pricer      Pricer
	seat        string
	externalURL string
	me          metrics.MetricsEngine
}

func NewService(cfg *config.Configuration, store storage.BidderStore, me metrics.MetricsEngine) *Service {
	pricer := NewRandomPricer(cfg.Bidder.PriceMax)
	glog.Infof("Bidder service seat=%s pricing=%s", cfg.Bidder.Seat, pricer.Name())
	return &Service{
		store:       store,
		pricer:      pricer,
		seat:        cfg.Bidder.Seat,
		externalURL: strings.TrimSuffix(cfg.ExternalURL, "/"),
		me:          me,
	}
}

// GenerateBid synthesizes exactly one bid per impression. Every bid is
// persisted before the response is returned: the later notice arrives on a
// separate round trip, potentially at a different process instance, and must
// be resolvable purely by bid id.
func (s *Service) GenerateBid(ctx context.Context, bidRequest *openrtb2.BidRequest) (*openrtb2.BidResponse, error) {
	if bidRequest == nil || len(bidRequest.Imp) == 0 {
		return nil, &errortypes.BadInput{Message: "bid request must contain at least one impression"}
	}
	glog.V(2).Infof("Processing bid request id=%s with imp count=%d", bidRequest.ID, len(bidRequest.Imp))

	seatBid, err := s.makeSeatBid(ctx, bidRequest.Imp)
	if err != nil {
		return nil, err
	}

	bidResponse := &openrtb2.BidResponse{
		ID:      bidRequest.ID,
		SeatBid: []openrtb2.SeatBid{*seatBid},
		BidID:   newID(),
		Cur:     "USD",
	}
	if _, err := s.store.InsertBidResponse(ctx, bidResponse); err != nil {
		return nil, err
	}

	s.me.RecordBidRequestServed(len(bidRequest.Imp))
	glog.V(2).Infof("Generated bid response id=%s", bidResponse.ID)
	return bidResponse, nil
}

func (s *Service) makeSeatBid(ctx context.Context, imps []openrtb2.Imp) (*openrtb2.SeatBid, error) {
	seatBid := &openrtb2.SeatBid{Seat: s.seat}
	for i := range imps {
		imp := &imps[i]
		bid := openrtb2.Bid{
			ID:    newID(),
			ImpID: imp.ID,
			Price: s.pricer.Price(imp),
		}
		bid.NURL = s.externalURL + NoticePath(bid.ID)

		if err := s.store.InsertBid(ctx, &storage.BidRecord{Bid: bid}); err != nil {
			return nil, fmt.Errorf("failed to persist bid %s for imp %s: %v", bid.ID, imp.ID, err)
		}
		seatBid.Bid = append(seatBid.Bid, bid)
		glog.V(2).Infof("Bid for imp id=%s was generated with price=%.2f", imp.ID, bid.Price)
	}
	return seatBid, nil
}

// ProcessNotice resolves a win/loss notice against the stored bid. On a win
// it marks the bid won and returns creative markup drawn uniformly at random
// from the stored pool; on a loss it marks the bid lost and returns nothing.
// Repeated notices overwrite the outcome rather than corrupting it.
func (s *Service) ProcessNotice(ctx context.Context, bidID string, impID string, status openrtb_ext.BidStatus) (string, error) {
	rec, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		if err == storage.ErrNotFound {
			return "", &errortypes.UnknownBid{Message: fmt.Sprintf("no stored bid with id %s", bidID)}
		}
		return "", err
	}

	if status == openrtb_ext.BidStatusLoss {
		if err := s.store.SetBidOutcome(ctx, bidID, status, ""); err != nil {
			return "", err
		}
		s.me.RecordNoticeProcessed(status.String())
		glog.V(2).Infof("Bid id=%s lost imp id=%s", bidID, impID)
		return "", nil
	}

	creative, err := s.store.RandomCreative(ctx)
	if err != nil {
		return "", fmt.Errorf("no creative available for winning bid %s: %v", bidID, err)
	}
	if err := s.store.SetBidOutcome(ctx, bidID, status, creative.ID); err != nil {
		return "", err
	}
	s.me.RecordNoticeProcessed(status.String())
	glog.V(2).Infof("Bid id=%s won imp id=%s with price=%.2f, serving creative %s",
		bidID, impID, rec.Bid.Price, creative.ID)
	return creative.HTML, nil
}

// DefaultCreatives seeds the stored markup pool for a fresh process.
func DefaultCreatives() []storage.Creative {
	return []storage.Creative{
		{HTML: `<div>very <span style="color: blue">cool</span> ad</div>`},
		{HTML: `<div class="ad-banner"><a href="https://example.com/offers">limited time offer</a></div>`},
		{HTML: `<div><img src="https://cdn.example.com/creatives/728x90.png" alt="ad"/></div>`},
	}
}

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return id.String()
}
