// Package exchange runs the publisher-side auction: it solicits bids from
// every registered bidder, scores them, notifies winners and losers, and
// resolves the winning creative markup per impression.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"code.cloudfoundry.org/workpool"
	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/metrics"
	"github.com/adsim/adsim/openrtb_ext"
	"github.com/adsim/adsim/storage"
)

// Exchange settles one ad request into an impression-id → creative markup
// mapping. Auctions for different ad requests are fully independent and may
// run concurrently.
type Exchange interface {
	HoldAuction(ctx context.Context, adRequest *openrtb_ext.AdRequest) (*openrtb_ext.AdResponse, error)

	// Shutdown releases the notice worker pool. Call once at process exit.
	Shutdown()
}

type exchange struct {
	store         storage.PublisherStore
	client        *bidderClient
	algorithm     Algorithm
	cfg           config.AuctionConfig
	noticePool    *workpool.WorkPool
	noticeTimeout time.Duration
	me            metrics.MetricsEngine
}

// NewExchange builds an Exchange from the configured scoring strategy and a
// shared outbound HTTP client.
func NewExchange(cfg *config.Configuration, store storage.PublisherStore, client *http.Client, me metrics.MetricsEngine) (Exchange, error) {
	algorithm, err := AlgorithmByName(cfg.Auction.Algorithm)
	if err != nil {
		return nil, err
	}
	pool, err := workpool.NewWorkPool(cfg.Auction.NoticeWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create notice worker pool: %v", err)
	}
	return &exchange{
		store:         store,
		client:        newBidderClient(client),
		algorithm:     algorithm,
		cfg:           cfg.Auction,
		noticePool:    pool,
		noticeTimeout: time.Duration(cfg.Auction.NoticeTimeoutMS) * time.Millisecond,
		me:            me,
	}, nil
}

func (e *exchange) Shutdown() {
	e.noticePool.Stop()
}

func (e *exchange) HoldAuction(ctx context.Context, adRequest *openrtb_ext.AdRequest) (*openrtb_ext.AdResponse, error) {
	e.me.RecordAdRequest()
	errs := validateAdRequest(adRequest)
	if errortypes.ContainsFatalError(errs) {
		return nil, errortypes.FatalOnly(errs)[0]
	}
	for _, warn := range errortypes.WarningOnly(errs) {
		glog.Warningf("Ad request warning (code=%d): %v", errortypes.ReadCode(warn), warn)
	}

	auction, err := e.initAuction(ctx, adRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to create auction record: %v", err)
	}
	glog.Infof("Auction id=%s started", auction.ID)

	response, err := e.runAuction(ctx, auction)
	if err != nil {
		return nil, err
	}
	glog.Infof("Auction id=%s finished", auction.ID)
	return response, nil
}

// validateAdRequest classifies request problems by severity: fatal errors
// abort the auction, warnings are logged and the request proceeds.
func validateAdRequest(adRequest *openrtb_ext.AdRequest) []error {
	if adRequest == nil || len(adRequest.Imps) == 0 {
		return []error{&errortypes.BadInput{Message: "ad request must contain at least one impression"}}
	}
	var errs []error
	seen := make(map[string]struct{}, len(adRequest.Imps))
	for i, imp := range adRequest.Imps {
		if imp.ID == "" {
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("ad request imps[%d] has no id; one will be assigned", i),
				WarningCode: errortypes.UnknownWarningCode,
			})
			continue // assigned at persistence time
		}
		if _, dup := seen[imp.ID]; dup {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("ad request imps[%d] duplicates impression id %q", i, imp.ID)})
			continue
		}
		seen[imp.ID] = struct{}{}
	}
	return errs
}

// initAuction persists the request's impressions, resolves the bidder roster
// and reserve price, and stores the auction record in Pending state. Roster
// and reserve price are fixed for the auction's lifetime.
func (e *exchange) initAuction(ctx context.Context, adRequest *openrtb_ext.AdRequest) (*storage.Auction, error) {
	for i := range adRequest.Imps {
		if _, err := e.store.InsertImp(ctx, &adRequest.Imps[i]); err != nil {
			return nil, err
		}
	}

	bidders, err := e.store.Bidders(ctx)
	if err != nil {
		return nil, err
	}

	auction := &storage.Auction{
		ReservePrice: e.cfg.ReservePrice,
		AdRequest:    *adRequest,
		Bidders:      bidders,
		Algorithm:    e.algorithm.Name(),
		StartTime:    time.Now(),
		Status:       storage.AuctionPending,
	}
	if _, err := e.store.InsertAuction(ctx, auction); err != nil {
		return nil, err
	}
	glog.V(2).Infof("Auction created: id=%s bidders=%d reserve=%.2f algorithm=%s",
		auction.ID, len(auction.Bidders), auction.ReservePrice, auction.Algorithm)
	return auction, nil
}

// runAuction drives the Pending -> Running -> Finished state machine. It is a
// settlement: a Finished auction can never run again.
func (e *exchange) runAuction(ctx context.Context, auction *storage.Auction) (*openrtb_ext.AdResponse, error) {
	if auction.Status == storage.AuctionFinished {
		return nil, fmt.Errorf("auction %s is already finished and cannot be settled again", auction.ID)
	}
	auction.Status = storage.AuctionRunning
	if err := e.store.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	start := time.Now()
	timeoutMS := e.cfg.TimeoutMS(auction.AdRequest.TMax)
	auctionCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	bids, bidErrs := e.getAllBids(auctionCtx, auction, int64(timeoutMS))
	for _, err := range bidErrs {
		glog.Warningf("Auction %s (code=%d): %v", auction.ID, errortypes.ReadCode(err), err)
	}

	winners := e.algorithm.CalcWinner(bids, auction.ReservePrice)
	auction.Winners = winners

	impHTML := e.sendNotices(auction.ID, winners, bids)

	for impID := range winners {
		winner := winners[impID]
		if err := e.store.SetImpWinner(ctx, impID, &winner); err != nil {
			glog.Errorf("Auction %s: failed to record winner on imp %s: %v", auction.ID, impID, err)
		}
	}

	auction.Status = storage.AuctionFinished
	auction.FinishTime = time.Now()
	if err := e.store.UpdateAuction(ctx, auction); err != nil {
		glog.Errorf("Auction %s: failed to persist finished state: %v", auction.ID, err)
	}

	e.me.RecordAuction(e.algorithm.Name(), time.Since(start))
	return &openrtb_ext.AdResponse{ImpHTML: impHTML}, nil
}

type bidResponseWrapper struct {
	bidder   storage.Bidder
	index    int
	response *openrtb2.BidResponse
	elapsed  time.Duration
	err      error
}

// getAllBids calls every registered bidder in parallel and flattens the
// collected seat bids. A failed bidder is excluded from scoring and reported
// as a warning; it never aborts the auction. Results are flattened in roster
// order so scoring tie-breaks stay deterministic.
func (e *exchange) getAllBids(ctx context.Context, auction *storage.Auction, tmaxMS int64) ([]openrtb2.Bid, []error) {
	chBids := make(chan *bidResponseWrapper, len(auction.Bidders))
	for i, bidder := range auction.Bidders {
		runner := e.recoverSafely(auction.ID, func(bidder storage.Bidder, index int) {
			brw := &bidResponseWrapper{bidder: bidder, index: index}
			requestStart := time.Now()

			bidRequest, err := e.makeBidRequest(ctx, auction, tmaxMS)
			if err == nil {
				brw.response, err = e.client.RequestBid(ctx, bidder, bidRequest)
			}
			brw.elapsed = time.Since(requestStart)
			brw.err = err
			chBids <- brw
		}, chBids)
		go runner(bidder, i)
	}

	byIndex := make([]*bidResponseWrapper, len(auction.Bidders))
	for i := 0; i < len(auction.Bidders); i++ {
		brw := <-chBids
		byIndex[brw.index] = brw
	}

	var bids []openrtb2.Bid
	var errs []error
	for _, brw := range byIndex {
		if brw.err != nil {
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("bidder %s excluded from scoring: %v", brw.bidder.ID, brw.err),
				WarningCode: errortypes.BidderExcludedWarningCode,
			})
			e.me.RecordBidderRequest(brw.bidder.ID, false, brw.elapsed)
			continue
		}
		e.me.RecordBidderRequest(brw.bidder.ID, true, brw.elapsed)
		if brw.response == nil {
			continue // well-formed no-bid
		}
		for _, seatBid := range brw.response.SeatBid {
			for _, bid := range seatBid.Bid {
				e.me.RecordBidPrice(brw.bidder.ID, bid.Price)
				bids = append(bids, bid)
			}
		}
	}
	return bids, errs
}

func (e *exchange) recoverSafely(auctionID string, inner func(storage.Bidder, int), chBids chan *bidResponseWrapper) func(storage.Bidder, int) {
	return func(bidder storage.Bidder, index int) {
		defer func() {
			if r := recover(); r != nil {
				glog.Errorf("Auction %s recovered panic from bidder %s: %v, stack trace is: %v",
					auctionID, bidder.ID, r, string(debug.Stack()))
				// Let the collector know there is no data here.
				chBids <- &bidResponseWrapper{
					bidder: bidder,
					index:  index,
					err:    fmt.Errorf("bidder %s panicked: %v", bidder.ID, r),
				}
			}
		}()
		inner(bidder, index)
	}
}

// makeBidRequest builds and persists the bid request sent to one bidder. Each
// bidder gets its own request document with a fresh id.
func (e *exchange) makeBidRequest(ctx context.Context, auction *storage.Auction, tmaxMS int64) (*openrtb2.BidRequest, error) {
	bidRequest := &openrtb2.BidRequest{
		Imp:    auction.AdRequest.Imps,
		Device: auction.AdRequest.Device,
		User:   auction.AdRequest.User,
		TMax:   tmaxMS,
	}
	if _, err := e.store.InsertBidRequest(ctx, bidRequest); err != nil {
		return nil, err
	}
	return bidRequest, nil
}

// sendNotices posts a win notice to each winning bid and a loss notice to
// every other collected bid, through a bounded worker pool. Notices run on
// their own deadline: settlement is already decided, so a canceled inbound
// request must not suppress them, and a failed notice never rolls back the
// winner selection. Returns the markup returned by win notices, keyed by
// impression id.
func (e *exchange) sendNotices(auctionID string, winners map[string]openrtb2.Bid, bids []openrtb2.Bid) map[string]string {
	type noticeResult struct {
		impID string
		html  string
	}
	results := make(chan noticeResult, len(bids))

	var wg sync.WaitGroup
	for i := range bids {
		bid := bids[i]
		status := openrtb_ext.BidStatusLoss
		if winner, ok := winners[bid.ImpID]; ok && winner.ID == bid.ID {
			status = openrtb_ext.BidStatusWin
		}

		wg.Add(1)
		e.noticePool.Submit(func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), e.noticeTimeout)
			defer cancel()

			html, err := e.client.SendNotice(ctx, &bid, status)
			if err != nil {
				glog.Warningf("Auction %s: %v", auctionID, err)
				e.me.RecordNotice(status.String(), false)
				return
			}
			e.me.RecordNotice(status.String(), true)
			if status == openrtb_ext.BidStatusWin {
				results <- noticeResult{impID: bid.ImpID, html: html}
			}
		})
	}
	wg.Wait()
	close(results)

	impHTML := make(map[string]string)
	for result := range results {
		impHTML[result.impID] = result.html
	}
	return impHTML
}
