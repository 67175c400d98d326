package storage

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/openrtb_ext"
)

// ErrNotFound is returned by point lookups that matched no document.
var ErrNotFound = errors.New("storage: document not found")

// Memory is the embedded in-process backend. Safe for concurrent use; every
// method hands out copies so no shared mutable state escapes the store.
type Memory struct {
	mu           sync.RWMutex
	auctions     map[string]Auction
	imps         map[string]openrtb2.Imp
	bidRequests  map[string]openrtb2.BidRequest
	bids         map[string]BidRecord
	bidResponses map[string]openrtb2.BidResponse
	bidders      []Bidder
	creatives    []Creative
}

func NewMemory() *Memory {
	return &Memory{
		auctions:     make(map[string]Auction),
		imps:         make(map[string]openrtb2.Imp),
		bidRequests:  make(map[string]openrtb2.BidRequest),
		bids:         make(map[string]BidRecord),
		bidResponses: make(map[string]openrtb2.BidResponse),
	}
}

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system entropy source does, in which
		// case nothing else in the process will work either.
		panic(err)
	}
	return id.String()
}

func (m *Memory) InsertAuction(ctx context.Context, auction *Auction) (string, error) {
	if auction.ID == "" {
		auction.ID = newID()
	}
	m.mu.Lock()
	m.auctions[auction.ID] = *auction
	m.mu.Unlock()
	return auction.ID, nil
}

func (m *Memory) UpdateAuction(ctx context.Context, auction *Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[auction.ID]; !ok {
		return ErrNotFound
	}
	m.auctions[auction.ID] = *auction
	return nil
}

// GetAuction is not part of the exchange port; it exists for tests and the
// admin surface.
func (m *Memory) GetAuction(ctx context.Context, id string) (*Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) InsertImp(ctx context.Context, imp *openrtb2.Imp) (string, error) {
	if imp.ID == "" {
		imp.ID = newID()
	}
	m.mu.Lock()
	m.imps[imp.ID] = *imp
	m.mu.Unlock()
	return imp.ID, nil
}

func (m *Memory) SetImpWinner(ctx context.Context, impID string, winner *openrtb2.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	imp, ok := m.imps[impID]
	if !ok {
		return ErrNotFound
	}
	ext, err := marshalImpExt(winner)
	if err != nil {
		return err
	}
	imp.Ext = ext
	m.imps[impID] = imp
	return nil
}

func (m *Memory) InsertBidRequest(ctx context.Context, req *openrtb2.BidRequest) (string, error) {
	if req.ID == "" {
		req.ID = newID()
	}
	m.mu.Lock()
	m.bidRequests[req.ID] = *req
	m.mu.Unlock()
	return req.ID, nil
}

func (m *Memory) Bidders(ctx context.Context) ([]Bidder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Bidder, len(m.bidders))
	copy(out, m.bidders)
	return out, nil
}

func (m *Memory) SeedBidders(ctx context.Context, bidders []Bidder) error {
	m.mu.Lock()
	m.bidders = append([]Bidder(nil), bidders...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) InsertBid(ctx context.Context, rec *BidRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.bids[rec.Bid.ID] = *rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetBid(ctx context.Context, id string) (*BidRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.bids[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) SetBidOutcome(ctx context.Context, id string, status openrtb_ext.BidStatus, creativeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.bids[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.CreativeID = creativeID
	m.bids[id] = rec
	return nil
}

func (m *Memory) InsertBidResponse(ctx context.Context, resp *openrtb2.BidResponse) (string, error) {
	if resp.ID == "" {
		resp.ID = newID()
	}
	m.mu.Lock()
	m.bidResponses[resp.ID] = *resp
	m.mu.Unlock()
	return resp.ID, nil
}

func (m *Memory) RandomCreative(ctx context.Context) (*Creative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.creatives) == 0 {
		return nil, ErrNotFound
	}
	c := m.creatives[rand.Intn(len(m.creatives))]
	return &c, nil
}

func (m *Memory) SeedCreatives(ctx context.Context, creatives []Creative) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creatives = append([]Creative(nil), creatives...)
	for i := range m.creatives {
		if m.creatives[i].ID == "" {
			m.creatives[i].ID = newID()
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
