package storage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	redis "github.com/redis/go-redis/v9"

	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/openrtb_ext"
)

// Redis is a document store backed by a Redis instance. Documents are stored
// as JSON under "adsim:<collection>:<id>" keys; the creative pool and the
// bidder roster are kept as sets so members can be drawn or listed without
// scanning.
type Redis struct {
	client *redis.Client
}

const (
	keyAuction     = "adsim:auction:%s"
	keyImp         = "adsim:imp:%s"
	keyBidRequest  = "adsim:bid_request:%s"
	keyBid         = "adsim:bid:%s"
	keyBidResponse = "adsim:bid_response:%s"
	keyBidderSet   = "adsim:bidders"
	keyCreative    = "adsim:creative:%s"
	keyCreativeSet = "adsim:creatives"
)

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

func (s *Redis) setJSON(ctx context.Context, key string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for %s: %w", key, err)
	}
	return s.client.Set(ctx, key, body, 0).Err()
}

func (s *Redis) getJSON(ctx context.Context, key string, doc interface{}) error {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal([]byte(val), doc); err != nil {
		return fmt.Errorf("failed to unmarshal document at %s: %w", key, err)
	}
	return nil
}

func (s *Redis) InsertAuction(ctx context.Context, auction *Auction) (string, error) {
	if auction.ID == "" {
		auction.ID = newID()
	}
	return auction.ID, s.setJSON(ctx, fmt.Sprintf(keyAuction, auction.ID), auction)
}

func (s *Redis) UpdateAuction(ctx context.Context, auction *Auction) error {
	key := fmt.Sprintf(keyAuction, auction.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists failed: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.setJSON(ctx, key, auction)
}

func (s *Redis) InsertImp(ctx context.Context, imp *openrtb2.Imp) (string, error) {
	if imp.ID == "" {
		imp.ID = newID()
	}
	return imp.ID, s.setJSON(ctx, fmt.Sprintf(keyImp, imp.ID), imp)
}

func (s *Redis) SetImpWinner(ctx context.Context, impID string, winner *openrtb2.Bid) error {
	key := fmt.Sprintf(keyImp, impID)
	var imp openrtb2.Imp
	if err := s.getJSON(ctx, key, &imp); err != nil {
		return err
	}
	ext, err := marshalImpExt(winner)
	if err != nil {
		return err
	}
	imp.Ext = ext
	return s.setJSON(ctx, key, &imp)
}

func (s *Redis) InsertBidRequest(ctx context.Context, req *openrtb2.BidRequest) (string, error) {
	if req.ID == "" {
		req.ID = newID()
	}
	return req.ID, s.setJSON(ctx, fmt.Sprintf(keyBidRequest, req.ID), req)
}

func (s *Redis) Bidders(ctx context.Context) ([]Bidder, error) {
	members, err := s.client.SMembers(ctx, keyBidderSet).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	bidders := make([]Bidder, 0, len(members))
	for _, raw := range members {
		var b Bidder
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bidder roster entry: %w", err)
		}
		bidders = append(bidders, b)
	}
	return bidders, nil
}

func (s *Redis) SeedBidders(ctx context.Context, bidders []Bidder) error {
	if err := s.client.Del(ctx, keyBidderSet).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	for _, b := range bidders {
		body, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bidder roster entry: %w", err)
		}
		if err := s.client.SAdd(ctx, keyBidderSet, body).Err(); err != nil {
			return fmt.Errorf("redis sadd failed: %w", err)
		}
	}
	return nil
}

func (s *Redis) InsertBid(ctx context.Context, rec *BidRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.setJSON(ctx, fmt.Sprintf(keyBid, rec.Bid.ID), rec)
}

func (s *Redis) GetBid(ctx context.Context, id string) (*BidRecord, error) {
	var rec BidRecord
	if err := s.getJSON(ctx, fmt.Sprintf(keyBid, id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Redis) SetBidOutcome(ctx context.Context, id string, status openrtb_ext.BidStatus, creativeID string) error {
	key := fmt.Sprintf(keyBid, id)
	var rec BidRecord
	if err := s.getJSON(ctx, key, &rec); err != nil {
		return err
	}
	rec.Status = status
	rec.CreativeID = creativeID
	return s.setJSON(ctx, key, &rec)
}

func (s *Redis) InsertBidResponse(ctx context.Context, resp *openrtb2.BidResponse) (string, error) {
	if resp.ID == "" {
		resp.ID = newID()
	}
	return resp.ID, s.setJSON(ctx, fmt.Sprintf(keyBidResponse, resp.ID), resp)
}

func (s *Redis) RandomCreative(ctx context.Context) (*Creative, error) {
	id, err := s.client.SRandMember(ctx, keyCreativeSet).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis srandmember failed: %w", err)
	}
	var c Creative
	if err := s.getJSON(ctx, fmt.Sprintf(keyCreative, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SeedCreatives replaces the creative pool. The previous pool's documents
// are removed first so re-seeding on restart cannot grow the pool.
func (s *Redis) SeedCreatives(ctx context.Context, creatives []Creative) error {
	old, err := s.client.SMembers(ctx, keyCreativeSet).Result()
	if err != nil {
		return fmt.Errorf("redis smembers failed: %w", err)
	}
	for _, id := range old {
		if err := s.client.Del(ctx, fmt.Sprintf(keyCreative, id)).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
	}
	if err := s.client.Del(ctx, keyCreativeSet).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}

	for _, c := range creatives {
		if c.ID == "" {
			c.ID = newID()
		}
		if err := s.setJSON(ctx, fmt.Sprintf(keyCreative, c.ID), &c); err != nil {
			return err
		}
		if err := s.client.SAdd(ctx, keyCreativeSet, c.ID).Err(); err != nil {
			return fmt.Errorf("redis sadd failed: %w", err)
		}
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
