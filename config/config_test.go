package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultConfig(t *testing.T) (*Configuration, *viper.Viper) {
	v := viper.New()
	SetupViper(v, "")
	cfg, err := New(v)
	require.NoError(t, err, "the default config should validate")
	return cfg, v
}

func TestDefaults(t *testing.T) {
	cfg, _ := newDefaultConfig(t)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 1.0, cfg.Auction.ReservePrice)
	assert.Equal(t, AlgorithmFirstPrice, cfg.Auction.Algorithm)
	assert.Equal(t, uint64(500), cfg.Auction.DefaultTimeoutMS)
	assert.Equal(t, 8, cfg.Auction.NoticeWorkers)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.Bidder.Enabled)
	assert.Equal(t, 10.0, cfg.Bidder.PriceMax)
}

func TestInvalidAlgorithm(t *testing.T) {
	v := viper.New()
	SetupViper(v, "")
	v.Set("auction.algorithm", "third_price")

	_, err := New(v)
	assert.Error(t, err)
}

func TestRedisBackendRequiresAddr(t *testing.T) {
	v := viper.New()
	SetupViper(v, "")
	v.Set("storage.backend", BackendRedis)

	_, err := New(v)
	assert.Error(t, err)

	v.Set("storage.redis.addr", "localhost:6379")
	_, err = New(v)
	assert.NoError(t, err)
}

func TestBidderRosterValidation(t *testing.T) {
	v := viper.New()
	SetupViper(v, "")
	v.Set("bidders", []map[string]interface{}{{"id": "b1", "endpoint": ""}})

	_, err := New(v)
	assert.Error(t, err)
}

func TestTimeoutResolution(t *testing.T) {
	cfg := AuctionConfig{DefaultTimeoutMS: 500, MaxTimeoutMS: 2000}

	assert.Equal(t, uint64(500), cfg.TimeoutMS(0), "missing tmax falls back to the default")
	assert.Equal(t, uint64(750), cfg.TimeoutMS(750))
	assert.Equal(t, uint64(2000), cfg.TimeoutMS(10000), "tmax is capped")
}
