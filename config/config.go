package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Configuration holds the full runtime configuration for one simulator process.
type Configuration struct {
	// ExternalURL is the URL this process is reachable at from other processes.
	// The bidder side uses it to build absolute notice callback URLs.
	ExternalURL string `mapstructure:"external_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	EnableGzip  bool   `mapstructure:"enable_gzip"`
	// StatusResponse is returned verbatim from /status when set. An empty
	// value makes /status answer 204.
	StatusResponse string `mapstructure:"status_response"`

	Auction AuctionConfig  `mapstructure:"auction"`
	Bidders []BidderConfig `mapstructure:"bidders"`
	Bidder  BidderService  `mapstructure:"bidder"`
	Storage StorageConfig  `mapstructure:"storage"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// AuctionConfig controls the publisher-side exchange.
type AuctionConfig struct {
	// ReservePrice is the minimum eligible bid price for every auction.
	ReservePrice float64 `mapstructure:"reserve_price"`
	// Algorithm selects the scoring strategy: "first_price" or "second_price".
	Algorithm string `mapstructure:"algorithm"`
	// DefaultTimeoutMS bounds bid collection when the ad request carries no tmax.
	DefaultTimeoutMS uint64 `mapstructure:"default_timeout_ms"`
	// MaxTimeoutMS caps any tmax supplied on the ad request.
	MaxTimeoutMS uint64 `mapstructure:"max_timeout_ms"`
	// NoticeTimeoutMS bounds each win/loss notice POST.
	NoticeTimeoutMS uint64 `mapstructure:"notice_timeout_ms"`
	// NoticeWorkers bounds how many notices are in flight at once.
	NoticeWorkers int `mapstructure:"notice_workers"`
}

// BidderConfig is one entry of the seed bidder roster.
type BidderConfig struct {
	ID       string `mapstructure:"id"`
	Endpoint string `mapstructure:"endpoint"` // Required
}

// BidderService controls the bidder side of the simulator.
type BidderService struct {
	Enabled bool   `mapstructure:"enabled"`
	Seat    string `mapstructure:"seat"`
	// PriceMax is the exclusive upper bound of the placeholder pricing strategy.
	PriceMax float64 `mapstructure:"price_max"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
}

type MetricsConfig struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

// PrometheusMetrics serves metrics on its own port when Port is non-zero.
type PrometheusMetrics struct {
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

const (
	AlgorithmFirstPrice  = "first_price"
	AlgorithmSecondPrice = "second_price"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New unmarshals and validates the configuration bound to v.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (cfg *Configuration) validate() error {
	if cfg.Port <= 0 {
		return fmt.Errorf("port must be positive. Got %d", cfg.Port)
	}
	if cfg.Auction.ReservePrice < 0 {
		return fmt.Errorf("auction.reserve_price must be nonnegative. Got %f", cfg.Auction.ReservePrice)
	}
	switch cfg.Auction.Algorithm {
	case AlgorithmFirstPrice, AlgorithmSecondPrice:
	default:
		return fmt.Errorf("auction.algorithm must be %q or %q. Got %q", AlgorithmFirstPrice, AlgorithmSecondPrice, cfg.Auction.Algorithm)
	}
	if cfg.Auction.DefaultTimeoutMS == 0 {
		return errors.New("auction.default_timeout_ms must be positive: an unresponsive bidder must not hang the auction")
	}
	if cfg.Auction.NoticeTimeoutMS == 0 {
		return errors.New("auction.notice_timeout_ms must be positive")
	}
	if cfg.Auction.NoticeWorkers <= 0 {
		return fmt.Errorf("auction.notice_workers must be positive. Got %d", cfg.Auction.NoticeWorkers)
	}
	for i, b := range cfg.Bidders {
		if b.ID == "" {
			return fmt.Errorf("bidders[%d] missing required field: \"id\"", i)
		}
		if b.Endpoint == "" {
			return fmt.Errorf("bidders[%d] missing required field: \"endpoint\"", i)
		}
	}
	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required when the redis backend is selected")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q. Got %q", BackendMemory, BackendRedis, cfg.Storage.Backend)
	}
	if cfg.Bidder.Enabled && cfg.ExternalURL == "" {
		return errors.New("external_url is required when the bidder service is enabled: notice callbacks must resolve back to this process")
	}
	return nil
}

// TimeoutMS resolves the auction time budget for a request-supplied tmax.
func (cfg *AuctionConfig) TimeoutMS(requested int64) uint64 {
	if requested <= 0 {
		return cfg.DefaultTimeoutMS
	}
	t := uint64(requested)
	if cfg.MaxTimeoutMS > 0 && t > cfg.MaxTimeoutMS {
		return cfg.MaxTimeoutMS
	}
	return t
}

// SetupViper sets the viper defaults and environment bindings for the given
// config file name (no extension).
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")

	v.SetDefault("auction.reserve_price", 1.0)
	v.SetDefault("auction.algorithm", AlgorithmFirstPrice)
	v.SetDefault("auction.default_timeout_ms", 500)
	v.SetDefault("auction.max_timeout_ms", 5000)
	v.SetDefault("auction.notice_timeout_ms", 200)
	v.SetDefault("auction.notice_workers", 8)

	v.SetDefault("bidder.enabled", true)
	v.SetDefault("bidder.seat", "adsim")
	v.SetDefault("bidder.price_max", 10.0)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.redis.addr", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.username", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.tls", false)

	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "adsim")
	v.SetDefault("metrics.prometheus.subsystem", "")

	v.SetEnvPrefix("ADSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.ReadInConfig()
}
