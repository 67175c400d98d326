package router

import (
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/adsim/adsim/bidder"
	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/endpoints"
	"github.com/adsim/adsim/exchange"
	"github.com/adsim/adsim/metrics"
	"github.com/adsim/adsim/metrics/prometheusmetrics"
	"github.com/adsim/adsim/storage"
)

type Router struct {
	*httprouter.Router
	MetricsEngine     metrics.MetricsEngine
	PrometheusMetrics *prometheusmetrics.Metrics

	exchange exchange.Exchange
}

// New wires the exchange, the built-in bidder and all HTTP endpoints onto one
// router. The store is shared: both sides of the simulation persist into it.
func New(cfg *config.Configuration, store storage.Store) (r *Router, err error) {
	r = &Router{
		Router: httprouter.New(),
	}

	r.MetricsEngine = &metrics.NilMetricsEngine{}
	if cfg.Metrics.Prometheus.Port != 0 {
		r.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		r.MetricsEngine = r.PrometheusMetrics
	}

	generalHttpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        400,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	r.exchange, err = exchange.NewExchange(cfg, store, generalHttpClient, r.MetricsEngine)
	if err != nil {
		return nil, err
	}

	adAuctionEndpoint, err := endpoints.NewAdAuctionEndpoint(r.exchange)
	if err != nil {
		glog.Fatalf("Failed to create the ad auction endpoint handler. %v", err)
	}
	r.POST(endpoints.AdRequestPath, adAuctionEndpoint)
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))

	if cfg.Bidder.Enabled {
		svc := bidder.NewService(cfg, store, r.MetricsEngine)

		bidRequestEndpoint, err := endpoints.NewBidRequestEndpoint(svc)
		if err != nil {
			glog.Fatalf("Failed to create the bid request endpoint handler. %v", err)
		}
		bidNoticeEndpoint, err := endpoints.NewBidNoticeEndpoint(svc)
		if err != nil {
			glog.Fatalf("Failed to create the bid notice endpoint handler. %v", err)
		}
		r.POST(bidder.RequestPath, bidRequestEndpoint)
		r.GET(bidder.NoticeRoute, bidNoticeEndpoint)
		r.POST(bidder.NoticeRoute, bidNoticeEndpoint)
	}

	return r, nil
}

// Shutdown drains the notice worker pool.
func (r *Router) Shutdown() {
	r.exchange.Shutdown()
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

// SupportCORS allows any origin: the simulated publisher page may be served
// from anywhere.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
