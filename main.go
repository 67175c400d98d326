package main

import (
	"context"
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/adsim/adsim/bidder"
	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/router"
	"github.com/adsim/adsim/server"
	"github.com/adsim/adsim/storage"
)

// Rev holds the binary revision string.
// Set at build time using:
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(Rev, cfg); err != nil {
		glog.Exitf("adsim failed: %v", err)
	}
}

const configFileName = "adsim"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision string, cfg *config.Configuration) error {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := seed(cfg, store); err != nil {
		return err
	}

	r, err := router.New(cfg, store)
	if err != nil {
		return err
	}

	corsRouter := router.SupportCORS(r)
	server.Listen(cfg, router.NoCache{Handler: corsRouter}, router.Admin(revision), r.PrometheusMetrics)

	r.Shutdown()
	return nil
}

// seed loads the configured bidder roster and the creative pool into the
// store before the first auction can run. With an empty roster and the
// built-in bidder enabled, the process registers itself so a single instance
// simulates the full exchange loop.
func seed(cfg *config.Configuration, store storage.Store) error {
	ctx := context.Background()

	roster := make([]storage.Bidder, 0, len(cfg.Bidders))
	for _, b := range cfg.Bidders {
		roster = append(roster, storage.Bidder{ID: b.ID, Endpoint: b.Endpoint})
	}
	if len(roster) == 0 && cfg.Bidder.Enabled {
		roster = append(roster, storage.Bidder{
			ID:       cfg.Bidder.Seat,
			Endpoint: cfg.ExternalURL + bidder.RequestPath,
		})
	}
	if err := store.SeedBidders(ctx, roster); err != nil {
		return err
	}
	glog.Infof("Seeded %d bidder(s)", len(roster))

	if cfg.Bidder.Enabled {
		if err := store.SeedCreatives(ctx, bidder.DefaultCreatives()); err != nil {
			return err
		}
	}
	return nil
}
