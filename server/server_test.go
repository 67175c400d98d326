package server

import (
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adsim/adsim/config"
)

func TestNewMainServer(t *testing.T) {
	cfg := &config.Configuration{Host: "", Port: 8000}
	handler := http.NewServeMux()

	server := newMainServer(cfg, handler)
	assert.Equal(t, ":8000", server.Addr)
	assert.Equal(t, handler, server.Handler, "gzip is off by default")

	cfg.EnableGzip = true
	server = newMainServer(cfg, handler)
	assert.NotEqual(t, handler, server.Handler, "gzip wraps the handler when enabled")
}

func TestNewAdminServer(t *testing.T) {
	cfg := &config.Configuration{Host: "", AdminPort: 6060}
	server := newAdminServer(cfg, http.NewServeMux())
	assert.Equal(t, ":6060", server.Addr)
}

func TestShutdownAfterSignals(t *testing.T) {
	server := &http.Server{Addr: ":0"}
	stopper := make(chan os.Signal)
	done := make(chan struct{})

	go shutdownAfterSignals(server, stopper, done)
	stopper <- syscall.SIGINT

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after the stop signal")
	}
}
