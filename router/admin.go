package router

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/golang/glog"
)

// Admin returns the handler for the admin port: version info plus the
// standard pprof surface.
func Admin(revision string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", versionEndpoint(revision))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func versionEndpoint(revision string) http.HandlerFunc {
	if revision == "" {
		revision = "not-set"
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(struct {
			Revision string `json:"revision"`
		}{revision}); err != nil {
			glog.Errorf("/version Critical error when trying to write to the response: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
