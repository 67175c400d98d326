package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/bidder"
	"github.com/adsim/adsim/errortypes"
)

// NewBidRequestEndpoint returns the handler on which the built-in bidder
// accepts OpenRTB bid requests.
func NewBidRequestEndpoint(svc *bidder.Service) (httprouter.Handle, error) {
	if svc == nil {
		return nil, errors.New("NewBidRequestEndpoint requires a non-nil bidder service")
	}
	return httprouter.Handle((&bidRequestDeps{svc}).BidRequest), nil
}

type bidRequestDeps struct {
	svc *bidder.Service
}

func (deps *bidRequestDeps) BidRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var bidRequest openrtb2.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidRequest); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid request format: %s", err)
		return
	}

	bidResponse, err := deps.svc.GenerateBid(r.Context(), &bidRequest)
	if err != nil {
		if _, ok := err.(*errortypes.BadInput); ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid request format: %s", err)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Critical error while generating bids: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bidResponse); err != nil {
		fmt.Fprintf(w, "Failed to marshal bid response: %v", err)
	}
}
