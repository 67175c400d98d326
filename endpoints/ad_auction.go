package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/exchange"
	"github.com/adsim/adsim/openrtb_ext"
)

// AdRequestPath is the publisher boundary: one POST settles one auction.
const AdRequestPath = "/api/v1/ads"

// NewAdAuctionEndpoint returns the handler accepting ad requests and
// responding with the impression-id → creative markup mapping.
func NewAdAuctionEndpoint(ex exchange.Exchange) (httprouter.Handle, error) {
	if ex == nil {
		return nil, errors.New("NewAdAuctionEndpoint requires a non-nil exchange")
	}
	return httprouter.Handle((&adAuctionDeps{ex}).AdAuction), nil
}

type adAuctionDeps struct {
	ex exchange.Exchange
}

func (deps *adAuctionDeps) AdAuction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var adRequest openrtb_ext.AdRequest
	if err := json.NewDecoder(r.Body).Decode(&adRequest); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid request format: %s", err)
		return
	}
	if err := validateAdRequest(&adRequest); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid request format: %s", err)
		return
	}

	response, err := deps.ex.HoldAuction(r.Context(), &adRequest)
	if err != nil {
		if _, ok := err.(*errortypes.BadInput); ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid request format: %s", err)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Critical error while running the auction: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Too late for a status change; the body is already partially written.
		fmt.Fprintf(w, "Failed to marshal auction response: %v", err)
	}
}

func validateAdRequest(adRequest *openrtb_ext.AdRequest) error {
	if len(adRequest.Imps) < 1 {
		return errors.New("request.imps must contain at least one element")
	}
	for index, imp := range adRequest.Imps {
		if imp.Banner == nil {
			return fmt.Errorf("request.imps[%d] must contain a banner format descriptor", index)
		}
		if imp.BidFloor < 0 {
			return fmt.Errorf("request.imps[%d].bidfloor must be nonnegative. Got %f", index, imp.BidFloor)
		}
	}
	return nil
}
