package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/adsim/adsim/bidder"
	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/openrtb_ext"
)

// NewBidNoticeEndpoint returns the handler behind every nurl the built-in
// bidder hands out. A win notice answers with the creative markup; a loss
// notice answers with an empty body.
func NewBidNoticeEndpoint(svc *bidder.Service) (httprouter.Handle, error) {
	if svc == nil {
		return nil, errors.New("NewBidNoticeEndpoint requires a non-nil bidder service")
	}
	return httprouter.Handle((&bidNoticeDeps{svc}).BidNotice), nil
}

type bidNoticeDeps struct {
	svc *bidder.Service
}

func (deps *bidNoticeDeps) BidNotice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bidID := ps.ByName("bid_id")

	status, ok := openrtb_ext.ParseBidStatus(r.URL.Query().Get("status"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid notice: status must be %d (win) or %d (loss)",
			openrtb_ext.BidStatusWin, openrtb_ext.BidStatusLoss)
		return
	}
	impID := r.URL.Query().Get("imp_id")

	html, err := deps.svc.ProcessNotice(r.Context(), bidID, impID, status)
	if err != nil {
		if _, ok := err.(*errortypes.UnknownBid); ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, "Invalid notice: %s", err)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Critical error while processing the notice: %v", err)
		return
	}

	if status == openrtb_ext.BidStatusWin {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, html)
	}
}
