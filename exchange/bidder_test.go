package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/openrtb_ext"
	"github.com/adsim/adsim/storage"
)

func TestRequestBidParsesResponse(t *testing.T) {
	response := openrtb2.BidResponse{
		ID: "req-1",
		SeatBid: []openrtb2.SeatBid{{
			Bid: []openrtb2.Bid{{ID: "bid-1", ImpID: "imp-1", Price: 3.5}},
		}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var req openrtb2.BidRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "req-1", req.ID)

		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	got, err := client.RequestBid(context.Background(), storage.Bidder{ID: "b1", Endpoint: server.URL},
		&openrtb2.BidRequest{ID: "req-1", Imp: []openrtb2.Imp{{ID: "imp-1"}}})

	require.NoError(t, err)
	require.Len(t, got.SeatBid, 1)
	assert.Equal(t, "bid-1", got.SeatBid[0].Bid[0].ID)
}

func TestRequestBidFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	_, err := client.RequestBid(context.Background(), storage.Bidder{ID: "b1", Endpoint: server.URL},
		&openrtb2.BidRequest{ID: "req-1"})

	require.Error(t, err)
	assert.IsType(t, &errortypes.BadServerResponse{}, err)
}

func TestRequestBidMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	_, err := client.RequestBid(context.Background(), storage.Bidder{ID: "b1", Endpoint: server.URL},
		&openrtb2.BidRequest{ID: "req-1"})

	require.Error(t, err)
	assert.IsType(t, &errortypes.BadServerResponse{}, err)
}

func TestRequestBidNoContentIsNoBid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	resp, err := client.RequestBid(context.Background(), storage.Bidder{ID: "b1", Endpoint: server.URL},
		&openrtb2.BidRequest{ID: "req-1"})

	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestSendNoticeWin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, openrtb_ext.BidStatusWin.Wire(), r.URL.Query().Get("status"))
		assert.Equal(t, "imp-1", r.URL.Query().Get("imp_id"))
		w.Write([]byte("<div>ad</div>"))
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	bid := &openrtb2.Bid{ID: "bid-1", ImpID: "imp-1", NURL: server.URL + "/bids/bid-1/notice"}

	html, err := client.SendNotice(context.Background(), bid, openrtb_ext.BidStatusWin)
	require.NoError(t, err)
	assert.Equal(t, "<div>ad</div>", html)
}

func TestSendNoticeLossDiscardsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, openrtb_ext.BidStatusLoss.Wire(), r.URL.Query().Get("status"))
		w.Write([]byte("ignored"))
	}))
	defer server.Close()

	client := newBidderClient(server.Client())
	bid := &openrtb2.Bid{ID: "bid-1", ImpID: "imp-1", NURL: server.URL + "/bids/bid-1/notice"}

	html, err := client.SendNotice(context.Background(), bid, openrtb_ext.BidStatusLoss)
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestSendNoticeFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newBidderClient(server.Client())

	_, err := client.SendNotice(context.Background(),
		&openrtb2.Bid{ID: "bid-1", ImpID: "imp-1", NURL: server.URL}, openrtb_ext.BidStatusWin)
	assert.IsType(t, &errortypes.NoticeDeliveryFailure{}, err)

	_, err = client.SendNotice(context.Background(),
		&openrtb2.Bid{ID: "bid-2", ImpID: "imp-1"}, openrtb_ext.BidStatusWin)
	assert.IsType(t, &errortypes.NoticeDeliveryFailure{}, err, "a bid without a notice url cannot be notified")
}
