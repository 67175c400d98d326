package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsim/adsim/bidder"
	"github.com/adsim/adsim/config"
	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/metrics"
	"github.com/adsim/adsim/openrtb_ext"
	"github.com/adsim/adsim/storage"
)

type mockExchange struct {
	lastRequest *openrtb_ext.AdRequest
	response    *openrtb_ext.AdResponse
	err         error
}

func (m *mockExchange) HoldAuction(_ context.Context, adRequest *openrtb_ext.AdRequest) (*openrtb_ext.AdResponse, error) {
	m.lastRequest = adRequest
	return m.response, m.err
}

func (m *mockExchange) Shutdown() {}

func bannerImp(id string) openrtb2.Imp {
	return openrtb2.Imp{ID: id, Banner: &openrtb2.Banner{}}
}

func doAdRequest(t *testing.T, ex *mockExchange, body string) *httptest.ResponseRecorder {
	handle, err := NewAdAuctionEndpoint(ex)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", AdRequestPath, strings.NewReader(body))
	handle(recorder, request, nil)
	return recorder
}

func TestAdAuctionEndpointSuccess(t *testing.T) {
	ex := &mockExchange{response: &openrtb_ext.AdResponse{
		ImpHTML: map[string]string{"imp-1": "<div>ad</div>"},
	}}

	reqBody, err := json.Marshal(openrtb_ext.AdRequest{Imps: []openrtb2.Imp{bannerImp("imp-1")}})
	require.NoError(t, err)

	recorder := doAdRequest(t, ex, string(reqBody))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var resp openrtb_ext.AdResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "<div>ad</div>", resp.ImpHTML["imp-1"])

	require.NotNil(t, ex.lastRequest)
	require.Len(t, ex.lastRequest.Imps, 1)
}

func TestAdAuctionEndpointMalformedBody(t *testing.T) {
	recorder := doAdRequest(t, &mockExchange{}, "not json")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid request format")
}

func TestAdAuctionEndpointRequiresImpressions(t *testing.T) {
	recorder := doAdRequest(t, &mockExchange{}, `{"imps":[]}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "at least one element")
}

func TestAdAuctionEndpointRequiresBanner(t *testing.T) {
	reqBody, err := json.Marshal(openrtb_ext.AdRequest{Imps: []openrtb2.Imp{{ID: "imp-1"}}})
	require.NoError(t, err)

	recorder := doAdRequest(t, &mockExchange{}, string(reqBody))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "banner")
}

func TestAdAuctionEndpointBadInputFromExchange(t *testing.T) {
	ex := &mockExchange{err: &errortypes.BadInput{Message: "duplicate imp ids"}}

	reqBody, err := json.Marshal(openrtb_ext.AdRequest{Imps: []openrtb2.Imp{bannerImp("imp-1")}})
	require.NoError(t, err)

	recorder := doAdRequest(t, ex, string(reqBody))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAdAuctionEndpointExchangeFailure(t *testing.T) {
	ex := &mockExchange{err: fmt.Errorf("storage unavailable")}

	reqBody, err := json.Marshal(openrtb_ext.AdRequest{Imps: []openrtb2.Imp{bannerImp("imp-1")}})
	require.NoError(t, err)

	recorder := doAdRequest(t, ex, string(reqBody))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Critical error")
}

func newBidderService(t *testing.T) *bidder.Service {
	store := storage.NewMemory()
	require.NoError(t, store.SeedCreatives(context.Background(), bidder.DefaultCreatives()))
	cfg := &config.Configuration{
		ExternalURL: "http://bidder.test:8000",
		Bidder:      config.BidderService{Enabled: true, Seat: "adsim", PriceMax: 10.0},
	}
	return bidder.NewService(cfg, store, &metrics.NilMetricsEngine{})
}

func TestBidRequestEndpoint(t *testing.T) {
	handle, err := NewBidRequestEndpoint(newBidderService(t))
	require.NoError(t, err)

	reqBody, err := json.Marshal(openrtb2.BidRequest{ID: "req-1", Imp: []openrtb2.Imp{{ID: "imp-1"}}})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", bidder.RequestPath, strings.NewReader(string(reqBody)))
	handle(recorder, request, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp openrtb2.BidResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.ID)
	require.Len(t, resp.SeatBid, 1)
	require.Len(t, resp.SeatBid[0].Bid, 1)
	assert.Equal(t, "imp-1", resp.SeatBid[0].Bid[0].ImpID)
}

func TestBidRequestEndpointMalformedBody(t *testing.T) {
	handle, err := NewBidRequestEndpoint(newBidderService(t))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", bidder.RequestPath, strings.NewReader("not json"))
	handle(recorder, request, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestBidRequestEndpointEmptyImpressions(t *testing.T) {
	handle, err := NewBidRequestEndpoint(newBidderService(t))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", bidder.RequestPath, strings.NewReader(`{"id":"req-1"}`))
	handle(recorder, request, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "at least one impression")
}

// noticeFor runs one bid request through the service and then replays the
// resulting bid's notice through the endpoint.
func noticeFor(t *testing.T, svc *bidder.Service, status string) (*httptest.ResponseRecorder, string) {
	resp, err := svc.GenerateBid(context.Background(), &openrtb2.BidRequest{
		ID:  "req-1",
		Imp: []openrtb2.Imp{{ID: "imp-1"}},
	})
	require.NoError(t, err)
	bidID := resp.SeatBid[0].Bid[0].ID

	handle, err := NewBidNoticeEndpoint(svc)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", bidder.NoticePath(bidID)+"?status="+status+"&imp_id=imp-1", nil)
	handle(recorder, request, httprouter.Params{{Key: "bid_id", Value: bidID}})
	return recorder, bidID
}

func TestBidNoticeEndpointWin(t *testing.T) {
	recorder, _ := noticeFor(t, newBidderService(t), "1")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/html; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.NotEmpty(t, recorder.Body.String(), "a win notice returns the creative markup")
}

func TestBidNoticeEndpointLoss(t *testing.T) {
	recorder, _ := noticeFor(t, newBidderService(t), "2")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Body.String(), "a loss notice returns no markup")
}

func TestBidNoticeEndpointInvalidStatus(t *testing.T) {
	recorder, _ := noticeFor(t, newBidderService(t), "3")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestBidNoticeEndpointUnknownBid(t *testing.T) {
	handle, err := NewBidNoticeEndpoint(newBidderService(t))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", bidder.NoticePath("no-such-bid")+"?status=1", nil)
	handle(recorder, request, httprouter.Params{{Key: "bid_id", Value: "no-such-bid"}})

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "no stored bid")
}
