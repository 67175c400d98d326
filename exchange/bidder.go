package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/net/context/ctxhttp"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/errortypes"
	"github.com/adsim/adsim/openrtb_ext"
	"github.com/adsim/adsim/storage"
)

// bidderClient performs the single-bidder HTTP round trips of an auction: one
// bid request per bidder, then one notice per bid. All calls are bounded by
// the supplied context; a dead bidder surfaces as an error, never as a hang.
type bidderClient struct {
	client *http.Client
}

func newBidderClient(client *http.Client) *bidderClient {
	return &bidderClient{client: client}
}

// RequestBid posts the bid request to the bidder's endpoint and parses the
// response. A 204 is a well-formed no-bid and returns (nil, nil). Any other
// non-2xx status or an unparseable payload is a BadServerResponse; a context
// deadline hit is a Timeout.
func (c *bidderClient) RequestBid(ctx context.Context, bidder storage.Bidder, request *openrtb2.BidRequest) (*openrtb2.BidResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bid request %s: %v", request.ID, err)
	}

	httpReq, err := http.NewRequest("POST", bidder.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := ctxhttp.Do(ctx, c.client, httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &errortypes.Timeout{Message: fmt.Sprintf("bidder %s did not respond within the auction time budget", bidder.ID)}
		}
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &errortypes.BadServerResponse{
			Message: fmt.Sprintf("bidder %s responded with failure status: %d", bidder.ID, httpResp.StatusCode),
		}
	}

	var bidResponse openrtb2.BidResponse
	if err := json.Unmarshal(respBody, &bidResponse); err != nil {
		return nil, &errortypes.BadServerResponse{
			Message: fmt.Sprintf("bidder %s returned an unparseable bid response: %v", bidder.ID, err),
		}
	}
	return &bidResponse, nil
}

// SendNotice posts the win/loss outcome to the bid's notice callback URL,
// carrying the outcome and impression id as query parameters. For a win the
// response body is the creative markup; for a loss the body is discarded.
func (c *bidderClient) SendNotice(ctx context.Context, bid *openrtb2.Bid, status openrtb_ext.BidStatus) (string, error) {
	if bid.NURL == "" {
		return "", &errortypes.NoticeDeliveryFailure{
			Message: fmt.Sprintf("bid %s carries no notice url", bid.ID),
		}
	}

	noticeURL, err := url.Parse(bid.NURL)
	if err != nil {
		return "", &errortypes.NoticeDeliveryFailure{
			Message: fmt.Sprintf("bid %s carries an invalid notice url %q: %v", bid.ID, bid.NURL, err),
		}
	}
	query := noticeURL.Query()
	query.Set("status", status.Wire())
	query.Set("imp_id", bid.ImpID)
	noticeURL.RawQuery = query.Encode()

	httpReq, err := http.NewRequest("POST", noticeURL.String(), nil)
	if err != nil {
		return "", err
	}

	httpResp, err := ctxhttp.Do(ctx, c.client, httpReq)
	if err != nil {
		return "", &errortypes.NoticeDeliveryFailure{
			Message: fmt.Sprintf("notice for bid %s could not be delivered: %v", bid.ID, err),
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &errortypes.NoticeDeliveryFailure{
			Message: fmt.Sprintf("notice for bid %s rejected with status %d", bid.ID, httpResp.StatusCode),
		}
	}

	if status == openrtb_ext.BidStatusWin {
		return string(respBody), nil
	}
	return "", nil
}
