package errortypes

// Timeout should be used to flag that a bidder failed to return a response because the auction
// timeout timer expired before a result was received.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad input.
// It should _not_ be used if the error is a server-side issue (e.g. failed to send the external request).
//
// A bid request with zero impressions is the canonical example.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse should be used when returning errors which are caused by bad/unexpected
// behavior on the remote bidder.
//
// For example:
//
//   - The remote bidder responded with a 500
//   - The remote bidder gave a malformed or unexpected response.
//
// A BadServerResponse from one bidder excludes that bidder from scoring; it never aborts
// the auction as a whole.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// NoticeDeliveryFailure covers a win/loss notice POST that could not be delivered or was
// rejected by the bidder. Settlement already happened when notices go out, so these are
// logged and counted but never roll back winner selection.
type NoticeDeliveryFailure struct {
	Message string
}

func (err *NoticeDeliveryFailure) Error() string {
	return err.Message
}

func (err *NoticeDeliveryFailure) Code() int {
	return NoticeDeliveryErrorCode
}

func (err *NoticeDeliveryFailure) Severity() Severity {
	return SeverityWarning
}

// UnknownBid should be used when a notice references a bid id that is not present in storage.
// Surfaced as a not-found response to the caller of the notice endpoint.
type UnknownBid struct {
	Message string
}

func (err *UnknownBid) Error() string {
	return err.Message
}

func (err *UnknownBid) Code() int {
	return UnknownBidErrorCode
}

func (err *UnknownBid) Severity() Severity {
	return SeverityFatal
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}
