package wal

import "github.com/sharedcode/storefront"

// Request is the correlation context threaded through every operation of one
// logical request. Handlers build it once from the incoming call; outgoing
// hops propagate Correlation as the log_id query parameter.
type Request struct {
	// Correlation is the UUID shared by all log records of the request.
	Correlation string
	// Endpoint is this operation's URL.
	Endpoint string
	// Caller is the peer endpoint that invoked us, when known.
	Caller string
}

// NewRequest returns a Request with the given correlation id, allocating a
// fresh one when the caller did not supply any.
func NewRequest(correlation, endpoint, caller string) Request {
	if correlation == "" {
		correlation = storefront.NewUUID().String()
	}
	return Request{Correlation: correlation, Endpoint: endpoint, Caller: caller}
}
