// Package gateway is the HTTP client side of inter-service calls. Every hop
// goes through the gateway base URL with the service path prefix, carries a
// per-call timeout, and maps transport failures to NetworkError, which the
// orchestrator treats exactly like a failed reply.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sharedcode/storefront"
)

// HopTimeout bounds one inter-service call.
const HopTimeout = 2 * time.Second

// Reply is a peer's response: status code plus raw body.
type Reply struct {
	StatusCode int
	Body       []byte
}

// Ok reports whether the reply is a 2xx.
func (r *Reply) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into target.
func (r *Reply) Decode(target any) error {
	return storefront.DefaultMarshaler.Unmarshal(r.Body, target)
}

// Client calls peers through the gateway.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient returns a client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: HopTimeout},
	}
}

// URL joins the gateway base URL with a service path such as
// /stock/subtract/<item_id>/<amount>.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Get performs a GET against an absolute URL.
func (c *Client) Get(ctx context.Context, url string) (*Reply, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Post performs a POST against an absolute URL.
func (c *Client) Post(ctx context.Context, url string) (*Reply, error) {
	return c.do(ctx, http.MethodPost, url)
}

func (c *Client) do(ctx context.Context, method, url string) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, storefront.NewError(storefront.NetworkError, err)
	}
	defer resp.Body.Close()
	ba, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, storefront.NewError(storefront.NetworkError, err)
	}
	return &Reply{StatusCode: resp.StatusCode, Body: ba}, nil
}

// SweepPoster adapts the client to the sweeper's compensation replay
// (wal.Poster): any non-2xx reply is an error.
type SweepPoster struct {
	Client *Client
}

func (p SweepPoster) Post(ctx context.Context, url string) error {
	reply, err := p.Client.Post(ctx, url)
	if err != nil {
		return err
	}
	if !reply.Ok() {
		return fmt.Errorf("compensation %s replied %d", url, reply.StatusCode)
	}
	return nil
}
