package ids

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sharedcode/storefront"
)

// Client mints keys by calling the ID service through the gateway. It
// implements wal.Minter.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient returns a minter client for the gateway at baseURL
// (e.g. http://gateway:8000).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 2 * time.Second},
	}
}

// Mint fetches a fresh key from GET /ids/create.
func (c *Client) Mint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ids/create", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", storefront.NewError(storefront.NetworkError, err)
	}
	defer resp.Body.Close()
	ba, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", storefront.NewError(storefront.NetworkError, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", storefront.Errorf(storefront.NetworkError, "ids/create replied %d", resp.StatusCode)
	}
	return string(ba), nil
}
