package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dfryer1193/ciel/gallery/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "ciel/1.0"
)

var _ domain.Fetcher = (*Client)(nil)

// Client downloads remote images over HTTP(S).
type Client struct {
	http *resty.Client
}

// NewClient creates a Client whose requests expire after timeout.
// A zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "image/*"),
	}
}

// Fetch performs a GET and hands back the unparsed body stream.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	op := "fetch"

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, domain.FetchError(op, url, err)
	}

	body := resp.RawBody()
	if body == nil {
		return nil, domain.FetchError(op, url, fmt.Errorf("empty response body"))
	}

	if !resp.IsSuccess() {
		body.Close()
		return nil, domain.FetchError(op, url, fmt.Errorf("unexpected status %s", resp.Status()))
	}

	return body, nil
}
