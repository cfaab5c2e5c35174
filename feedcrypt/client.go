package feedcrypt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tidbyt.dev/trainsignal/downloader"
)

const (
	DefaultURL     = "https://maps.amtrak.com/services/MapDataService/trains/getTrainsData"
	DefaultTimeout = 30 * time.Second
	DefaultMaxSize = 32 << 20 // 32 MB
	DefaultRetries = 0
)

// Client fetches and decrypts the feed. Unless Cache is set, one
// call is one outbound request.
type Client struct {
	URL       string
	PublicKey string
	Headers   map[string]string
	Timeout   time.Duration
	MaxSize   int

	// Extra attempts on transient failures. Zero keeps it to one
	// request per fetch.
	Retries    int
	RetryDelay time.Duration
	Downloader downloader.Downloader

	// Let the Downloader serve cached responses. A non-positive
	// CacheTTL never expires with a CaptureFile.
	Cache    bool
	CacheTTL time.Duration
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		URL:        url,
		PublicKey:  PublicKey,
		Timeout:    DefaultTimeout,
		MaxSize:    DefaultMaxSize,
		Retries:    DefaultRetries,
		RetryDelay: 500 * time.Millisecond,
		Downloader: downloader.NewMemoryDownloader(),
	}
}

// Fetches the raw encrypted response body.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	body, err := c.Downloader.Get(ctx, c.URL, c.Headers, downloader.GetOptions{
		Timeout:    c.Timeout,
		MaxSize:    c.MaxSize,
		Retries:    c.Retries,
		RetryDelay: c.RetryDelay,
		Cache:      c.Cache,
		CacheTTL:   c.CacheTTL,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	return string(body), nil
}

// Fetches the feed and returns its plaintext JSON.
func (c *Client) FetchAndDecrypt(ctx context.Context) (string, error) {
	body, err := c.Fetch(ctx)
	if err != nil {
		return "", err
	}

	plaintext, err := DecryptResponse(body, c.PublicKey)
	if err != nil {
		return "", err
	}

	// A wrong key decrypts to garbage rather than failing outright.
	if !json.Valid([]byte(plaintext)) {
		return "", fmt.Errorf("%w: plaintext is not valid JSON", ErrDecryptionFailed)
	}

	return plaintext, nil
}
