package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration

	// Number of additional attempts made on transport failures
	// and 5xx responses. Zero means a single attempt.
	Retries int

	// Initial delay between attempts. Grows exponentially.
	RetryDelay time.Duration
}

// A thing capable of downloading a file, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Gets a file, retrying transient failures as per options. Doesn't
// cache. Provided as convenience for implementing custom
// Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	retries := 0
	if options.Retries > 0 {
		retries = options.Retries
	}

	policy := backoff.NewExponentialBackOff()
	if options.RetryDelay > 0 {
		policy.InitialInterval = options.RetryDelay
	}
	policy.MaxElapsedTime = 0

	var body []byte
	err := backoff.Retry(func() error {
		var err error
		body, err = httpGetOnce(ctx, url, headers, options)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	if err != nil {
		return nil, err
	}

	return body, nil
}

func httpGetOnce(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}
