package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/netgeist/sttrelay/internal/reqid"
)

// StatusError reports a non-2xx answer from the audio URL.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch audio: unexpected status %d", e.StatusCode)
}

// Fetcher downloads audio referenced by URL, bounded to a byte limit.
type Fetcher struct {
	httpClient *http.Client
	limit      int64
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithLimit overrides MaxBytes.
func WithLimit(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.limit = n
	}
}

func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		limit:      MaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET on rawURL and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	reqid.Set(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.limit {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if int64(len(data)) > f.limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
