package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fixora/triage/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 64 << 20
)

// HTTPFetcher performs a single GET per call. It never retries.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// Config represents fetcher configuration
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// NewHTTPFetcher creates a fetcher with an explicit timeout
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch GETs url and returns the body as text
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &domain.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &domain.TransportError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", &domain.TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBytes {
		return "", &domain.TransportError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
	}

	return string(body), nil
}
