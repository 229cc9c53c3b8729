// Package fetcher downloads raw feed text over HTTP.
//
// Transient failures (network errors, 5xx responses) are retried with
// exponential backoff up to a fixed attempt budget. Client errors (4xx) are
// permanent and fail without retrying. A 429 response honors the server's
// Retry-After header before the next attempt.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultRetryAfter is the wait applied to a 429 response without a usable
// Retry-After header.
const defaultRetryAfter = 10 * time.Second

// Config holds the fetch behavior settings.
type Config struct {
	// Timeout bounds a single HTTP request. It must not be left unbounded.
	Timeout time.Duration
	// Retries is the maximum number of attempts per URL.
	Retries int
	// Backoff is the multiplier applied to the delay between attempts.
	Backoff float64
}

// FetchError is returned when a feed could not be downloaded.
type FetchError struct {
	URL      string
	Attempts int
	// Status is the last HTTP status code observed, or 0 for transport errors.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError carries the response status and Retry-After hint through the
// retry loop.
type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// Client fetches feed bodies with retry and backoff.
type Client struct {
	http            *http.Client
	maxAttempts     int
	multiplier      float64
	initialInterval time.Duration
}

type options struct {
	initialInterval time.Duration
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// New creates a fetch client from the provided configuration.
func New(cfg Config, args ...Options) *Client {
	opts := options{
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range args {
		opt(&opts)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Backoff < 1 {
		cfg.Backoff = 1.5
	}

	return &Client{
		http:            &http.Client{Timeout: cfg.Timeout},
		maxAttempts:     cfg.Retries,
		multiplier:      cfg.Backoff,
		initialInterval: opts.initialInterval,
	}
}

// Fetch downloads the full body at url.
//
// It returns a *FetchError once the retry budget is exhausted, or immediately
// on a non-retryable response.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.Multiplier = c.multiplier
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // The attempt budget bounds retries, not wall time.

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var permErr *backoff.PermanentError
		if errors.As(err, &permErr) {
			return nil, &FetchError{URL: url, Attempts: attempt, Status: statusOf(err), Err: permErr.Unwrap()}
		}

		if attempt == c.maxAttempts {
			break
		}

		wait := bo.NextBackOff()
		var sErr *statusError
		if errors.As(err, &sErr) && sErr.status == http.StatusTooManyRequests {
			if sErr.retryAfter >= 0 {
				wait = sErr.retryAfter
			} else {
				wait = defaultRetryAfter
			}
		}
		if waitErr := sleepCtx(ctx, wait); waitErr != nil {
			return nil, &FetchError{URL: url, Attempts: attempt, Status: statusOf(err), Err: waitErr}
		}
	}

	return nil, &FetchError{URL: url, Attempts: c.maxAttempts, Status: statusOf(lastErr), Err: lastErr}
}

// get performs one GET attempt. Non-retryable failures are wrapped with
// backoff.Permanent.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		// A malformed URL will never succeed.
		return nil, backoff.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sErr := &statusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, sErr
		}
		return nil, backoff.Permanent(sErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// An empty payload from a healthy endpoint will not improve on retry.
		return nil, backoff.Permanent(fmt.Errorf("empty payload received from %s", url))
	}

	return body, nil
}

func statusOf(err error) int {
	var sErr *statusError
	if errors.As(err, &sErr) {
		return sErr.status
	}
	return 0
}

// parseRetryAfter interprets a Retry-After header in seconds.
// It returns a negative duration when the header is absent or unusable.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return -1
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return -1
	}
	return time.Duration(seconds) * time.Second
}

// sleepCtx waits for the given duration unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
