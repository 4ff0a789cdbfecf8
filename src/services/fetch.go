package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/username/hartafolio/backend/src/logger"
	"golang.org/x/net/publicsuffix"
)

// Browser-like client identification strings. One is picked at random per
// attempt to reduce the chance of naive upstream filters blocking the
// fetcher. Cosmetic robustness only.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

const (
	maxFetchAttempts = 2
	retryBaseDelay   = 300 * time.Millisecond
)

// SourceFetcher performs a single bounded HTTP GET against one upstream
// data source. It is the building block every price strategy and the
// exchange rate provider share: hard per-call timeout, one retry on 429
// with backoff proportional to the attempt, one retry with a fixed short
// delay on any other non-timeout failure. Callers must not retry further.
type SourceFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewSourceFetcher(timeout time.Duration) *SourceFetcher {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Failed to create cookie jar", "error", err)
		}
	}
	return &SourceFetcher{
		client:  &http.Client{Jar: jar},
		timeout: timeout,
	}
}

// Fetch GETs the URL and returns the response body. Non-2xx statuses are
// failures. The per-attempt timeout is enforced by cancelling the request;
// a timed-out attempt is not retried.
func (f *SourceFetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		body, status, err := f.attempt(ctx, url, headers)
		if err == nil && status >= 200 && status < 300 {
			return body, nil
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("fetch %s timed out: %w", url, err)
			}
			lastErr = err
		} else {
			lastErr = fmt.Errorf("fetch %s returned status %d", url, status)
		}

		if attempt == maxFetchAttempts {
			break
		}

		delay := retryBaseDelay
		if status == http.StatusTooManyRequests {
			// Upstream is rate limiting us; back off harder each attempt.
			delay = time.Duration(attempt) * retryBaseDelay * 2
		}
		if logger.L != nil {
			logger.L.Debug("Retrying fetch", "url", url, "attempt", attempt, "delay", delay, "error", lastErr)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (f *SourceFetcher) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			err = reqCtx.Err()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body from %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

// FetchJSON GETs the URL and decodes the JSON body into target.
func (f *SourceFetcher) FetchJSON(ctx context.Context, url string, headers map[string]string, target interface{}) error {
	body, err := f.Fetch(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return nil
}
