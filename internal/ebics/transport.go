package ebics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// transport wraps the HTTP POST to EBICS hosts with retries and a circuit
// breaker. One transport, and so one breaker, serves every URL it posts to:
// repeated failures at any bank host trip it, and further calls to every
// host fail fast until the cooldown elapses (modeled on the retry/backoff
// idiom the webhook delivery loop uses, generalized with a breaker for the
// synchronous call path).
type transport struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

func newTransport(httpClient *http.Client, log zerolog.Logger) *transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	settings := gobreaker.Settings{
		Name:        "ebics-transport",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &transport{
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		log:     log,
	}
}

// post sends body to url as an EBICS request and returns the response body.
// Transport-level failures (connection refused, timeout, 5xx) are retried
// with exponential backoff up to three attempts; a 4xx response is returned
// immediately since retrying a malformed request cannot help.
func (t *transport) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		return t.breaker.Execute(func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("building EBICS request: %w", err))
			}
			req.Header.Set("Content-Type", "text/xml; charset=UTF-8")

			resp, err := t.http.Do(req)
			if err != nil {
				return nil, fmt.Errorf("posting EBICS request: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("reading EBICS response: %w", err)
			}

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(fmt.Errorf("EBICS host returned %d: %s", resp.StatusCode, respBody))
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("EBICS host returned %d", resp.StatusCode)
			}

			return respBody, nil
		})
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		t.log.Warn().Err(err).Str("url", url).Msg("ebics transport: request failed after retries")
		return nil, err
	}
	return result, nil
}
