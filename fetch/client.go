// Package fetch implements the rate-limited paginated fetch-with-retry
// protocol against the upstream record source.
//
// Every request passes through a rate limiter enforcing the upstream pacing
// contract: the inter-request delay is a hard budget, not a performance
// knob — violating it risks upstream lockout. Transient failures (429, 5xx,
// network) are retried with backoff; access-denied responses fail
// immediately.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/fergl/geoclust/model"
)

// Default retry/pacing configuration.
const (
	DefaultMaxRetries      = 3
	DefaultBaseBackoff     = 15 * time.Second
	DefaultBackoffCap      = 60 * time.Second
	DefaultServerBackoff   = 5 * time.Second
	DefaultNetworkBackoff  = 2 * time.Second
	DefaultRequestInterval = 1600 * time.Millisecond // request delay + safety margin
	DefaultAPIKeyHeader    = "X-Api-Key"
	DefaultSort            = "-population"
)

var (
	// ErrAccessDenied is returned for non-429 client errors (e.g. 403).
	// The condition is not transient, so there is no retry.
	ErrAccessDenied = errors.New("fetch: access denied")

	// ErrRateLimited marks a 429 response internally; callers normally only
	// observe it wrapped in ErrRetriesExhausted.
	ErrRateLimited = errors.New("fetch: rate limited")

	// ErrRetriesExhausted wraps the last transient error once the retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("fetch: retries exhausted")
)

// StatusError reports an unexpected upstream HTTP status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: upstream status %d", e.Status)
}

// Client fetches pages of records from the upstream source.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	apiKeyHeader string
	sortBy       string

	limiter *rate.Limiter

	maxRetries     int
	baseBackoff    time.Duration
	backoffCap     time.Duration
	serverBackoff  time.Duration
	networkBackoff time.Duration

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIKey sets the credential sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithAPIKeyHeader overrides the credential header name.
func WithAPIKeyHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.apiKeyHeader = name
		}
	}
}

// WithSort sets the upstream sort parameter.
func WithSort(sort string) Option {
	return func(c *Client) { c.sortBy = sort }
}

// WithRequestInterval sets the minimum spacing between requests.
// This is the pacing contract with the upstream rate budget.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMaxRetries bounds retries per page.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the rate-limit backoff base and cap.
// wait = min(base*(attempt+1), cap).
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseBackoff = base
		}
		if cap > 0 {
			c.backoffCap = cap
		}
	}
}

// WithServerBackoff sets the linear backoff base for 5xx responses.
func WithServerBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.serverBackoff = d
		}
	}
}

// WithNetworkBackoff sets the linear backoff base for network errors.
func WithNetworkBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.networkBackoff = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the given upstream base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("fetch: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("fetch: invalid base URL: %w", err)
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		baseURL:        baseURL,
		apiKeyHeader:   DefaultAPIKeyHeader,
		sortBy:         DefaultSort,
		limiter:        rate.NewLimiter(rate.Every(DefaultRequestInterval), 1),
		maxRetries:     DefaultMaxRetries,
		baseBackoff:    DefaultBaseBackoff,
		backoffCap:     DefaultBackoffCap,
		serverBackoff:  DefaultServerBackoff,
		networkBackoff: DefaultNetworkBackoff,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchPage fetches one page (1-based) of limit records, applying pacing,
// backoff and the retry budget. onEvent may be nil.
//
// Per-page state machine: Pending → InFlight → {Success, RateLimited,
// ServerError, ClientError, NetworkError}. Only RateLimited, ServerError
// and NetworkError are retried.
func (c *Client) FetchPage(ctx context.Context, page, limit int, onEvent EventFunc) ([]*model.Record, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("fetch: invalid page %d / limit %d", page, limit)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		records, err := c.do(ctx, page, limit)
		if err == nil {
			c.logger.Debug("page fetched", "page", page, "records", len(records), "attempt", attempt)
			emit(onEvent, Event{Kind: EventProgress, Page: page, Records: len(records)})
			return records, nil
		}

		if errors.Is(err, ErrAccessDenied) {
			c.logger.Error("page fetch denied", "page", page, "error", err)
			emit(onEvent, Event{Kind: EventCriticalError, Page: page, Err: err})
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		wait := c.backoff(err, attempt)
		switch {
		case errors.Is(err, ErrRateLimited):
			c.logger.Warn("rate limited", "page", page, "wait", wait, "attempt", attempt)
			emit(onEvent, Event{Kind: EventRateLimit, Page: page, Wait: wait, Err: err})
		default:
			c.logger.Warn("page fetch failed, retrying", "page", page, "wait", wait, "attempt", attempt, "error", err)
			emit(onEvent, Event{Kind: EventError, Page: page, Wait: wait, Err: err})
		}

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: page %d: %w", ErrRetriesExhausted, page, lastErr)
}

// backoff computes the wait before the next attempt (attempt is 0-based).
func (c *Client) backoff(err error, attempt int) time.Duration {
	switch {
	case errors.Is(err, ErrRateLimited):
		wait := c.baseBackoff * time.Duration(attempt+1)
		if wait > c.backoffCap {
			wait = c.backoffCap
		}
		return wait
	case isServerError(err):
		return c.serverBackoff * time.Duration(attempt+1)
	default:
		return c.networkBackoff * time.Duration(attempt+1)
	}
}

func isServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}

// do performs a single request/response cycle.
func (c *Client) do(ctx context.Context, page, limit int) ([]*model.Record, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa((page-1)*limit))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", c.sortBy)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response received: network error, retried with linear backoff.
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch: reading body: %w", err)
		}
		return parseEnvelope(body)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, &StatusError{Status: resp.StatusCode}
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAccessDenied, resp.StatusCode)
	}
}

// parseEnvelope extracts records from the upstream body. The data field is
// either an array of records or a keyed map of records.
func parseEnvelope(body []byte) ([]*model.Record, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("fetch: invalid response body: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, nil
	}

	var list []*model.Record
	if err := json.Unmarshal(env.Data, &list); err == nil {
		return list, nil
	}

	var keyed map[string]*model.Record
	if err := json.Unmarshal(env.Data, &keyed); err != nil {
		return nil, fmt.Errorf("fetch: unexpected data field shape: %w", err)
	}
	out := make([]*model.Record, 0, len(keyed))
	for _, r := range keyed {
		out = append(out, r)
	}
	return out, nil
}

func emit(onEvent EventFunc, e Event) {
	if onEvent != nil {
		onEvent(e)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
