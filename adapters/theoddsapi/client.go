package theoddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	defaultBaseURL = "https://api.the-odds-api.com"
	apiVersion     = "v4"
	userAgent      = "Pythia/1.0 (Odds Analytics)"
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	baseBackoff    = 2 * time.Second
	redactedKey    = "REDACTED"

	// Quota assumed before the vendor has answered once
	freeTierQuota = 500
)

// Client fetches decimal odds from The Odds API.
// Every FetchOdds call is one metered request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	limits models.RateLimits
}

var _ contracts.VendorAdapter = (*Client)(nil)

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRetryDelay sets the first backoff interval; later attempts double it
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithClock overrides the time source used to mark events live
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client authenticated with apiKey
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		backoff:    baseBackoff,
		now:        time.Now,
		limits:     models.RateLimits{RequestsRemaining: freeTierQuota},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOdds returns every event of opts.Sport with all bookmakers' prices
func (c *Client) FetchOdds(ctx context.Context, opts *models.FetchOddsOptions) ([]models.Event, error) {
	query := url.Values{
		"apiKey":     {c.apiKey},
		"regions":    {strings.Join(opts.Regions, ",")},
		"markets":    {strings.Join(opts.Markets, ",")},
		"oddsFormat": {"decimal"},
		"dateFormat": {"iso"},
	}
	target := fmt.Sprintf("%s/%s/sports/%s/odds?%s",
		c.baseURL, apiVersion, url.PathEscape(opts.Sport), query.Encode())

	body, err := c.getWithRetry(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s odds: %w", opts.Sport, err)
	}

	var payload []wireEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s odds: %w", opts.Sport, err)
	}

	return toEvents(payload, c.now()), nil
}

// SupportsMarket reports whether the featured-odds endpoint serves the market
func (c *Client) SupportsMarket(market string) bool {
	return market == "h2h" || market == "spreads" || market == "totals"
}

// GetRateLimits returns a copy of the last vendor-reported quota
func (c *Client) GetRateLimits() *models.RateLimits {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limits := c.limits
	return &limits
}

// getWithRetry retries transport errors, 5xx and 429 with exponential backoff.
// Other 4xx answers are final.
func (c *Client) getWithRetry(ctx context.Context, target string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *httpError
		if errors.As(err, &statusErr) && statusErr.clientError() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", c.redact(err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", c.redact(err))
	}
	defer resp.Body.Close()

	c.recordQuota(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}

// redact masks the api key in the URL that net/http puts into its errors
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if c.apiKey == "" || !errors.As(err, &urlErr) {
		return err
	}
	masked := *urlErr
	masked.URL = strings.ReplaceAll(urlErr.URL, url.QueryEscape(c.apiKey), redactedKey)
	return &masked
}

// recordQuota keeps the x-requests-remaining / x-requests-used headers of the last answer
func (c *Client) recordQuota(h http.Header) {
	remaining, okRemaining := headerInt(h, "x-requests-remaining")
	used, okUsed := headerInt(h, "x-requests-used")
	if !okRemaining && !okUsed {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if okRemaining {
		c.limits.RequestsRemaining = remaining
	}
	if okUsed {
		c.limits.RequestsUsed = used
	}
	c.limits.UpdatedAt = c.now().UTC()
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := h.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// httpError is a non-200 answer from the vendor
type httpError struct {
	StatusCode int
	Message    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *httpError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}
