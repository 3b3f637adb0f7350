// Package pricefeed is the HTTP client for the batch price endpoint.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
	maxErrorBody     = 512
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
	now        func() time.Time
}

type ClientOption func(*Client)

// WithLimiter shares one limiter between clients so every controller in the
// process draws from the same budget.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger.With().Str("component", "pricefeed").Logger()
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pricesResponse struct {
	Prices     map[string]model.PriceQuote `json:"prices"`
	MarketOpen bool                        `json:"marketOpen"`
	Timestamp  string                      `json:"timestamp"`
}

// FetchPrices issues one GET for all tickers. The request is bound to ctx, so
// cancelling ctx aborts it in flight.
func (c *Client) FetchPrices(ctx context.Context, tickers []string) (*model.PriceResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait gives up early when the next token lands past the deadline.
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			return nil, fmt.Errorf("rate limit wait: %w: %v", context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL, err := c.buildURL(tickers)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	c.log.Debug().Int("tickers", len(tickers)).Msg("price request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("price request: %w: %v", context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &port.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var raw pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", port.ErrMalformedResponse, err)
	}
	if raw.Prices == nil {
		return nil, fmt.Errorf("%w: missing prices", port.ErrMalformedResponse)
	}

	out := &model.PriceResponse{
		Quotes:     make(map[string]model.PriceQuote, len(raw.Prices)),
		MarketOpen: raw.MarketOpen,
		Timestamp:  parseTimestamp(raw.Timestamp),
	}
	for k, q := range raw.Prices {
		out.Quotes[model.NormalizeTicker(k)] = q
	}
	return out, nil
}

// buildURL appends tickers (comma separated, no whitespace) and a millisecond
// cache-busting token to the base URL, keeping any existing query.
func (c *Client) buildURL(tickers []string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse price url: %w", err)
	}
	q := u.Query()
	q.Set("tickers", strings.Join(model.NormalizeTickers(tickers), ","))
	q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseTimestamp returns the zero time for empty or unparsable values; the
// controller then stamps the snapshot with its own clock.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

var _ port.PriceSource = (*Client)(nil)
