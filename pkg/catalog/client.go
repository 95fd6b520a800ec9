package catalog

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalogfetch/pkg/config"
	"catalogfetch/pkg/errors"
)

// OutcomeKind classifies the result of a single catalog request
type OutcomeKind int

const (
	// Success is a 200 response carrying the raw body
	Success OutcomeKind = iota
	// RateLimited is a 429 response carrying the wait before the next attempt
	RateLimited
	// HardFailure is any other non-200 status
	HardFailure
	// TransientFailure is a network-level fault
	TransientFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case HardFailure:
		return "hard_failure"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is the interpreted result of exactly one network call
type Outcome struct {
	Kind       OutcomeKind
	Body       []byte
	RetryAfter time.Duration
	Status     int
	Err        error
}

// Pacer throttles outbound requests. Wait blocks until a request may be
// issued or ctx ends.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Client performs single catalog requests. It never retries and never logs;
// both are left to the caller.
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	baseURL     string
	pacer       Pacer
	fallbackMin time.Duration
	fallbackMax time.Duration
	randInt64N  func(n int64) int64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPacer installs client-side request pacing
func WithPacer(p Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// WithRateLimitFallback sets the range the 429 wait is drawn from when the
// server sends no usable Retry-After header.
func WithRateLimitFallback(min, max time.Duration) Option {
	return func(c *Client) {
		c.fallbackMin = min
		c.fallbackMax = max
	}
}

// NewClient creates a catalog client from the API configuration
func NewClient(cfg config.APIConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        200,
				MaxIdleConnsPerHost: 200,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers: map[string]string{
			"Accept":          "application/json",
			"Accept-Language": "vi-VN,vi;q=0.9,en;q=0.8",
		},
		baseURL:     cfg.BaseURL,
		fallbackMin: 3 * time.Second,
		fallbackMax: 10 * time.Second,
		randInt64N:  rand.Int64N,
	}

	if cfg.UserAgent != "" {
		c.headers["User-Agent"] = cfg.UserAgent
	}
	c.SetHeaders(cfg.Headers)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// URLFor builds the product URL for id. Base URLs without a placeholder get
// the id appended.
func (c *Client) URLFor(id string) string {
	escaped := url.PathEscape(id)
	if strings.Contains(c.baseURL, config.IDPlaceholder) {
		return strings.ReplaceAll(c.baseURL, config.IDPlaceholder, escaped)
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/" + escaped
}

// Fetch issues one GET for id and classifies the response
func (c *Client) Fetch(ctx context.Context, id string) Outcome {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return Outcome{Kind: TransientFailure, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLFor(id), nil)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: err}
	}
	defer resp.Body.Close()

	switch errors.ClassifyStatus(resp.StatusCode) {
	case "":
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Outcome{
				Kind:   TransientFailure,
				Status: resp.StatusCode,
				Err:    fmt.Errorf("failed to read response body: %w", err),
			}
		}
		return Outcome{Kind: Success, Body: body, Status: resp.StatusCode}

	case errors.ErrorTypeRateLimit:
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{
			Kind:       RateLimited,
			Status:     resp.StatusCode,
			RetryAfter: c.retryAfter(resp.Header.Get("Retry-After")),
		}

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{
			Kind:   HardFailure,
			Status: resp.StatusCode,
			Err: &errors.Error{
				Type:    errors.ErrorTypeHard,
				Message: errors.HardStatusMessage(resp.StatusCode),
				Code:    resp.StatusCode,
			},
		}
	}
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date,
// falling back to a random wait when it is absent or unusable.
func (c *Client) retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(header); err == nil {
			if d := time.Until(at); d > 0 {
				return d.Round(time.Second)
			}
			return 0
		}
	}
	return c.fallbackWait()
}

// fallbackWait draws uniformly from whole seconds in [fallbackMin, fallbackMax]
func (c *Client) fallbackWait() time.Duration {
	span := c.fallbackMax - c.fallbackMin
	if span <= 0 {
		return c.fallbackMin
	}
	steps := int64(span / time.Second)
	if steps == 0 {
		return c.fallbackMin + time.Duration(c.randInt64N(int64(span)+1))
	}
	return c.fallbackMin + time.Duration(c.randInt64N(steps+1))*time.Second
}
