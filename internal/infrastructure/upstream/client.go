// Package upstream is the HTTP client shared by live provider adapters. It
// bounds every attempt with a timeout, rate-limits per provider, retries
// requests that are safe to repeat and classifies failures into the shared
// error kinds.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/bookhub/internal/internaltypes"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const IdempotencyHeader = "Idempotency-Key"

type Config struct {
	Provider   string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
	// Decorate sets auth and other provider headers on every request.
	Decorate   func(*http.Request)
	HTTPClient *http.Client
	Log        zerolog.Logger
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return cfg
}

// Budget is the longest a retried request can take: every attempt timing
// out plus the backoff between them. Callers bounding a whole adapter call
// should allow at least this much.
func Budget(cfg Config) time.Duration {
	cfg = cfg.withDefaults()
	total := time.Duration(cfg.MaxRetries+1) * cfg.Timeout
	for i := 0; i < cfg.MaxRetries; i++ {
		total += cfg.Backoff << i
	}
	return total
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		cfg:     cfg,
		hc:      hc,
		limiter: limiter,
		log:     cfg.Log.With().Str("component", "upstream").Str("provider", cfg.Provider).Logger(),
	}
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	// JSON is encoded as the request body when set.
	JSON any
	// Form is sent url-encoded when set and JSON is nil.
	Form           url.Values
	Header         http.Header
	IdempotencyKey string
	// SafeRetry marks a non-GET request that has no side effects upstream.
	SafeRetry bool
}

// Retryable reports whether repeating the request cannot create a second
// side effect upstream.
func (r Request) Retryable() bool {
	if r.SafeRetry {
		return true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, "":
		return true
	}
	return r.IdempotencyKey != ""
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Decode unmarshals the body into out.
func (r Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do sends req. Transport failures, 429 and 5xx come back as
// ProviderUnavailable after retries are exhausted; deadlines and
// cancellation come back as ProviderTimeout. Other statuses are returned
// to the caller as a Response.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return Response{}, err
	}

	attempts := 1
	if req.Retryable() {
		attempts += c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.Backoff << (attempt - 1)
			c.log.Debug().Int("attempt", attempt+1).Dur("backoff", delay).Err(lastErr).Str("path", req.Path).Msg("retrying upstream request")
			select {
			case <-ctx.Done():
				return Response{}, internaltypes.ProviderTimeout(c.cfg.Provider, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, req, body, contentType)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Response{}, internaltypes.ProviderTimeout(c.cfg.Provider, ctx.Err())
		}
		var te *timeoutError
		if errors.As(err, &te) && !req.Retryable() {
			break
		}
	}

	var te *timeoutError
	if errors.As(lastErr, &te) {
		return Response{}, internaltypes.ProviderTimeout(c.cfg.Provider, te.err)
	}
	return Response{}, internaltypes.ProviderUnavailable(c.cfg.Provider, lastErr)
}

type timeoutError struct{ err error }

func (e *timeoutError) Error() string { return e.err.Error() }
func (e *timeoutError) Unwrap() error { return e.err }

type statusError struct{ status int }

func (e *statusError) Error() string { return fmt.Sprintf("upstream returned http %d", e.status) }

func (c *Client) attempt(ctx context.Context, req Request, body []byte, contentType string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, &timeoutError{err: err}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	hreq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		hreq.Header.Set(IdempotencyHeader, req.IdempotencyKey)
	}
	if c.cfg.Decorate != nil {
		c.cfg.Decorate(hreq)
	}

	start := time.Now()
	hresp, err := c.hc.Do(hreq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Response{}, &timeoutError{err: err}
		}
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return Response{}, &timeoutError{err: err}
		}
		return Response{}, err
	}
	defer hresp.Body.Close()

	b, err := io.ReadAll(hresp.Body)
	if err != nil {
		return Response{}, err
	}
	c.log.Debug().Str("method", method).Str("path", req.Path).Int("status", hresp.StatusCode).Dur("took", time.Since(start)).Msg("upstream call")

	if hresp.StatusCode == http.StatusTooManyRequests || hresp.StatusCode >= 500 {
		return Response{}, &statusError{status: hresp.StatusCode}
	}
	return Response{Status: hresp.StatusCode, Header: hresp.Header, Body: b}, nil
}

func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		return b, "application/json", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	}
	return nil, "", nil
}

// Unexpected turns a non-2xx response the adapter has no specific handling
// for into ProviderUnavailable, keeping a short excerpt of the body.
func (c *Client) Unexpected(op string, resp Response) error {
	excerpt := string(resp.Body)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return internaltypes.ProviderUnavailable(c.cfg.Provider, fmt.Errorf("%s: http %d: %s", op, resp.Status, strings.TrimSpace(excerpt)))
}
