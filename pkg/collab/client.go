package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// unhealthyAfter is the number of consecutive failures that marks the API
// unhealthy.
const unhealthyAfter = 3

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource supplies bearer tokens. Acquiring and refreshing tokens is the
// identity layer's job; the client asks for a token on every request so a
// refreshed token is picked up on the next retry.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken returns a TokenSource that always hands out token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// Client talks to the external collaboration API.
// It does not retry; wrap calls with retry.Execute.
type Client struct {
	config  Config
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	pacer   *rate.Limiter
	logger  *slog.Logger

	healthMu sync.RWMutex
	health   Health
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a collaboration API client.
func NewClient(config Config, tokens TokenSource, opts ...Option) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("collab: base_url is required")
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("collab: invalid base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("collab: base_url must be http or https, got %q", base.Scheme)
	}
	if tokens == nil {
		return nil, errors.New("collab: token source is required")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 32
	}
	if config.UserAgent == "" {
		config.UserAgent = "tollgate"
	}

	pacer := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		pacer = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	c := &Client{
		config:  config,
		baseURL: base,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        config.MaxIdleConns,
				MaxIdleConnsPerHost: config.MaxIdleConns,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: config.Timeout,
		},
		tokens: tokens,
		pacer:  pacer,
		logger: slog.Default().With("component", "collab"),
		health: Health{Healthy: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSite provisions a new site for a tenant.
func (c *Client) CreateSite(ctx context.Context, req CreateSiteRequest) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodPost, "/sites", req, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSite fetches a site by ID.
func (c *Client) GetSite(ctx context.Context, siteID string) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodGet, "/sites/"+url.PathEscape(siteID), nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// DeleteSite removes a site.
func (c *Client) DeleteSite(ctx context.Context, siteID string) error {
	return c.do(ctx, http.MethodDelete, "/sites/"+url.PathEscape(siteID), nil, nil)
}

// AddMember grants a user access to a site.
func (c *Client) AddMember(ctx context.Context, siteID string, req AddMemberRequest) (*Member, error) {
	var member Member
	if err := c.do(ctx, http.MethodPost, "/sites/"+url.PathEscape(siteID)+"/members", req, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// Health returns a snapshot of recent request outcomes.
func (c *Client) Health() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("collab: pacing: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("collab: acquire token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("collab: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("collab: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.Inject(ctx, req.Header)

	c.logger.Debug("sending request to collaboration API",
		"method", method,
		"path", path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordResult(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp)
		c.recordResult(apiErr)
		return apiErr
	}

	c.recordResult(nil)
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("collab: read response: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{RawResponse: string(raw), Cause: err}
	}
	return nil
}

func (c *Client) recordResult(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	if err == nil {
		c.health.Healthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = ""
		c.health.LastSuccess = time.Now()
		return
	}

	c.health.FailedRequests++
	c.health.ConsecutiveFailures++
	c.health.LastError = err.Error()
	if c.health.ConsecutiveFailures >= unhealthyAfter && c.health.Healthy {
		c.health.Healthy = false
		c.logger.Warn("collaboration API marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// errorEnvelope is the API's error body: {"error": {"code": "...", "message": "..."}}.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		RequestID:  firstHeader(resp.Header, "Request-Id", "X-Request-Id", "Client-Request-Id"),
	}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func firstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}
