// Package client - Portal API Client
// Fetches module schemas, entity lists and the current user from a portal API
// and falls back to local data when the API is unreachable or answers with
// something unusable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aethra/glow/internal/engine"
	"github.com/aethra/glow/internal/models"
	"github.com/aethra/glow/internal/query"
	"github.com/rs/zerolog"
)

// Fallback answers requests when the API cannot. The mock engine is one.
type Fallback interface {
	Modules(ctx context.Context) ([]models.Module, error)
	Query(ctx context.Context, moduleID string, q models.Query) (models.PagedResult, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Recorder observes where each answer came from: "api", "fallback" or "empty".
type Recorder interface {
	RecordFetch(resource, source string, d time.Duration)
}

// Config describes the portal API.
type Config struct {
	BaseURL      string
	Version      string
	Portal       string
	Timeout      time.Duration
	RetryMax     int
	RetryDelay   time.Duration
	DefaultLimit int
}

// Client talks to `{base}/api/{version}/portals/{portal}/{resource}`.
type Client struct {
	basePath string
	enabled  bool
	http     *http.Client
	cfg      Config
	builder  query.Builder
	fallback Fallback
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFallback sets the source used when the API fails.
func WithFallback(f Fallback) Option {
	return func(c *Client) { c.fallback = f }
}

// WithRecorder sets a fetch observer.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client. An empty BaseURL disables the API and every call
// goes straight to the fallback.
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax < 1 {
		cfg.RetryMax = 1
	}
	c := &Client{
		basePath: strings.TrimRight(cfg.BaseURL, "/") + "/api/" + cfg.Version + "/portals/" + cfg.Portal,
		enabled:  strings.TrimSpace(cfg.BaseURL) != "",
		http:     &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		builder:  query.Builder{PageSize: cfg.DefaultLimit},
		logger:   logger.With().Str("component", "client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the request URL for a resource.
func (c *Client) URL(resource string, params url.Values) string {
	u := c.basePath + "/" + resource
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// =============================================================================
// RESOURCES
// =============================================================================

// Modules returns the module schema. Never fails: the fallback, then an
// empty list, stand in for a broken API.
func (c *Client) Modules(ctx context.Context) []models.Module {
	start := time.Now()
	if body := c.get(ctx, "modules", nil); body != nil {
		var modules []models.Module
		if payload := unwrapData(body); isArray(payload) && json.Unmarshal(payload, &modules) == nil {
			c.record("modules", "api", start)
			return modules
		}
	}
	if c.fallback != nil {
		modules, err := c.fallback.Modules(ctx)
		if err == nil {
			c.record("modules", "fallback", start)
			return modules
		}
		c.logger.Warn().Err(err).Msg("fallback modules unavailable")
	}
	c.record("modules", "empty", start)
	return []models.Module{}
}

// List returns one page of a module's rows. A paged `{data, meta}` answer is
// used as-is; a bare array is paged here. Anything else falls back.
func (c *Client) List(ctx context.Context, moduleID string, s query.UIState) models.PagedResult {
	start := time.Now()
	q := c.builder.Build(s)

	if body := c.get(ctx, moduleID, query.Encode(q)); body != nil {
		if res, ok := decodePage(body, q); ok {
			c.record(moduleID, "api", start)
			return res
		}
		c.logger.Warn().Str("module", moduleID).Msg("unusable list response, using fallback")
	}
	if c.fallback != nil {
		res, err := c.fallback.Query(ctx, moduleID, q)
		if err == nil {
			c.record(moduleID, "fallback", start)
			return res
		}
		c.logger.Warn().Err(err).Str("module", moduleID).Msg("fallback list unavailable")
	}
	c.record(moduleID, "empty", start)
	return models.EmptyResult(q.Page, q.Limit)
}

// CurrentUser returns the signed-in user, or nil when no source has one.
func (c *Client) CurrentUser(ctx context.Context) *models.User {
	start := time.Now()
	if body := c.get(ctx, "me", nil); body != nil {
		var u models.User
		if payload := unwrapData(body); json.Unmarshal(payload, &u) == nil && (u.Name != "" || u.Email != "") {
			c.record("me", "api", start)
			return &u
		}
	}
	if c.fallback != nil {
		if u, err := c.fallback.CurrentUser(ctx); err == nil && u != nil {
			c.record("me", "fallback", start)
			return u
		}
	}
	c.record("me", "empty", start)
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// get returns the response body of a successful GET, or nil on any failure.
// A failed request without parameters is retried once as `{resource}.json`.
func (c *Client) get(ctx context.Context, resource string, params url.Values) []byte {
	if !c.enabled {
		return nil
	}
	target := c.URL(resource, params)
	body, err := c.fetch(ctx, target)
	if err != nil && len(params) == 0 && ctx.Err() == nil {
		body, err = c.fetch(ctx, c.basePath+"/"+resource+".json")
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("url", target).Msg("api request failed")
		return nil
	}
	return body
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return body, nil
			default:
				lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
				if !shouldRetry(resp.StatusCode) {
					return nil, lastErr
				}
			}
		}

		if attempt < c.cfg.RetryMax {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return nil, lastErr
}

func shouldRetry(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout || status == http.StatusInternalServerError
}

func (c *Client) record(resource, source string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordFetch(resource, source, time.Since(start))
	}
}

// =============================================================================
// DECODING
// =============================================================================

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *models.Meta    `json:"meta"`
}

// unwrapData returns body.data for a `{data: ...}` object without meta, and
// the body itself otherwise.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if json.Unmarshal(trimmed, &env) != nil || env.Data == nil || env.Meta != nil {
		return trimmed
	}
	return env.Data
}

func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

func decodePage(body []byte, q models.Query) (models.PagedResult, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Meta != nil && isArray(env.Data) {
			var rows []models.Row
			if err := json.Unmarshal(env.Data, &rows); err != nil {
				return models.PagedResult{}, false
			}
			meta := *env.Meta
			if meta.Page < 1 {
				meta.Page = q.Page
			}
			if meta.Limit < 1 {
				meta.Limit = q.Limit
			}
			if meta.Total < len(rows) {
				meta.Total = len(rows)
			}
			if len(rows) > meta.Limit {
				rows = rows[:meta.Limit]
			}
			return models.PagedResult{Data: models.NormalizeRows(rows), Meta: meta}, true
		}
	}

	payload := unwrapData(trimmed)
	if !isArray(payload) {
		return models.PagedResult{}, false
	}
	var rows []models.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return models.PagedResult{}, false
	}
	return engine.Paginate(models.NormalizeRows(rows), q.Page, q.Limit), true
}
