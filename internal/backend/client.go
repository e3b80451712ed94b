// Package backend is the client for the fleet REST API.
//
// Every call carries the bearer token found in the client's KeyValueStore,
// is paced by an outbound rate limiter, and is bounded by a per-call timeout.
// Non-2xx responses come back as *APIError.
package backend

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

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/fleetdesk/internal/logging"
)

// Resource is a REST collection served by the fleet API.
type Resource string

const (
	Buses         Resource = "buses"
	Drivers       Resource = "drivers"
	Routes        Resource = "routes"
	RoutePoints   Resource = "route-points"
	Trips         Resource = "trips"
	Notifications Resource = "notifications"
	Applications  Resource = "applications"
	Users         Resource = "users"
)

// Resources lists every collection the client knows.
var Resources = []Resource{Buses, Drivers, Routes, RoutePoints, Trips, Notifications, Applications, Users}

// Valid reports whether r is a known collection.
func (r Resource) Valid() bool {
	for _, known := range Resources {
		if r == known {
			return true
		}
	}
	return false
}

// Default client settings.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRPS     = 20
	DefaultBurst   = 10

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client talks JSON to the fleet API.
type Client struct {
	base    *url.URL
	http    *http.Client
	store   KeyValueStore
	limiter *rate.Limiter
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithStore sets the store the bearer token is read from.
func WithStore(s KeyValueStore) ClientOption {
	return func(c *Client) { c.store = s }
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit paces outbound calls to rps with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		store:   NewMemoryStore(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store returns the client's key-value store.
func (c *Client) Store() KeyValueStore { return c.store }

// SetToken stores the bearer token used by later calls.
func (c *Client) SetToken(token string) {
	if token == "" {
		c.store.Delete(TokenKey)
		return
	}
	c.store.Set(TokenKey, token)
}

// Token returns the stored bearer token, if any.
func (c *Client) Token() (string, bool) {
	t, ok := c.store.Get(TokenKey)
	return t, ok && t != ""
}

// List fetches a collection into out, which is usually a pointer to a slice.
func (c *Client) List(ctx context.Context, res Resource, query url.Values, out any) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	path := string(res)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Get fetches one item.
func (c *Client) Get(ctx context.Context, res Resource, id string, out any) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	return c.Do(ctx, http.MethodGet, itemPath(res, id), nil, out)
}

// Create posts a new item. out receives the created item when non-nil.
func (c *Client) Create(ctx context.Context, res Resource, body, out any) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	return c.Do(ctx, http.MethodPost, string(res), body, out)
}

// Update replaces an item. out receives the updated item when non-nil.
func (c *Client) Update(ctx context.Context, res Resource, id string, body, out any) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	return c.Do(ctx, http.MethodPut, itemPath(res, id), body, out)
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, res Resource, id string) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownResource, res)
	}
	return c.Do(ctx, http.MethodDelete, itemPath(res, id), nil, nil)
}

func itemPath(res Resource, id string) string {
	return string(res) + "/" + url.PathEscape(id)
}

// Do sends one JSON request to path, relative to the base URL. body is
// encoded as JSON when non-nil; out is decoded from a non-empty 2xx body when
// non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reqBody)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).Debug("fleet api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp, method, path)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	u := *c.base
	rel, query, _ := strings.Cut(path, "?")
	rel = strings.TrimLeft(rel, "/")
	unescaped, err := url.PathUnescape(rel)
	if err != nil {
		unescaped = rel
	}
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + unescaped
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + rel
	u.RawQuery = query
	return u.String()
}

// readAPIError builds an *APIError from a failed response. The message is
// taken from a JSON "message" or "error" field, or the raw body text.
func readAPIError(resp *http.Response, method, path string) error {
	apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if len(apiErr.Message) > 200 {
		apiErr.Message = apiErr.Message[:200]
	}
	return apiErr
}

// ListAs fetches a collection of T.
func ListAs[T any](ctx context.Context, c *Client, res Resource, query url.Values) ([]T, error) {
	var out []T
	if err := c.List(ctx, res, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAs fetches one T.
func GetAs[T any](ctx context.Context, c *Client, res Resource, id string) (T, error) {
	var out T
	err := c.Get(ctx, res, id, &out)
	return out, err
}
