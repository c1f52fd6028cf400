// Package client talks to the front desk REST API. It adds the bearer token
// from a TokenSource, decodes the response envelope, normalizes failures into
// *APIError and refreshes the session once when a call comes back 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "http://localhost:3000/api/v1"
	defaultTimeout = 10 * time.Second
)

// TokenSource holds the session tokens. session.Store implements it.
// refreshTTL is the refresh token lifetime the server reported, zero when
// unknown.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string, refreshTTL time.Duration) error
	Clear() error
}

// Page is one page of a list endpoint
type Page[T any] struct {
	Items []T
	Meta  models.Meta
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Meta    *models.Meta      `json:"meta"`
	Errors  map[string]string `json:"errors"`
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
	tokens  TokenSource
	log     logrus.FieldLogger

	refreshMu sync.Mutex
}

type Option func(*Client)

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRetry sets how often idempotent reads are retried and the wait bounds
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = l
		c.http.Logger = leveledLogger{l}
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = defaultTimeout
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.CheckRetry = readsOnly
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.Client}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		log:     logger.Client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type idempotentKey struct{}

// readsOnly applies the default retry policy to GETs and never retries
// mutations
func readsOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if idempotent, _ := ctx.Value(idempotentKey{}).(bool); !idempotent {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}

	// anonymous requests carry no token and are not refreshed on 401
	anonymous bool
}

// call performs req, decoding the envelope data into out. It returns the list
// meta when the response carries one.
func (c *Client) call(ctx context.Context, req request, out interface{}) (*models.Meta, error) {
	token := ""
	if c.tokens != nil && !req.anonymous {
		token = c.tokens.AccessToken()
	}

	status, env, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && !req.anonymous && c.tokens != nil {
		if err := c.refresh(ctx, token); err != nil {
			return nil, err
		}
		status, env, err = c.send(ctx, req, c.tokens.AccessToken())
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.clearSession()
			return nil, ErrUnauthorized
		}
	}

	if status >= 400 || !env.Success {
		return nil, &APIError{Status: status, Kind: kindForStatus(status), Message: env.Message, Fields: env.Errors}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, &APIError{Status: status, Kind: KindServer, Message: "unexpected response body", Err: err}
		}
	}
	return env.Meta, nil
}

func (c *Client) send(ctx context.Context, req request, token string) (int, *envelope, error) {
	var body []byte
	if req.body != nil {
		var err error
		if body, err = json.Marshal(req.body); err != nil {
			return 0, nil, errors.Wrap(err, "failed to encode request body")
		}
	}

	if req.method == http.MethodGet {
		ctx = context.WithValue(ctx, idempotentKey{}, true)
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var payload interface{}
	if body != nil {
		payload = body
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, req.method, u, payload)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build request")
	}
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		c.log.WithError(err).WithFields(logrus.Fields{"method": req.method, "path": req.path}).Warn("api request failed")
		return 0, nil, networkError(err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":     req.method,
		"path":       req.path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("api request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, networkError(err)
	}

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			return resp.StatusCode, nil, &APIError{
				Status:  resp.StatusCode,
				Kind:    kindForStatus(resp.StatusCode),
				Message: "unexpected response body",
				Err:     err,
			}
		}
	}
	return resp.StatusCode, env, nil
}

// refresh trades the refresh token for a new pair. stale is the access token
// that was rejected; if another call already refreshed it, nothing is sent.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.tokens.AccessToken(); current != "" && current != stale {
		return nil
	}

	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		c.clearSession()
		return ErrUnauthorized
	}

	var resp models.RefreshResponse
	_, err := c.call(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/refresh",
		body:      models.RefreshRequest{RefreshToken: refreshToken},
		anonymous: true,
	}, &resp)
	if err != nil {
		if KindOf(err) == KindNetwork || ctx.Err() != nil {
			return err
		}
		c.log.WithError(err).Info("session refresh rejected")
		c.clearSession()
		return ErrUnauthorized
	}
	return errors.Wrap(c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken, seconds(resp.RefreshExpiresIn)), "failed to store refreshed session")
}

func (c *Client) clearSession() {
	if err := c.tokens.Clear(); err != nil {
		c.log.WithError(err).Warn("failed to clear session")
	}
}

// leveledLogger sends retryablehttp's chatter to logrus at debug level
type leveledLogger struct {
	l logrus.FieldLogger
}

func (l leveledLogger) fields(kv []interface{}) logrus.FieldLogger {
	entry := l.l
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			entry = entry.WithField(key, kv[i+1])
		}
	}
	return entry
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
