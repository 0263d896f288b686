// Package gateway is the single choke point for every call to the CRM
// backend: it attaches the session credential, serializes bodies, normalizes
// pagination envelopes and folds every failure mode into one error shape.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/limcrm/crmterm/internal/bus"
	"go.uber.org/zap"
)

// CredentialStore supplies the bearer token for outgoing requests. The
// gateway clears it when the backend rejects the credential.
type CredentialStore interface {
	Token() string
	Clear()
}

// Health receives the outcome of every backend call so the session state can
// track Ready/Degraded. Credential rejections are not reported here; they go
// through the auth.expired path instead.
type Health interface {
	RequestFailed()
	RequestSucceeded()
}

// CallOptions configures a single request. The zero value is a GET with no
// body. This is the only calling convention; there are no positional
// variants.
type CallOptions struct {
	// Method defaults to GET.
	Method string
	// Body is JSON-serialized. Ignored when RawBody is set.
	Body any
	// RawBody is an opaque payload sent untouched, e.g. a multipart form.
	RawBody io.Reader
	// RawContentType is the Content-Type for RawBody.
	RawContentType string
}

// Client issues HTTP requests against the backend base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	creds  CredentialStore
	bus    *bus.Bus
	health Health
	logger *zap.Logger
}

// New creates a gateway client. bus may be nil (no toasts), logger may be
// nil (no logging).
func New(baseURL string, creds CredentialStore, b *bus.Bus, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		creds:  creds,
		bus:    b,
		logger: logger,
	}, nil
}

// SetHealth registers a health sink for call outcomes. nil disables
// reporting.
func (c *Client) SetHealth(h Health) {
	c.health = h
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Call performs one request and returns the raw JSON body, or nil for an
// empty (204 / zero-length) response. Every failure is returned as an
// *APIError and toasted exactly once.
func (c *Client) Call(ctx context.Context, endpoint string, opts CallOptions) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, endpoint, opts)
	return raw, err
}

// CallPage performs one request and always returns a pagination envelope,
// even when the backend answered with a bare array or an empty body.
func (c *Client) CallPage(ctx context.Context, endpoint string, opts CallOptions) (*Page, error) {
	raw, empty, err := c.do(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	if empty {
		return EmptyPage(), nil
	}
	page, err := NormalizePage(raw)
	if err != nil {
		return nil, c.fail(transportError(err))
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, endpoint string, opts CallOptions) (json.RawMessage, bool, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case opts.RawBody != nil:
		body = opts.RawBody
		contentType = opts.RawContentType
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, false, c.fail(transportError(fmt.Errorf("encode body: %w", err)))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	default:
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+endpoint, body)
	if err != nil {
		return nil, false, c.fail(transportError(err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false, c.fail(transportError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, c.fail(transportError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized && isTokenInvalid(data) {
			// The session-expired toast is the one notification for this
			// failure; skip the generic one.
			c.expireSession()
			apiErr.notified = true
			apiErr.authExpired = true
		}
		c.logger.Warn("api error",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, false, c.fail(apiErr)
	}

	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		c.reportSuccess()
		return nil, true, nil
	}

	if !json.Valid(data) {
		return nil, false, c.fail(transportError(fmt.Errorf("invalid JSON in response from %s", endpoint)))
	}
	c.reportSuccess()
	return json.RawMessage(data), false, nil
}

// Download fetches a binary endpoint (report exports). The filename is taken
// from the Content-Disposition header when present.
func (c *Client) Download(ctx context.Context, endpoint string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+endpoint, nil)
	if err != nil {
		return "", nil, c.fail(transportError(err))
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, c.fail(transportError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, c.fail(transportError(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized && isTokenInvalid(data) {
			c.expireSession()
			apiErr.notified = true
			apiErr.authExpired = true
		}
		return "", nil, c.fail(apiErr)
	}

	filename := "report"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				filename = name
			}
		}
	}
	c.reportSuccess()
	return filename, data, nil
}

// fail toasts an error exactly once and passes it through. The notified flag
// guards against a second toast if the same error object comes back around.
// Failures also reach the health sink, except credential rejections: those
// force a login instead of a degraded session.
func (c *Client) fail(e *APIError) error {
	if !e.notified {
		e.notified = true
		c.bus.NotifyError(e.Message)
	}
	if c.health != nil && !e.authExpired {
		c.health.RequestFailed()
	}
	return e
}

func (c *Client) reportSuccess() {
	if c.health != nil {
		c.health.RequestSucceeded()
	}
}

// expireSession clears the stored credential and announces that login is
// required again. The TUI reacts by switching to the login page.
func (c *Client) expireSession() {
	c.creds.Clear()
	if c.bus != nil {
		c.bus.NotifyError("Session expired or token invalid. Please log in again.")
		c.bus.Publish(bus.Event{Kind: "auth.expired", Timestamp: time.Now()})
	}
}

// JoinQuery appends an encoded query string to an endpoint path.
func JoinQuery(endpoint string, values url.Values) string {
	if len(values) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + values.Encode()
}
