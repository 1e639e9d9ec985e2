// Package cloud is the REST client for the NDX Cloud API: datasets,
// remote documents, and presigned file transfer. All calls are rate
// limited, retried on transient failures, and mapped onto the shared
// error vocabulary.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/internal/httpclient"
	"github.com/ndx-io/NDX/sym"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.ndx.io/v1"

	defaultTimeout    = 120 * time.Second
	defaultRetries    = 3
	defaultRatePerSec = 10
)

// Config holds cloud connection settings. Zero values select production
// defaults.
type Config struct {
	BaseURL string
	Token   string
	OrgID   string

	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64

	Logger *zap.SugaredLogger
}

// Client talks to the NDX Cloud API.
type Client struct {
	baseURL    string
	orgID      string
	httpClient *httpclient.SaferClient
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.SugaredLogger

	mu    sync.RWMutex
	token string
}

// NewClient builds a client from config.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultRetries
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = defaultRatePerSec
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		orgID:      config.OrgID,
		token:      config.Token,
		httpClient: httpclient.NewSaferClient(config.Timeout),
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), int(config.RequestsPerSecond)),
		maxRetries: config.MaxRetries,
		logger:     logger,
	}
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// OrgID returns the organization the client acts for.
func (c *Client) OrgID() string { return c.orgID }

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token, typically after Login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SetOrgID replaces the organization, typically after Login.
func (c *Client) SetOrgID(orgID string) { c.orgID = orgID }

// IsConfigured reports whether the client holds a token.
func (c *Client) IsConfigured() bool { return c.Token() != "" }

// SetHTTPClient overrides the HTTP client. Only tests talking to an
// httptest server should need this.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// APIError is a non-2xx API response that maps to no sentinel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("cloud API error (HTTP %d): %s", e.StatusCode, body)
}

// do executes one API call: rate limit, auth header, retry loop, and
// response decoding into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying cloud request",
				"symbol", sym.Cloud,
				"method", method,
				"path", path,
				"attempt", attempt,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := c.doOnce(ctx, method, reqURL, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return errors.Wrapf(lastErr, "%s %s after %d retries", method, path, c.maxRetries)
}

// doOnce runs a single request attempt. The bool reports whether the
// failure is worth retrying.
func (c *Client) doOnce(ctx context.Context, method, reqURL string, body []byte, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return isRetryableError(err), errors.Wrapf(err, "%s %s", method, reqURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, errors.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(respBody) == 0 {
			return false, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, errors.Wrapf(err, "decode response from %s", reqURL)
		}
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, errors.Wrapf(errors.ErrUnauthorized, "HTTP %d: %s", resp.StatusCode, truncate(respBody))
	case resp.StatusCode == http.StatusNotFound:
		return false, errors.Wrapf(errors.ErrNotFound, "HTTP 404: %s", truncate(respBody))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	default:
		return false, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}

// isRetryableError reports whether a transport error is transient.
func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var errno syscall.Errno
		if errors.As(opErr.Err, &errno) {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
