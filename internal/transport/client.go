package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader   = "X-Request-ID"
	defaultTimeout    = 30 * time.Second
	rateLimitDelay    = 3 * time.Second
	unavailableDelay  = 2 * time.Second
	connectivityDelay = 2 * time.Second
)

// Client is the shared HTTP client wrapper used by all resource calls. It
// attaches a correlation ID and bearer credential to every request,
// classifies failures, and retries a transient failure exactly once before
// surfacing a normalized *APIError. Unbounded retry is the polling
// engine's job, not this layer's.
type Client struct {
	http  *resty.Client
	token string
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a client for the given API base URL. An empty token
// omits the Authorization header.
func New(baseURL, token string, log *zap.Logger) *Client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout)

	return &Client{
		http:  hc,
		token: token,
		log:   log,
		sleep: sleepContext,
	}
}

// NewForTests constructs a client with an injectable retry-wait function.
func NewForTests(baseURL, token string, log *zap.Logger, sleep func(ctx context.Context, d time.Duration) error) *Client {
	c := New(baseURL, token, log)
	c.sleep = sleep
	return c
}

// Send issues one request and decodes a 2xx JSON body into out when out is
// non-nil. HTTP 429, HTTP 503, and connectivity failures are retried once
// after the appropriate delay; every other failure is surfaced directly.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) error {
	requestID := uuid.NewString()

	resp, err := c.do(ctx, method, path, body, out, requestID)
	delay, transient := transientDelay(resp, err)
	if !transient {
		return c.finish(resp, err, requestID)
	}

	c.log.Info("transient failure, retrying once",
		zap.String("requestId", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusOf(resp, err)),
		zap.Duration("delay", delay),
	)
	if waitErr := c.sleep(ctx, delay); waitErr != nil {
		return fmt.Errorf("request cancelled during retry wait: %w", waitErr)
	}

	resp, err = c.do(ctx, method, path, body, out, requestID)
	return c.finish(resp, err, requestID)
}

// do performs a single HTTP attempt.
func (c *Client) do(ctx context.Context, method, path string, body, out any, requestID string) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID)
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		// Decode 2xx bodies as JSON even when the server mislabels or
		// omits the Content-Type header.
		req.SetResult(out).ForceContentType("application/json")
	}

	return req.Execute(method, path)
}

// finish converts the final attempt's outcome into nil or a normalized error.
func (c *Client) finish(resp *resty.Response, err error, requestID string) error {
	if err != nil {
		if IsCancelled(err) {
			return fmt.Errorf("request cancelled: %w", err)
		}
		return &APIError{
			Detail:     err.Error(),
			StatusCode: 0,
			ErrorCode:  ErrorCodeNetwork,
			err:        err,
		}
	}
	if !resp.IsError() {
		return nil
	}

	if resp.StatusCode() == 401 {
		// Credential refresh slot; currently a plain passthrough.
		c.log.Warn("unauthorized response", zap.String("requestId", requestID))
	}

	apiErr := &APIError{
		Detail:     fmt.Sprintf("request failed with status %d", resp.StatusCode()),
		StatusCode: resp.StatusCode(),
	}
	var serverErr struct {
		Detail    string `json:"detail"`
		ErrorCode string `json:"errorCode"`
	}
	if unmarshalErr := json.Unmarshal(resp.Body(), &serverErr); unmarshalErr == nil {
		if serverErr.Detail != "" {
			apiErr.Detail = serverErr.Detail
		}
		apiErr.ErrorCode = serverErr.ErrorCode
	}
	return apiErr
}

// transientDelay classifies one attempt's outcome and returns how long to
// wait before the single built-in retry. Cancellation and every status
// other than 429/503 are not transient.
func transientDelay(resp *resty.Response, err error) (time.Duration, bool) {
	if err != nil {
		if IsCancelled(err) {
			return 0, false
		}
		return connectivityDelay, true
	}

	switch resp.StatusCode() {
	case 429:
		return retryAfterDelay(resp.Header().Get("Retry-After")), true
	case 503:
		return unavailableDelay, true
	default:
		return 0, false
	}
}

// retryAfterDelay parses a Retry-After header in seconds, defaulting to
// the fixed rate-limit delay when absent or malformed.
func retryAfterDelay(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return rateLimitDelay
	}
	return time.Duration(seconds) * time.Second
}

// statusOf reports the attempt status for logging, 0 when no response.
func statusOf(resp *resty.Response, err error) int {
	if err != nil {
		return 0
	}
	return resp.StatusCode()
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
