// Package client is the API boundary: a thin transport over the
// REST-over-Postgres backend exposing the form, field, and record resources.
// Writes request the representation of the written row back, and every write
// body is augmented with the configured username so the server can enforce
// row ownership.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formbase/formbase-go/internal/config"
	"github.com/formbase/formbase-go/internal/observability"
	"github.com/formbase/formbase-go/model"
)

// Client executes requests against the backend using a static bearer token.
// The token is never refreshed or rotated.
type Client struct {
	cfg     config.APIConfig
	http    *http.Client
	breaker *CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates a Client from configuration. logger and metrics may be nil.
func New(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *Client {
	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := cfg.API.CircuitBreaker
	return &Client{
		cfg: cfg.API,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout),
		logger:  logger,
		metrics: metrics,
	}
}

// Username returns the identity every write is scoped to.
func (c *Client) Username() string {
	return c.cfg.Username
}

// Request executes one backend call. endpoint is a path (optionally with a
// query string) relative to the configured base URL. A non-nil body is
// augmented with the username and sent as JSON. A non-success status fails
// with "HTTP <status>: <body text>". A 204 or non-JSON response resolves to
// an empty object rather than failing.
func (c *Client) Request(ctx context.Context, endpoint, method string, body map[string]any) (any, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, model.NewTransportError(err)
	}

	ctx, span := observability.StartSpan(ctx, "client.request",
		observability.AttrEndpoint.String(endpoint),
		observability.AttrMethod.String(method),
	)

	start := time.Now()
	result, status, err := c.execute(ctx, endpoint, method, body)

	resource := resourceOf(endpoint)
	if c.metrics != nil {
		c.metrics.BackendRequestDuration.WithLabelValues(method, resource).
			Observe(time.Since(start).Seconds())
		c.metrics.BackendRequestsTotal.WithLabelValues(method, resource, fmt.Sprint(status)).Inc()
		c.metrics.BackendCircuitBreakerState.Set(float64(c.breaker.State()))
	}

	logger := observability.LoggerFrom(ctx, c.logger)
	if err != nil {
		logger.Error("backend request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		logger.Debug("backend request",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	span.SetAttributes(observability.AttrStatus.Int(status))
	observability.EndSpanWithError(span, err)
	return result, err
}

// execute performs the HTTP exchange and response classification.
func (c *Client) execute(ctx context.Context, endpoint, method string, body map[string]any) (any, int, error) {
	var reqBody io.Reader
	if body != nil {
		augmented := make(map[string]any, len(body)+1)
		for k, v := range body {
			augmented[k] = v
		}
		augmented["username"] = c.cfg.Username

		data, err := json.Marshal(augmented)
		if err != nil {
			return nil, 0, fmt.Errorf("client: marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("client: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if method == http.MethodPost || method == http.MethodPatch {
		// Ask the server to return the representation of the written rows.
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, 0, model.NewTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, resp.StatusCode, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		}
		return nil, resp.StatusCode, model.NewHTTPError(resp.StatusCode, string(respBody))
	}
	c.breaker.RecordSuccess()

	if resp.StatusCode == http.StatusNoContent {
		return map[string]any{}, resp.StatusCode, nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return map[string]any{}, resp.StatusCode, nil
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return map[string]any{}, resp.StatusCode, nil
	}
	return parsed, resp.StatusCode, nil
}

// First normalizes a write response: the server may return the written row
// either bare or as a one-element array.
func First(v any) any {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	}
	return v
}

// resourceOf extracts the metric label from an endpoint path.
func resourceOf(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexAny(trimmed, "?/"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// decodeInto re-decodes a parsed JSON value into a typed destination.
func decodeInto(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client: re-encode response: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
