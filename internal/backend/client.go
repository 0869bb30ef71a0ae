// Package backend talks to the managed Postgres backend over its REST
// interface and invokes its serverless functions.
package backend

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smiledent/clinic-site/pkg/logging"
)

const defaultTimeout = 15 * time.Second

var backendTracer = otel.Tracer("clinic.internal.backend")

// Error is returned for non-2xx responses.
type Error struct {
	Status int
	Path   string
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// LatencyObserver records request latency per table.
type LatencyObserver interface {
	ObserveBackendLatency(table, method string, seconds float64)
}

// Client wraps the REST and functions endpoints of the managed backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	logger     *logging.Logger
	observer   LatencyObserver
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLatencyObserver attaches a metrics sink.
func WithLatencyObserver(o LatencyObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient constructs a backend client.
func NewClient(baseURL, anonKey string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// AnonKey returns the anonymous API key.
func (c *Client) AnonKey() string { return c.anonKey }

// Select reads rows from table into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	path := "/rest/v1/" + url.PathEscape(table) + "?" + q.Values().Encode()
	if err := c.do(ctx, table, http.MethodGet, path, nil, nil, out); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// Insert writes row into table. When out is non-nil the created
// representation is decoded into it.
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	headers := map[string]string{"Prefer": "return=minimal"}
	if out != nil {
		headers["Prefer"] = "return=representation"
	}
	path := "/rest/v1/" + url.PathEscape(table)
	if err := c.do(ctx, table, http.MethodPost, path, headers, row, out); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Update patches rows matching q.
func (c *Client) Update(ctx context.Context, table string, q *Query, patch any) error {
	path := "/rest/v1/" + url.PathEscape(table) + "?" + q.Values().Encode()
	headers := map[string]string{"Prefer": "return=minimal"}
	if err := c.do(ctx, table, http.MethodPatch, path, headers, patch, nil); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// InvokeFunction POSTs body to a serverless function. Only the status is
// checked; the response body is ignored.
func (c *Client) InvokeFunction(ctx context.Context, path string, body any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/functions/v1/" + path
	}
	if err := c.do(ctx, "fn:"+path, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("invoke %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, table, method, path string, headers map[string]string, body any, out any) error {
	ctx, span := backendTracer.Start(ctx, "backend.request", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("backend.table", table),
		attribute.String("http.method", method),
	)

	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveBackendLatency(table, method, time.Since(start).Seconds())
		}
	}()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("backend non-2xx response", "status", resp.StatusCode, "table", table, "method", method, "body", msg)
		apiErr := &Error{Status: resp.StatusCode, Path: table, Body: msg}
		span.RecordError(apiErr)
		return apiErr
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
