// Package notify relays form submissions (appointments, orders, loyalty
// signups, job applications, reviews) to the clinic staff.
package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smiledent/clinic-site/pkg/logging"
)

var notifyTracer = otel.Tracer("clinic.internal.notify")

// Sender delivers a submission. Implementations report only success or failure.
type Sender interface {
	Send(ctx context.Context, s Submission) error
}

// FunctionInvoker calls a serverless function on the managed backend.
type FunctionInvoker interface {
	InvokeFunction(ctx context.Context, path string, body any) error
}

// Relay is a secondary channel notified after the primary function succeeds.
type Relay interface {
	Name() string
	Relay(ctx context.Context, s Submission) error
}

// Observer records notify outcomes.
type Observer interface {
	ObserveNotify(kind, outcome string)
}

// Client posts submissions to the notify function and then fans out to relays.
type Client struct {
	invoker  FunctionInvoker
	path     string
	relays   []Relay
	observer Observer
	logger   *logging.Logger
}

// NewClient creates a notify client for the function at path.
func NewClient(invoker FunctionInvoker, path string, logger *logging.Logger, relays ...Relay) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if path == "" {
		path = "/functions/v1/notify"
	}
	var active []Relay
	for _, r := range relays {
		if r != nil {
			active = append(active, r)
		}
	}
	return &Client{invoker: invoker, path: path, relays: active, logger: logger}
}

// WithObserver attaches a metrics observer.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// Send delivers s to the notify function. Relay failures are logged and
// never returned.
func (c *Client) Send(ctx context.Context, s Submission) error {
	ctx, span := notifyTracer.Start(ctx, "notify.send")
	defer span.End()
	span.SetAttributes(attribute.String("notify.kind", string(s.Kind)))

	if err := c.invoker.InvokeFunction(ctx, c.path, s); err != nil {
		span.RecordError(err)
		c.observe(s.Kind, "error")
		c.logger.Error("notify: function call failed", "kind", s.Kind, "error", err)
		return fmt.Errorf("notify: send %s: %w", s.Kind, err)
	}
	c.observe(s.Kind, "ok")
	c.logger.Info("notify: submission delivered", "kind", s.Kind)

	for _, r := range c.relays {
		if err := r.Relay(ctx, s); err != nil {
			c.logger.Warn("notify: relay failed", "relay", r.Name(), "kind", s.Kind, "error", err)
			continue
		}
		c.logger.Debug("notify: relayed", "relay", r.Name(), "kind", s.Kind)
	}
	return nil
}

func (c *Client) observe(kind Kind, outcome string) {
	if c.observer != nil {
		c.observer.ObserveNotify(string(kind), outcome)
	}
}
