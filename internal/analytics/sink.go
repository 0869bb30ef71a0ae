// Package analytics records page events and visitor fingerprints. Event
// tracking and the embedded-platform profile are injected capabilities
// with no-op implementations for environments that lack them.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// Event is one tracked interaction.
type Event struct {
	Name     string         `json:"name"`
	ClientID string         `json:"client_id,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Sink receives events. Implementations never fail the caller.
type Sink interface {
	Track(ctx context.Context, ev Event)
}

// NoopSink drops every event.
type NoopSink struct{}

func (NoopSink) Track(context.Context, Event) {}

// DefaultMeasurementEndpoint is the GA4 measurement-protocol collector.
const DefaultMeasurementEndpoint = "https://www.google-analytics.com/mp/collect"

// MeasurementSink forwards events to a GA4 property.
type MeasurementSink struct {
	endpoint      string
	measurementID string
	apiSecret     string
	httpClient    *http.Client
	logger        *logging.Logger
}

// NewMeasurementSink returns a NoopSink unless both id and secret are set.
func NewMeasurementSink(measurementID, apiSecret string, logger *logging.Logger) Sink {
	if measurementID == "" || apiSecret == "" {
		return NoopSink{}
	}
	return newMeasurementSink(DefaultMeasurementEndpoint, measurementID, apiSecret, logger)
}

func newMeasurementSink(endpoint, measurementID, apiSecret string, logger *logging.Logger) *MeasurementSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &MeasurementSink{
		endpoint:      endpoint,
		measurementID: measurementID,
		apiSecret:     apiSecret,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		logger:        logger,
	}
}

type mpEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type mpPayload struct {
	ClientID string    `json:"client_id"`
	Events   []mpEvent `json:"events"`
}

// Track posts ev; failures are logged at debug and dropped.
func (s *MeasurementSink) Track(ctx context.Context, ev Event) {
	if err := s.send(ctx, ev); err != nil {
		s.logger.Debug("analytics: event dropped", "event", ev.Name, "error", err)
	}
}

func (s *MeasurementSink) send(ctx context.Context, ev Event) error {
	clientID := ev.ClientID
	if clientID == "" {
		clientID = "anonymous"
	}
	body, err := json.Marshal(mpPayload{ClientID: clientID, Events: []mpEvent{{Name: ev.Name, Params: ev.Params}}})
	if err != nil {
		return fmt.Errorf("analytics: marshal: %w", err)
	}
	q := url.Values{}
	q.Set("measurement_id", s.measurementID)
	q.Set("api_secret", s.apiSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("analytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("analytics: collector returned %d", resp.StatusCode)
	}
	return nil
}
