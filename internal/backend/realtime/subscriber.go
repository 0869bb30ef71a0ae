// Package realtime subscribes to change notifications from the managed
// backend's realtime websocket and fans them out to per-table callbacks.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smiledent/clinic-site/pkg/logging"
)

const (
	defaultHeartbeat      = 30 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

// Change is a single row change pushed by the backend.
type Change struct {
	Table string          `json:"table"`
	Type  string          `json:"type"`
	Raw   json.RawMessage `json:"-"`
}

// Handler reacts to a change. Handlers run on the read loop and should be quick.
type Handler func(ctx context.Context, change Change)

type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// Subscriber holds one websocket connection with one channel per table.
type Subscriber struct {
	endpoint       string
	dialer         *websocket.Dialer
	logger         *logging.Logger
	heartbeat      time.Duration
	reconnectDelay time.Duration

	mu       sync.RWMutex
	handlers map[string][]Handler

	writeMu sync.Mutex
	ref     int
}

// NewSubscriber builds a subscriber for the backend at baseURL.
func NewSubscriber(baseURL, anonKey string, logger *logging.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = logging.Default()
	}
	endpoint, err := websocketURL(baseURL, anonKey)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		endpoint:       endpoint,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
		heartbeat:      defaultHeartbeat,
		reconnectDelay: defaultReconnectDelay,
		handlers:       make(map[string][]Handler),
	}, nil
}

func websocketURL(baseURL, anonKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("realtime: parse base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe registers h for changes on table. Call before Run.
func (s *Subscriber) Subscribe(table string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[table] = append(s.handlers[table], h)
}

// Run keeps a connection open until ctx is cancelled, reconnecting after
// failures.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("realtime connection lost", "error", err, "retry_in", s.reconnectDelay.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	defer conn.Close()

	s.mu.RLock()
	tables := make([]string, 0, len(s.handlers))
	for table := range s.handlers {
		tables = append(tables, table)
	}
	s.mu.RUnlock()

	for _, table := range tables {
		if err := s.send(conn, topicFor(table), "phx_join", joinPayload(table)); err != nil {
			return fmt.Errorf("realtime: join %s: %w", table, err)
		}
	}
	s.logger.Info("realtime subscribed", "tables", tables)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepAlive(connCtx, conn)
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("realtime: read: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Debug("realtime: skipping malformed frame", "error", err)
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, env envelope) {
	table, ok := tableFromTopic(env.Topic)
	if !ok {
		return
	}
	changeType, ok := changeTypeFor(env)
	if !ok {
		return
	}
	s.mu.RLock()
	handlers := append([]Handler(nil), s.handlers[table]...)
	s.mu.RUnlock()

	change := Change{Table: table, Type: changeType, Raw: env.Payload}
	for _, h := range handlers {
		h(ctx, change)
	}
}

func changeTypeFor(env envelope) (string, bool) {
	switch env.Event {
	case "INSERT", "UPDATE", "DELETE":
		return env.Event, true
	case "postgres_changes":
		var p struct {
			Data struct {
				Type string `json:"type"`
			} `json:"data"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Data.Type == "" {
			return "UNKNOWN", true
		}
		return p.Data.Type, true
	default:
		return "", false
	}
}

func (s *Subscriber) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(conn, "phoenix", "heartbeat", map[string]any{}); err != nil {
				s.logger.Debug("realtime heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (s *Subscriber) send(conn *websocket.Conn, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ref++
	return conn.WriteJSON(envelope{Topic: topic, Event: event, Payload: raw, Ref: strconv.Itoa(s.ref)})
}

func topicFor(table string) string {
	return "realtime:public:" + table
}

func tableFromTopic(topic string) (string, bool) {
	const prefix = "realtime:public:"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	table := strings.TrimPrefix(topic, prefix)
	return table, table != ""
}

func joinPayload(table string) map[string]any {
	return map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": "public", "table": table},
			},
		},
	}
}

// ErrNoSubscriptions is returned by Start when nothing was registered.
var ErrNoSubscriptions = errors.New("realtime: no subscriptions registered")

// Start runs the subscriber in the background. It returns ErrNoSubscriptions
// without dialing when no handler is registered.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.RLock()
	n := len(s.handlers)
	s.mu.RUnlock()
	if n == 0 {
		return ErrNoSubscriptions
	}
	go func() {
		_ = s.Run(ctx)
	}()
	return nil
}
