package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL bounds how long idle session state is kept.
const DefaultTTL = 24 * time.Hour

// Store keeps one JSON-serializable value per session id.
type Store[T any] interface {
	// Get returns the value and whether it exists.
	Get(ctx context.Context, id string) (T, bool, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryStore is an in-process Store with per-entry expiry.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry[T]
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore[T]{ttl: ttl, entries: make(map[string]memoryEntry[T]), now: time.Now}
}

func (m *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	e, ok := m.entries[id]
	if !ok {
		return zero, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, id)
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore[T]) Put(_ context.Context, id string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.entries[id] = memoryEntry[T]{value: v, expires: now.Add(m.ttl)}
	// opportunistic sweep keeps abandoned sessions from piling up
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// RedisStore persists values as JSON under prefix+id with a sliding TTL.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisStore[T] {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.session"),
	}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	var v T
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return v, false, nil
		}
		span.RecordError(err)
		return v, false, fmt.Errorf("session: load %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		span.RecordError(err)
		return v, false, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return v, true, nil
}

func (s *RedisStore[T]) Put(ctx context.Context, id string, v T) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

// NewStore returns a RedisStore when client is set, else a MemoryStore.
func NewStore[T any](client *redis.Client, prefix string, ttl time.Duration) Store[T] {
	if client != nil {
		return NewRedisStore[T](client, prefix, ttl)
	}
	return NewMemoryStore[T](ttl)
}
