package querycache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// Result is the uniform read contract. Loading is true when Data is a stale
// copy and a refresh is in flight.
type Result[T any] struct {
	Data    T     `json:"data"`
	Loading bool  `json:"loading"`
	Err     error `json:"-"`
}

// ErrorText renders Err for JSON responses.
func (r Result[T]) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type stored struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Loader applies one TTL and refresh policy to all keys.
type Loader struct {
	cache  Cache
	ttl    time.Duration
	stale  time.Duration
	group  singleflight.Group
	logger *logging.Logger
	now    func() time.Time
}

// NewLoader builds a loader. Entries are fresh for ttl and served stale
// (with a background refresh) for another ttl after that.
func NewLoader(cache Cache, ttl time.Duration, logger *logging.Logger) *Loader {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Loader{cache: cache, ttl: ttl, stale: ttl, logger: logger, now: time.Now}
}

// Invalidate drops a cached key so the next read refetches.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}

// InvalidatePrefix drops every key with the prefix.
func (l *Loader) InvalidatePrefix(ctx context.Context, prefix string) error {
	return l.cache.DeletePrefix(ctx, prefix)
}

// Load returns cached data for key or runs fetch. Concurrent misses for the
// same key share one fetch. Fetch errors are never cached.
func Load[T any](ctx context.Context, l *Loader, key string, fetch func(ctx context.Context) (T, error)) Result[T] {
	var zero T

	if raw, ok, err := l.cache.Get(ctx, key); err != nil {
		l.logger.Warn("querycache: read failed, fetching directly", "key", key, "error", err)
	} else if ok {
		var entry stored
		var data T
		if err := json.Unmarshal(raw, &entry); err == nil && json.Unmarshal(entry.Data, &data) == nil {
			if l.now().Sub(entry.FetchedAt) < l.ttl {
				return Result[T]{Data: data}
			}
			l.refreshAsync(key, func(ctx context.Context) (any, error) { return fetch(ctx) })
			return Result[T]{Data: data, Loading: true}
		}
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.store(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return Result[T]{Data: zero, Err: err}
	}
	return Result[T]{Data: v.(T)}
}

func (l *Loader) refreshAsync(key string, fetch func(ctx context.Context) (any, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err, _ := l.group.Do(key, func() (any, error) {
			data, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			l.store(ctx, key, data)
			return data, nil
		})
		if err != nil {
			l.logger.Warn("querycache: background refresh failed", "key", key, "error", err)
		}
	}()
}

func (l *Loader) store(ctx context.Context, key string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		l.logger.Warn("querycache: encode failed", "key", key, "error", err)
		return
	}
	entry, err := json.Marshal(stored{Data: raw, FetchedAt: l.now()})
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, key, entry, l.ttl+l.stale); err != nil {
		l.logger.Warn("querycache: write failed", "key", key, "error", err)
	}
}
