package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// JSONCache stores JSON documents in Redis under versioned keys. Each scope
// carries its own version counter, so bumping one scope orphans only the
// keys built for it.
type JSONCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// Option customises a JSONCache.
type Option func(*JSONCache)

// WithLogger sets the logger used for failed cache writes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *JSONCache) { c.logger = logger }
}

// NewJSONCache instantiates the cache helper. A nil client disables caching
// and every fetch falls through to the loader.
func NewJSONCache(client *redis.Client, prefix string, ttl time.Duration, opts ...Option) *JSONCache {
	c := &JSONCache{client: client, prefix: prefix, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JSONCache) versionKey(scope string) string {
	return c.prefix + ":version:" + scope
}

// Version returns the current version of scope, initialising when missing.
func (c *JSONCache) Version(ctx context.Context, scope string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := c.versionKey(scope)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key for parts within scope at its current version.
func (c *JSONCache) BuildKey(ctx context.Context, scope string, parts ...string) (string, error) {
	if c == nil {
		return strings.Join(append([]string{scope}, parts...), ":"), nil
	}
	joined := strings.Join(append([]string{c.prefix, scope}, parts...), ":")
	if c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// Concurrent misses for the same key share one loader call, which runs
// detached from the first caller's cancellation. A failed cache write is
// logged and the loaded value is still returned.
func (c *JSONCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	loadCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(key, func() (any, error) {
		value, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates every key of scope by incrementing its version. The
// version is initialised first so a bump always moves past 1.
func (c *JSONCache) Bump(ctx context.Context, scope string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if _, err := c.Version(ctx, scope); err != nil {
		return err
	}
	return c.client.Incr(ctx, c.versionKey(scope)).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
