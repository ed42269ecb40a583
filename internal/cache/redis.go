package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/metrics"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores each entry as a hash {v: value, abs: absolute deadline in unix ms}.
// The key TTL is the sliding window, re-armed on every hit but never past abs. Redis
// failures degrade to calling the loader; they are logged, not returned.
//
// Every key belongs to a group named by its text up to the first ':'. Each group has a
// generation counter that invalidation bumps before deleting, and a fill is only stored
// if the generation it read before loading is still current. A loader that raced an
// invalidation therefore never writes its stale result back.
type RedisCache struct {
	client    *redis.Client
	namespace string
	log       *logger.Logger
	now       func() time.Time
}

func NewRedisCache(client *redis.Client, namespace string, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: namespace,
		log:       log,
		now:       time.Now,
	}
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// errStaleFill aborts a store whose generation moved while the loader ran.
var errStaleFill = errors.New("cache generation changed during fill")

func (c *RedisCache) key(k string) string { return c.namespace + k }

func (c *RedisCache) genRoot() string { return c.namespace + "~gen" }

// genKeys lists the generation counters guarding key: the global one, then the key's group.
func (c *RedisCache) genKeys(key string) []string {
	keys := []string{c.genRoot()}
	if g := group(key); g != "" {
		keys = append(keys, c.genRoot()+":"+g)
	}
	return keys
}

func group(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i+1]
	}
	return ""
}

func (c *RedisCache) GetOrCompute(ctx context.Context, key string, exp Expiration, load Loader) ([]byte, error) {
	rk := c.key(key)
	gens := c.genKeys(key)

	v, ok, err := c.lookup(ctx, rk, exp)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		c.log.Warn("CACHE", fmt.Sprintf("Redis lookup for %s failed: %v", rk, err))
	case ok:
		metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
		return v, nil
	default:
		metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
	}

	seen, genErr := c.generation(ctx, c.client, gens)
	if genErr != nil {
		c.log.Warn("CACHE", fmt.Sprintf("Redis generation read for %s failed: %v", rk, genErr))
	}

	val, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return val, nil
	}
	switch err := c.store(ctx, rk, gens, seen, val, exp); {
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("CACHE", fmt.Sprintf("Dropped stale fill for %s", rk))
	case err != nil:
		c.log.Warn("CACHE", fmt.Sprintf("Redis store for %s failed: %v", rk, err))
	}
	return val, nil
}

// generation reads the counters in gens as one comparable token. Missing counters read as 0.
func (c *RedisCache) generation(ctx context.Context, r mgetter, gens []string) (string, error) {
	vals, err := r.MGet(ctx, gens...).Result()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = "0"
		if s, ok := v.(string); ok {
			parts[i] = s
		}
	}
	return strings.Join(parts, "/"), nil
}

func (c *RedisCache) bump(ctx context.Context, gen string) error {
	return c.client.Incr(ctx, gen).Err()
}

func (c *RedisCache) lookup(ctx context.Context, rk string, exp Expiration) ([]byte, bool, error) {
	fields, err := c.client.HMGet(ctx, rk, "v", "abs").Result()
	if err != nil {
		return nil, false, err
	}
	raw, ok := fields[0].(string)
	if !ok {
		return nil, false, nil
	}

	ttl := exp.Sliding
	if absRaw, ok := fields[1].(string); ok && absRaw != "0" {
		absMs, err := strconv.ParseInt(absRaw, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("bad abs field: %w", err)
		}
		remaining := time.UnixMilli(absMs).Sub(c.now())
		if remaining <= 0 {
			c.client.Del(ctx, rk)
			return nil, false, nil
		}
		if ttl <= 0 || remaining < ttl {
			ttl = remaining
		}
	}
	if exp.Sliding > 0 {
		if err := c.client.PExpire(ctx, rk, ttl).Err(); err != nil {
			return nil, false, err
		}
	}
	return []byte(raw), true, nil
}

// store writes val under rk inside WATCH/MULTI on the generation counters, so a bump
// between the check and EXEC fails the transaction.
func (c *RedisCache) store(ctx context.Context, rk string, gens []string, seen string, val []byte, exp Expiration) error {
	var absMs int64
	ttl := exp.Sliding
	if exp.Absolute > 0 {
		absMs = c.now().Add(exp.Absolute).UnixMilli()
		if ttl <= 0 || exp.Absolute < ttl {
			ttl = exp.Absolute
		}
	}

	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := c.generation(ctx, tx, gens)
		if err != nil {
			return err
		}
		if cur != seen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rk)
			pipe.HSet(ctx, rk, "v", val, "abs", absMs)
			if ttl > 0 {
				pipe.PExpire(ctx, rk, ttl)
			}
			return nil
		})
		return err
	}, gens...)
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rks := make([]string, len(keys))
	bumped := make(map[string]bool)
	for i, k := range keys {
		rks[i] = c.key(k)
		gens := c.genKeys(k)
		gen := gens[len(gens)-1]
		if bumped[gen] {
			continue
		}
		bumped[gen] = true
		if err := c.bump(ctx, gen); err != nil {
			return fmt.Errorf("bump %s: %w", gen, err)
		}
	}
	metrics.CacheInvalidations.WithLabelValues("redis", "key").Inc()
	return c.client.Del(ctx, rks...).Err()
}

// InvalidatePrefix bumps the prefix's generation, then walks the keyspace with SCAN and
// deletes matches in batches. A prefix without ':' spans groups and bumps the global
// generation instead.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	gens := c.genKeys(prefix)
	gen := gens[len(gens)-1]
	if err := c.bump(ctx, gen); err != nil {
		return fmt.Errorf("bump %s: %w", gen, err)
	}

	match := escapeGlob(c.key(prefix)) + "*"
	var cursor uint64
	for {
		found, next, err := c.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", match, err)
		}
		keys := found[:0]
		for _, k := range found {
			if !strings.HasPrefix(k, c.genRoot()) {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %d keys: %w", len(keys), err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	metrics.CacheInvalidations.WithLabelValues("redis", "prefix").Inc()
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
