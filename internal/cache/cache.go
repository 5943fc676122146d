package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/glotchimo/afkguard/internal/models"
	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"
)

type Backend interface {
	FindGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	UpsertGuildConfig(ctx context.Context, u models.GuildConfigUpdate) (*models.GuildConfig, error)
	DeleteGuildConfig(ctx context.Context, guildID string) error
}

// Cache is a read-through cache over a Backend. Redis is the primary tier and
// an in-process map serves while the breaker holds Redis open. Absent rows are
// never cached, and writes invalidate instead of repopulating.
//
// Every invalidation bumps the key's generation, and a fill is dropped when
// the generation moved while the row was being loaded. Invalidations that
// could not reach Redis stay pending and are flushed before Redis serves the
// key again.
type Cache struct {
	c  *redis.Client
	l  *slog.Logger
	d  Backend
	cb *CircuitBreaker
	fb *FallbackCache

	mu      sync.Mutex
	gens    map[string]uint64
	pending map[string]struct{}

	ttl time.Duration
}

func NewCache(url string, ttl time.Duration, l *slog.Logger, d Backend) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}
	opt.MaxRetries = -1

	return newCache(redis.NewClient(opt), ttl, l, d), nil
}

func newCache(c *redis.Client, ttl time.Duration, l *slog.Logger, d Backend) *Cache {
	return &Cache{
		c:   c,
		l:   l,
		d:   d,
		cb:  NewCircuitBreaker(5, 30*time.Second),
		fb:  NewFallbackCache(1024),
		ttl: ttl,

		gens:    make(map[string]uint64),
		pending: make(map[string]struct{}),
	}
}

func (c *Cache) Close() error {
	c.fb.Close()
	return c.c.Close()
}

func key(guildID string) string {
	return "guildconfig:" + guildID
}

func (c *Cache) FindGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	k := key(guildID)
	gen := c.generation(k)

	if data, ok := c.get(ctx, k); ok {
		var g models.GuildConfig
		if err := json.Unmarshal(data, &g); err == nil {
			return &g, nil
		}
		c.l.Warn("discarding undecodable cache entry", "key", k)
	}

	g, err := c.d.FindGuildConfig(ctx, guildID)
	if err != nil || g == nil {
		return g, err
	}

	c.set(ctx, k, g, gen)

	return g, nil
}

func (c *Cache) UpsertGuildConfig(ctx context.Context, u models.GuildConfigUpdate) (*models.GuildConfig, error) {
	g, err := c.d.UpsertGuildConfig(ctx, u)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, key(u.GuildID))

	return g, nil
}

func (c *Cache) DeleteGuildConfig(ctx context.Context, guildID string) error {
	if err := c.d.DeleteGuildConfig(ctx, guildID); err != nil {
		return err
	}

	c.invalidate(ctx, key(guildID))

	return nil
}

func (c *Cache) generation(k string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[k]
}

func (c *Cache) get(ctx context.Context, k string) ([]byte, bool) {
	if c.cb.Allow() && c.flush(ctx, k) {
		data, err := c.c.Get(ctx, k).Bytes()
		switch {
		case err == nil:
			c.cb.RecordSuccess()
			return data, true
		case errors.Is(err, redis.Nil):
			c.cb.RecordSuccess()
			return nil, false
		default:
			c.fail("get", k, err)
		}
	}

	return c.fb.Get(k)
}

// flush deletes k from Redis if an earlier invalidation of it never landed.
// It reports whether Redis is safe to read for k.
func (c *Cache) flush(ctx context.Context, k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[k]; !ok {
		return true
	}

	if err := c.c.Del(ctx, k).Err(); err != nil {
		c.fail("del", k, err)
		return false
	}
	delete(c.pending, k)
	c.cb.RecordSuccess()

	return true
}

// set stores g under k unless k was invalidated after gen was read.
func (c *Cache) set(ctx context.Context, k string, g *models.GuildConfig, gen uint64) {
	data, err := json.Marshal(g)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[k] != gen {
		return
	}

	c.fb.Set(k, data, c.ttl)

	if !c.cb.Allow() {
		return
	}

	if err := c.c.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.fail("set", k, err)
		return
	}
	delete(c.pending, k)
	c.cb.RecordSuccess()
}

func (c *Cache) invalidate(ctx context.Context, k string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[k]++
	c.fb.Delete(k)

	if !c.cb.Allow() {
		c.pending[k] = struct{}{}
		return
	}

	if err := c.c.Del(ctx, k).Err(); err != nil {
		c.pending[k] = struct{}{}
		c.fail("del", k, err)
		return
	}
	delete(c.pending, k)
	c.cb.RecordSuccess()
}

func (c *Cache) fail(op, k string, err error) {
	c.cb.RecordFailure()
	c.l.Warn("cache operation failed", "op", op, "key", k, "error", err, "breaker", c.cb.State().String())
}
