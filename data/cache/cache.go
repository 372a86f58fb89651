package cache

import (
	"context"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache is the byte-value TTL store behind the collector and the currency
// service. List operations follow Redis semantics: LPush prepends, indices
// may be negative, stop is inclusive.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
	Delete(key string)
	LPush(key string, val []byte)
	LRange(key string, start, stop int64) [][]byte
	LTrim(key string, start, stop int64)
}

type memory struct {
	mu    sync.Mutex
	m     map[string]entry
	lists map[string][][]byte
}

type entry struct {
	b   []byte
	exp time.Time
}

func New() Cache {
	return &memory{
		m:     make(map[string]entry),
		lists: make(map[string][][]byte),
	}
}

func (c *memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

func (c *memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	delete(c.lists, key)
}

func (c *memory) LPush(key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), val...)
	c.lists[key] = append([][]byte{cp}, c.lists[key]...)
}

func (c *memory) LRange(key string, start, stop int64) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[key]
	lo, hi, ok := sliceBounds(start, stop, int64(len(list)))
	if !ok {
		return nil
	}
	out := make([][]byte, 0, hi-lo+1)
	for _, v := range list[lo : hi+1] {
		out = append(out, append([]byte(nil), v...))
	}
	return out
}

func (c *memory) LTrim(key string, start, stop int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[key]
	lo, hi, ok := sliceBounds(start, stop, int64(len(list)))
	if !ok {
		delete(c.lists, key)
		return
	}
	c.lists[key] = list[lo : hi+1]
}

// sliceBounds resolves Redis-style inclusive range indices against a list of
// length n. ok is false when the range is empty.
func sliceBounds(start, stop, n int64) (int64, int64, bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// Redis adapter used when REDIS_ADDR is set
type redisCache struct{ r *redis.Client }

func NewAuto() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return NewRedis(addr)
	}
	return New()
}

func NewRedis(addr string) Cache {
	return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := opCtx()
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := opCtx()
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}

func (r *redisCache) Delete(key string) {
	ctx, cancel := opCtx()
	defer cancel()
	_ = r.r.Del(ctx, key).Err()
}

func (r *redisCache) LPush(key string, val []byte) {
	ctx, cancel := opCtx()
	defer cancel()
	_ = r.r.LPush(ctx, key, val).Err()
}

func (r *redisCache) LRange(key string, start, stop int64) [][]byte {
	ctx, cancel := opCtx()
	defer cancel()
	vals, err := r.r.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out
}

func (r *redisCache) LTrim(key string, start, stop int64) {
	ctx, cancel := opCtx()
	defer cancel()
	_ = r.r.LTrim(ctx, key, start, stop).Err()
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 500*time.Millisecond)
}
