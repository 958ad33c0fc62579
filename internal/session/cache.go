package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sunlease/portal/internal/identity"
)

// ErrNoSnapshot means nothing is cached for the session.
var ErrNoSnapshot = errors.New("session: no snapshot")

// Cache persists the bearer token and a serialized identity per session so a
// restarted process can paint the portal before re-validating.
type Cache interface {
	// Load returns the token and the raw identity bytes. The identity may be
	// empty or corrupt; callers decode it themselves.
	Load(ctx context.Context, key string) (token string, rawIdentity []byte, err error)
	Save(ctx context.Context, key, token string, id *identity.Identity) error
	Clear(ctx context.Context, key string) error
}

// RedisCache stores snapshots in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func tokenKey(key string) string    { return "portal:session:" + key + ":token" }
func identityKey(key string) string { return "portal:session:" + key + ":identity" }

// Load reads both parts of the snapshot.
func (c *RedisCache) Load(ctx context.Context, key string) (string, []byte, error) {
	values, err := c.client.MGet(ctx, tokenKey(key), identityKey(key)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("session: cache load: %w", err)
	}
	token, _ := values[0].(string)
	if token == "" {
		return "", nil, ErrNoSnapshot
	}
	raw, _ := values[1].(string)
	return token, []byte(raw), nil
}

// Save writes token and identity together.
func (c *RedisCache) Save(ctx context.Context, key, token string, id *identity.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, tokenKey(key), token, c.ttl)
	pipe.Set(ctx, identityKey(key), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: cache save: %w", err)
	}
	return nil
}

// Clear removes both parts.
func (c *RedisCache) Clear(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, tokenKey(key), identityKey(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: cache clear: %w", err)
	}
	return nil
}

// MemoryCache keeps snapshots in process memory.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	token string
	raw   []byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Load(ctx context.Context, key string) (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.token == "" {
		return "", nil, ErrNoSnapshot
	}
	return e.token, append([]byte(nil), e.raw...), nil
}

func (c *MemoryCache) Save(ctx context.Context, key, token string, id *identity.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{token: token, raw: data}
	return nil
}

// Put stores raw bytes as-is.
func (c *MemoryCache) Put(key, token string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{token: token, raw: raw}
}

func (c *MemoryCache) Clear(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
