package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores embeddings by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*Embedding, bool, error)
	Set(ctx context.Context, key string, emb *Embedding) error
	Close() error
}

// CacheKey builds the cache key for a text hash under a model and dimension.
// The same text embedded by another model or at another dimension is a
// different entry.
func CacheKey(hash, model string, dim int) string {
	return model + ":" + strconv.Itoa(dim) + ":" + hash
}

// copyEmbedding returns a deep copy so callers cannot mutate cached vectors
func copyEmbedding(emb *Embedding) *Embedding {
	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}
}

// MemoryCache provides in-memory LRU caching of embeddings
type MemoryCache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewMemoryCache creates a new embedding cache with LRU eviction
func NewMemoryCache(maxLen int) *MemoryCache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &MemoryCache{
		cache: cache,
	}
}

// Get retrieves a deep copy of an embedding from cache
func (c *MemoryCache) Get(_ context.Context, key string) (*Embedding, bool, error) {
	emb, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return copyEmbedding(emb), true, nil
}

// Set stores a copy of an embedding with automatic LRU eviction
func (c *MemoryCache) Set(_ context.Context, key string, emb *Embedding) error {
	c.cache.Add(key, copyEmbedding(emb))
	return nil
}

// Size returns the current cache size
func (c *MemoryCache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *MemoryCache) Clear() {
	c.cache.Purge()
}

func (c *MemoryCache) Close() error {
	c.cache.Purge()
	return nil
}

// RedisCache shares embeddings between runs and machines through Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// redisEntry is the JSON document stored per key
type redisEntry struct {
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Hash      string    `json:"hash"`
}

// NewRedisCache connects to Redis and verifies the connection. A zero ttl
// keeps entries until evicted by Redis.
func NewRedisCache(ctx context.Context, connectionString string, ttl time.Duration) (*RedisCache, error) {
	opts, err := ParseRedisURL(connectionString)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, ttl), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "repoingest:embedding:",
		ttl:    ttl,
	}
}

// ParseRedisURL accepts redis:// and rediss:// URLs or a plain host:port
func ParseRedisURL(connectionString string) (*redis.Options, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("%w: empty Redis address", ErrInvalidInput)
	}
	if hasScheme(connectionString) {
		opts, err := redis.ParseURL(connectionString)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: connectionString}, nil
}

func hasScheme(s string) bool {
	return strings.HasPrefix(s, "redis://") || strings.HasPrefix(s, "rediss://") || strings.HasPrefix(s, "unix://")
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Embedding, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding from Redis: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return &Embedding{
		Vector:    entry.Vector,
		Dimension: entry.Dimension,
		Provider:  entry.Provider,
		Model:     entry.Model,
		Hash:      entry.Hash,
	}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, emb *Embedding) error {
	data, err := json.Marshal(redisEntry{
		Vector:    emb.Vector,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding in Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
