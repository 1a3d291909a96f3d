package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string // Optional API endpoint override
}

// CacheConfig selects an embedding cache backend
type CacheConfig struct {
	Backend  string // memory, redis or none
	Size     int
	RedisURL string
	TTL      time.Duration
}

// New creates an embedder for the configured provider
func New(ctx context.Context, cfg Config, cache Cache) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewCache creates the configured cache backend. A nil Cache with a nil
// error means caching is disabled.
func NewCache(ctx context.Context, cfg CacheConfig) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryCache(cfg.Size), nil
	case "redis":
		c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %s", ErrInvalidInput, cfg.Backend)
	}
}
