package embedder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantDB   int
		wantPass string
		wantTLS  bool
	}{
		{name: "plain address", url: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "redis url", url: "redis://cache:6380/2", wantAddr: "cache:6380", wantDB: 2},
		{name: "with password", url: "redis://:secret@cache:6379/0", wantAddr: "cache:6379", wantPass: "secret"},
		{name: "tls", url: "rediss://cache:6379", wantAddr: "cache:6379", wantTLS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRedisURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.DB)
			assert.Equal(t, tt.wantPass, opts.Password)
			assert.Equal(t, tt.wantTLS, opts.TLSConfig != nil)
		})
	}
}

func TestParseRedisURL_Invalid(t *testing.T) {
	_, err := ParseRedisURL("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseRedisURL("redis://cache:6379/notadb")
	assert.Error(t, err)
}

// TestRedisCache runs against a live server when REDIS_URL is set
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	cache, err := NewRedisCache(ctx, url, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	key := CacheKey(ComputeHash(t.Name()+time.Now().String()), "test-model", 3)

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	emb := &Embedding{Vector: []float32{0.25, 0.5, 0.75}, Dimension: 3, Provider: ProviderLocal, Model: "test-model", Hash: "h"}
	require.NoError(t, cache.Set(ctx, key, emb))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, emb, got)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", time.Minute)
	assert.Error(t, err)
}
