package embedder

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"medium length text for hashing",
		"this is a longer text that represents a typical code chunk that might be embedded for a repository index",
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(text)
			}
		})
	}
}

func BenchmarkMemoryCache(b *testing.B) {
	ctx := context.Background()
	cache := NewMemoryCache(10000)
	emb := &Embedding{
		Vector:    make([]float32, 1536),
		Dimension: 1536,
		Provider:  ProviderOpenAI,
		Model:     "test",
	}

	for i := 0; i < 1000; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("hash-%d", i), emb)
	}

	b.Run("get-hit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = cache.Get(ctx, fmt.Sprintf("hash-%d", i%1000))
		}
	})

	b.Run("get-miss", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = cache.Get(ctx, fmt.Sprintf("nonexistent-%d", i))
		}
	})
}

func BenchmarkLocalProvider(b *testing.B) {
	provider, err := NewLocalProvider(Config{Dimensions: 1536}, nil)
	if err != nil {
		b.Fatalf("NewLocalProvider() error = %v", err)
	}
	ctx := context.Background()

	texts := make([]string, 64)
	for i := range texts {
		texts[i] = fmt.Sprintf("func Handler%d(w http.ResponseWriter, r *http.Request) {}", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts}); err != nil {
			b.Fatal(err)
		}
	}
}
