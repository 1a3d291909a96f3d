package embedder

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeHash(tt.text); got != tt.want {
				t.Errorf("ComputeHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(EmbeddingRequest{Text: "test text"}); err != nil {
		t.Errorf("ValidateRequest() error = %v, want nil", err)
	}
	if err := ValidateRequest(EmbeddingRequest{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("ValidateRequest() error = %v, want %v", err, ErrEmptyText)
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{
			name:    "valid batch",
			req:     BatchEmbeddingRequest{Texts: []string{"text1", "text2"}},
			wantErr: nil,
		},
		{
			name:    "empty batch",
			req:     BatchEmbeddingRequest{},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "batch with empty text",
			req:     BatchEmbeddingRequest{Texts: []string{"text1", "", "text3"}},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateBatchRequest() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBatchRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("basic operations", func(t *testing.T) {
		cache := NewMemoryCache(3)

		if _, ok, _ := cache.Get(ctx, "nonexistent"); ok {
			t.Error("Expected cache miss on empty cache")
		}

		emb := &Embedding{
			Vector:    []float32{1.0, 2.0, 3.0},
			Dimension: 3,
			Provider:  ProviderLocal,
			Model:     "test",
			Hash:      "hash1",
		}
		if err := cache.Set(ctx, "hash1", emb); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, ok, err := cache.Get(ctx, "hash1")
		if err != nil || !ok {
			t.Fatalf("Expected cache hit, got ok=%v err=%v", ok, err)
		}
		if got.Hash != "hash1" {
			t.Errorf("Got hash %s, want hash1", got.Hash)
		}
		if cache.Size() != 1 {
			t.Errorf("Cache size = %d, want 1", cache.Size())
		}
	})

	t.Run("returns copies", func(t *testing.T) {
		cache := NewMemoryCache(3)
		emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3}
		_ = cache.Set(ctx, "k", emb)

		emb.Vector[0] = 99
		got, _, _ := cache.Get(ctx, "k")
		if got.Vector[0] != 1 {
			t.Errorf("cached vector mutated through Set argument: %v", got.Vector)
		}

		got.Vector[1] = 99
		again, _, _ := cache.Get(ctx, "k")
		if again.Vector[1] != 2 {
			t.Errorf("cached vector mutated through Get result: %v", again.Vector)
		}
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewMemoryCache(2)
		_ = cache.Set(ctx, "hash1", &Embedding{Hash: "hash1"})
		_ = cache.Set(ctx, "hash2", &Embedding{Hash: "hash2"})
		_ = cache.Set(ctx, "hash3", &Embedding{Hash: "hash3"})

		if cache.Size() != 2 {
			t.Errorf("Cache size = %d, want 2", cache.Size())
		}
		if _, ok, _ := cache.Get(ctx, "hash1"); ok {
			t.Error("Expected least recently used entry to be evicted")
		}
		if _, ok, _ := cache.Get(ctx, "hash3"); !ok {
			t.Error("Expected new entry to be cached")
		}
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewMemoryCache(10)
		_ = cache.Set(ctx, "hash1", &Embedding{Hash: "hash1"})
		cache.Clear()

		if cache.Size() != 0 {
			t.Errorf("Cache size after clear = %d, want 0", cache.Size())
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewMemoryCache(100)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					hash := ComputeHash(strings.Repeat("x", id*100+j))
					_ = cache.Set(ctx, hash, &Embedding{Vector: []float32{float32(id), float32(j)}, Hash: hash})
					_, _, _ = cache.Get(ctx, hash)
				}
			}(i)
		}
		wg.Wait()

		if cache.Size() == 0 {
			t.Error("Cache is empty after concurrent operations")
		}
	})
}

func TestCacheKey(t *testing.T) {
	hash := ComputeHash("func main() {}")
	a := CacheKey(hash, "text-embedding-3-large", 1536)
	b := CacheKey(hash, "text-embedding-3-large", 256)
	c := CacheKey(hash, "text-embedding-3-small", 1536)

	if a == b || a == c || b == c {
		t.Errorf("cache keys must differ by model and dimension: %s %s %s", a, b, c)
	}
	if !strings.HasSuffix(a, hash) {
		t.Errorf("cache key %s does not end with content hash", a)
	}
}

func TestLocalProvider(t *testing.T) {
	provider, err := NewLocalProvider(Config{Dimensions: 64}, NewMemoryCache(10))
	if err != nil {
		t.Fatalf("NewLocalProvider() error = %v", err)
	}
	defer provider.Close()
	ctx := context.Background()

	t.Run("provider metadata", func(t *testing.T) {
		if provider.Provider() != ProviderLocal {
			t.Errorf("Provider() = %s, want %s", provider.Provider(), ProviderLocal)
		}
		if provider.Dimension() != 64 {
			t.Errorf("Dimension() = %d, want 64", provider.Dimension())
		}
		if provider.Model() != DefaultLocalModel {
			t.Errorf("Model() = %s, want %s", provider.Model(), DefaultLocalModel)
		}
	})

	t.Run("single embedding", func(t *testing.T) {
		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "test code snippet"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		if len(emb.Vector) != 64 {
			t.Errorf("Vector dimension = %d, want 64", len(emb.Vector))
		}
		if emb.Hash != ComputeHash("test code snippet") {
			t.Errorf("Hash = %s, want content hash", emb.Hash)
		}
	})

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
		b, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
		c, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "different"})

		for i := range a.Vector {
			if a.Vector[i] != b.Vector[i] {
				t.Fatalf("vectors differ at %d", i)
			}
		}
		equal := true
		for i := range a.Vector {
			if a.Vector[i] != c.Vector[i] {
				equal = false
				break
			}
		}
		if equal {
			t.Error("different texts produced identical vectors")
		}

		var sum float64
		for _, v := range a.Vector {
			sum += float64(v) * float64(v)
		}
		if math.Abs(sum-1.0) > 1e-4 {
			t.Errorf("vector norm squared = %f, want 1", sum)
		}
	})

	t.Run("batch embedding keeps order", func(t *testing.T) {
		texts := []string{"text1", "text2", "text3"}
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}
		if len(resp.Embeddings) != 3 {
			t.Fatalf("Got %d embeddings, want 3", len(resp.Embeddings))
		}
		for i, emb := range resp.Embeddings {
			if emb.Hash != ComputeHash(texts[i]) {
				t.Errorf("Embedding %d is out of order", i)
			}
		}
	})

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"ok", ""}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("GenerateBatch() error = %v, want %v", err, ErrInvalidInput)
		}
	})
}

func TestEmbedWithCache(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches only misses", func(t *testing.T) {
		cache := NewMemoryCache(10)
		var fetched [][]string
		fetch := func(_ context.Context, texts []string) ([][]float32, error) {
			fetched = append(fetched, texts)
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{float32(len(texts[i])), 0}
			}
			return out, nil
		}

		first, err := embedWithCache(ctx, cache, "p", "m", 2, []string{"a", "bb"}, fetch)
		if err != nil {
			t.Fatalf("embedWithCache() error = %v", err)
		}
		if first.CacheHits != 0 {
			t.Errorf("CacheHits = %d, want 0", first.CacheHits)
		}

		second, err := embedWithCache(ctx, cache, "p", "m", 2, []string{"bb", "ccc", "a"}, fetch)
		if err != nil {
			t.Fatalf("embedWithCache() error = %v", err)
		}
		if second.CacheHits != 2 {
			t.Errorf("CacheHits = %d, want 2", second.CacheHits)
		}
		if len(fetched) != 2 || len(fetched[1]) != 1 || fetched[1][0] != "ccc" {
			t.Errorf("unexpected fetches: %v", fetched)
		}
		want := []float32{2, 3, 1}
		for i, emb := range second.Embeddings {
			if emb.Vector[0] != want[i] {
				t.Errorf("embedding %d = %v, want first component %v", i, emb.Vector, want[i])
			}
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := embedWithCache(ctx, nil, "p", "m", 2, []string{"a"}, func(context.Context, []string) ([][]float32, error) {
			return nil, boom
		})
		if !errors.Is(err, ErrProviderFailed) || !errors.Is(err, boom) {
			t.Errorf("error = %v, want wrapped provider failure", err)
		}
	})

	t.Run("count mismatch", func(t *testing.T) {
		_, err := embedWithCache(ctx, nil, "p", "m", 2, []string{"a", "b"}, func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1, 2}}, nil
		})
		if !errors.Is(err, ErrProviderFailed) {
			t.Errorf("error = %v, want %v", err, ErrProviderFailed)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := embedWithCache(ctx, nil, "p", "m", 3, []string{"a"}, func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1, 2}}, nil
		})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("error = %v, want %v", err, ErrDimensionMismatch)
		}
	})
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeVector() = %v, want [0.6 0.8]", got)
	}

	zero := []float32{0, 0}
	if got := NormalizeVector(zero); got[0] != 0 || got[1] != 0 {
		t.Errorf("NormalizeVector(zero) = %v, want zero vector", got)
	}
}
