// Package embedder generates vector embeddings for batches of code chunks.
//
// Three providers implement the Embedder interface: OpenAI (openai-go), Gemini
// (google.golang.org/genai) and a deterministic local provider that needs no
// network access. Providers are selected explicitly by name; the config
// package performs auto-detection from available API keys.
//
// # Basic Usage
//
//	cache, err := embedder.NewCache(ctx, embedder.CacheConfig{Backend: "memory"})
//	emb, err := embedder.New(ctx, embedder.Config{
//	    Provider:   "openai",
//	    APIKey:     os.Getenv("OPENAI_API_KEY"),
//	    Model:      "text-embedding-3-large",
//	    Dimensions: 1536,
//	}, cache)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: batch.Texts(),
//	})
//
// # Failure Semantics
//
// A batch either yields one embedding per text, in request order, or an
// error. Providers never retry: the OpenAI client is built with retries
// disabled and Gemini sub-requests stop at the first failure.
//
// # Caching
//
// Embeddings are cached under CacheKey(hash, model, dimension), so changing
// the model or the requested dimensionality never serves stale vectors.
// MemoryCache is an LRU (golang-lru) that lives for one process; RedisCache
// shares entries across runs with an optional TTL. Cache errors degrade to
// misses and never fail a batch.
//
// # Thread Safety
//
// Providers and caches are safe for concurrent use.
package embedder
