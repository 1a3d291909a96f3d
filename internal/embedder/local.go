package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

const (
	ProviderLocal = "local"

	DefaultLocalModel = "local-hash"
)

// LocalProvider produces deterministic pseudo-embeddings from a hash of the
// text. It needs no network access and is used for offline runs and tests;
// its vectors carry no semantic meaning.
type LocalProvider struct {
	model      string
	dimensions int
	cache      Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cfg Config, cache Cache) (*LocalProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	return &LocalProvider{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateOne(ctx, l, req)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	return embedWithCache(ctx, l.cache, ProviderLocal, l.model, l.dimensions, req.Texts, l.hashVectors)
}

func (l *LocalProvider) hashVectors(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = hashVector(text, l.dimensions)
	}
	return vectors, nil
}

// hashVector expands SHA-256(text || counter) into a unit vector of dim
// components in [-1, 1) before normalization
func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	var counter [4]byte
	for block := 0; block*sha256.Size < dim; block++ {
		binary.BigEndian.PutUint32(counter[:], uint32(block))
		h := sha256.New()
		h.Write([]byte(text))
		h.Write(counter[:])
		sum := h.Sum(nil)
		for j, b := range sum {
			idx := block*sha256.Size + j
			if idx >= dim {
				break
			}
			v[idx] = float32(b)/128.0 - 1.0
		}
	}
	return NormalizeVector(v)
}

func (l *LocalProvider) Dimension() int {
	return l.dimensions
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
