package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"

	DefaultGeminiModel = "gemini-embedding-001"

	// GeminiMaxBatchSize is the per-request limit of batchEmbedContents
	GeminiMaxBatchSize = 100

	geminiTaskType = "RETRIEVAL_DOCUMENT"
)

// GeminiProvider implements Embedder using the Gemini API
type GeminiProvider struct {
	client     *genai.Client
	model      string
	dimensions int
	cache      Cache

	fetch fetchFunc
}

// NewGeminiProvider creates a new Gemini embedder
func NewGeminiProvider(ctx context.Context, cfg Config, cache Cache) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key not set", ErrNoProviderEnabled)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", ErrInvalidInput)
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiProvider{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      cache,
	}
	g.fetch = g.callAPI
	return g, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateOne(ctx, g, req)
}

// GenerateBatch embeds the request in sub-requests of at most
// GeminiMaxBatchSize texts. Any failing sub-request fails the whole batch.
func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	return embedWithCache(ctx, g.cache, ProviderGemini, g.model, g.dimensions, req.Texts, g.fetchAll)
}

func (g *GeminiProvider) fetchAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += GeminiMaxBatchSize {
		end := min(start+GeminiMaxBatchSize, len(texts))
		part, err := g.fetch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("texts %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, part...)
	}
	return vectors, nil
}

func (g *GeminiProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dim := int32(g.dimensions)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             geminiTaskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dimensions
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}
