package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/repoingest/internal/batcher"
	"github.com/dshills/repoingest/internal/embedder"
	"github.com/dshills/repoingest/internal/storage"
	"github.com/dshills/repoingest/pkg/types"
)

// ErrCollectionMismatch is returned when a collection was built with a
// different embedding provider, model or dimension
var ErrCollectionMismatch = errors.New("collection embedding settings do not match")

// Sink embeds and persists one batch. A call either stores the whole batch
// or returns an error.
type Sink interface {
	Dispatch(ctx context.Context, batch *batcher.Batch) error
}

// RunObserver is implemented by sinks that track a whole run. BeginRun is
// called before enumeration, ObserveFile once per file read, and EndRun
// after the last batch was dispatched successfully.
type RunObserver interface {
	BeginRun(ctx context.Context, root string) error
	ObserveFile(file types.SourceFile)
	EndRun(ctx context.Context, summary *Summary) error
}

// StoreSink embeds batches with an Embedder and writes them to Storage
type StoreSink struct {
	store      storage.Storage
	embedder   embedder.Embedder
	name       string
	logger     *slog.Logger
	collection *storage.Collection

	// Per run state
	files   map[string]fileInfo // observed files by relative path
	fileIDs map[string]int64    // files committed during this run
}

type fileInfo struct {
	hash [32]byte
	size int64
}

// NewStoreSink creates a sink writing into the named collection
func NewStoreSink(store storage.Storage, emb embedder.Embedder, collection string, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{
		store:    store,
		embedder: emb,
		name:     collection,
		logger:   logger,
	}
}

// Collection returns the collection of the current or last run
func (s *StoreSink) Collection() *storage.Collection {
	return s.collection
}

// BeginRun loads or creates the collection and starts a new generation
func (s *StoreSink) BeginRun(ctx context.Context, root string) error {
	existing, err := s.store.GetCollection(ctx, s.name)
	switch {
	case err == nil:
		if existing.Provider != s.embedder.Provider() ||
			existing.Model != s.embedder.Model() ||
			existing.Dimension != s.embedder.Dimension() {
			return fmt.Errorf("%w: collection %q uses %s/%s (%d), embedder is %s/%s (%d)",
				ErrCollectionMismatch, s.name,
				existing.Provider, existing.Model, existing.Dimension,
				s.embedder.Provider(), s.embedder.Model(), s.embedder.Dimension())
		}
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to load collection: %w", err)
	}

	collection := &storage.Collection{
		Name:      s.name,
		RootPath:  root,
		Provider:  s.embedder.Provider(),
		Model:     s.embedder.Model(),
		Dimension: s.embedder.Dimension(),
	}
	if err := s.store.UpsertCollection(ctx, collection); err != nil {
		return err
	}
	if existing != nil {
		collection.TotalFiles = existing.TotalFiles
		collection.TotalChunks = existing.TotalChunks
		collection.LastIndexedAt = existing.LastIndexedAt
	}

	collection.Generation++
	if err := s.store.UpdateCollection(ctx, collection); err != nil {
		return err
	}

	s.collection = collection
	s.files = make(map[string]fileInfo)
	s.fileIDs = make(map[string]int64)
	return nil
}

// ObserveFile records the content hash of a file read during the run
func (s *StoreSink) ObserveFile(file types.SourceFile) {
	if s.files == nil {
		s.files = make(map[string]fileInfo)
	}
	s.files[file.Path] = fileInfo{
		hash: sha256.Sum256(file.Content),
		size: int64(len(file.Content)),
	}
}

// Dispatch embeds the batch and stores its files, chunks and embeddings in
// one transaction
func (s *StoreSink) Dispatch(ctx context.Context, batch *batcher.Batch) error {
	if s.collection == nil {
		return fmt.Errorf("dispatch before BeginRun")
	}

	resp, err := s.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: batch.Texts()})
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(resp.Embeddings) != batch.Len() {
		return fmt.Errorf("%w: got %d embeddings for %d chunks",
			embedder.ErrProviderFailed, len(resp.Embeddings), batch.Len())
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := make(map[string]int64)
	for i, chunk := range batch.Chunks {
		fileID, err := s.fileID(ctx, tx, chunk.FilePath, written)
		if err != nil {
			return err
		}

		row := &storage.Chunk{
			FileID:      fileID,
			StartLine:   chunk.StartLine,
			SplitIndex:  chunk.SplitIndex(),
			Content:     chunk.Text,
			ContentHash: chunk.ContentHash(),
			Generation:  s.collection.Generation,
		}
		if i < len(batch.Counts) {
			row.TokenCount = batch.Counts[i]
		}
		if err := tx.UpsertChunk(ctx, row); err != nil {
			return err
		}

		emb := resp.Embeddings[i]
		if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   row.ID,
			Vector:    storage.SerializeVector(emb.Vector),
			Dimension: emb.Dimension,
			Provider:  resp.Provider,
			Model:     resp.Model,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	for path, id := range written {
		s.fileIDs[path] = id
	}
	s.logger.Debug("batch stored",
		"chunks", batch.Len(),
		"tokens", batch.Tokens,
		"cache_hits", resp.CacheHits)
	return nil
}

// fileID returns the ID of the file row for path, upserting it the first
// time the path is seen in this run
func (s *StoreSink) fileID(ctx context.Context, tx storage.Tx, path string, written map[string]int64) (int64, error) {
	if id, ok := s.fileIDs[path]; ok {
		return id, nil
	}
	if id, ok := written[path]; ok {
		return id, nil
	}

	info := s.files[path]
	file := &storage.File{
		CollectionID: s.collection.ID,
		FilePath:     path,
		ContentHash:  info.hash,
		SizeBytes:    info.size,
		Generation:   s.collection.Generation,
	}
	if err := tx.UpsertFile(ctx, file); err != nil {
		return 0, err
	}
	written[path] = file.ID
	return file.ID, nil
}

// EndRun prunes rows the run did not write and records collection totals
func (s *StoreSink) EndRun(ctx context.Context, summary *Summary) error {
	if s.collection == nil {
		return nil
	}

	pruned, err := s.store.PruneStale(ctx, s.collection.ID, s.collection.Generation)
	if err != nil {
		return err
	}
	if pruned.FilesDeleted > 0 || pruned.ChunksDeleted > 0 {
		s.logger.Info("pruned stale entries",
			"files", pruned.FilesDeleted,
			"chunks", pruned.ChunksDeleted)
	}

	status, err := s.store.GetStatus(ctx, s.collection.ID)
	if err != nil {
		return err
	}

	s.collection.TotalFiles = status.FilesCount
	s.collection.TotalChunks = status.ChunksCount
	s.collection.LastIndexedAt = time.Now()
	return s.store.UpdateCollection(ctx, s.collection)
}
