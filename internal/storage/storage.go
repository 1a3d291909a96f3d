package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting ingested chunks and their
// embeddings
type Storage interface {
	// Collection operations
	UpsertCollection(ctx context.Context, collection *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	UpdateCollection(ctx context.Context, collection *Collection) error
	ListCollections(ctx context.Context) ([]*Collection, error)

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, collectionID int64, filePath string) (*File, error)
	ListFiles(ctx context.Context, collectionID int64) ([]*File, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	ListChunks(ctx context.Context, collectionID int64) ([]*Chunk, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error

	// PruneStale deletes the files and chunks of a collection that were not
	// written during the given generation
	PruneStale(ctx context.Context, collectionID int64, generation int64) (*PruneResult, error)

	// Status operations
	GetStatus(ctx context.Context, collectionID int64) (*CollectionStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Collection is a named set of embedded chunks, bound to one embedding
// model and dimension
type Collection struct {
	ID            int64
	Name          string
	RootPath      string
	Provider      string
	Model         string
	Dimension     int
	Generation    int64 // Incremented at the start of every run
	TotalFiles    int
	TotalChunks   int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents an ingested source file
type File struct {
	ID            int64
	CollectionID  int64
	FilePath      string // Relative to the repository root
	ContentHash   [32]byte
	SizeBytes     int64
	Generation    int64
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NoSplit is the SplitIndex of a chunk that was never subdivided
const NoSplit = -1

// Chunk is a persisted chunk. A chunk is identified by its file, start line
// and split index.
type Chunk struct {
	ID          int64
	FileID      int64
	FilePath    string // Populated by reads
	StartLine   int
	SplitIndex  int // NoSplit for unsplit chunks
	Content     string
	ContentHash [32]byte
	TokenCount  int
	Generation  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// PruneResult counts the rows removed by PruneStale
type PruneResult struct {
	FilesDeleted  int
	ChunksDeleted int
}

// CollectionStatus contains statistics about a collection
type CollectionStatus struct {
	Collection      *Collection
	FilesCount      int
	ChunksCount     int
	SplitChunks     int
	EmbeddingsCount int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	EmbeddingsComplete  bool // Every chunk has an embedding
}
