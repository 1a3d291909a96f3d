package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createCollection(t *testing.T, s Storage, name string) *Collection {
	t.Helper()
	c := &Collection{
		Name:      name,
		RootPath:  "/repo",
		Provider:  "local",
		Model:     "local-hash",
		Dimension: 4,
	}
	require.NoError(t, s.UpsertCollection(context.Background(), c))
	return c
}

func createFile(t *testing.T, s Storage, collectionID int64, path string, generation int64) *File {
	t.Helper()
	f := &File{
		CollectionID: collectionID,
		FilePath:     path,
		ContentHash:  sha256.Sum256([]byte(path)),
		SizeBytes:    10,
		Generation:   generation,
	}
	require.NoError(t, s.UpsertFile(context.Background(), f))
	return f
}

func createChunk(t *testing.T, s Storage, fileID int64, line, split int, content string, generation int64) *Chunk {
	t.Helper()
	c := &Chunk{
		FileID:      fileID,
		StartLine:   line,
		SplitIndex:  split,
		Content:     content,
		ContentHash: sha256.Sum256([]byte(content)),
		TokenCount:  len(content) / 4,
		Generation:  generation,
	}
	require.NoError(t, s.UpsertChunk(context.Background(), c))
	return c
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	var version string
	err := storage.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestNewSQLiteStorage_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	createCollection(t, store, "files")
	require.NoError(t, store.Close())

	// Reopening runs migrations again and keeps the data
	store, err = NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	c, err := store.GetCollection(context.Background(), "files")
	require.NoError(t, err)
	assert.Equal(t, "files", c.Name)
}

func TestDataSourceName(t *testing.T) {
	assert.Equal(t, ":memory:", dataSourceName(":memory:"))

	dsn := dataSourceName("/tmp/index.db")
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/index.db?"))
	assert.Contains(t, dsn, "busy_timeout")
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	var count int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestUpsertCollection(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	c := createCollection(t, storage, "code_index")
	assert.Greater(t, c.ID, int64(0))
	assert.Equal(t, int64(0), c.Generation)

	// Upserting again keeps the ID and the generation
	c.Generation = 3
	require.NoError(t, storage.UpdateCollection(ctx, c))

	again := &Collection{Name: "code_index", RootPath: "/other", Provider: "local", Model: "local-hash", Dimension: 4}
	require.NoError(t, storage.UpsertCollection(ctx, again))
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, int64(3), again.Generation)

	got, err := storage.GetCollection(ctx, "code_index")
	require.NoError(t, err)
	assert.Equal(t, "/other", got.RootPath)
	assert.True(t, got.LastIndexedAt.IsZero())
}

func TestGetCollection_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	_, err := storage.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCollection_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.UpdateCollection(context.Background(), &Collection{ID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCollections(t *testing.T) {
	storage := setupTestDB(t)
	createCollection(t, storage, "b")
	createCollection(t, storage, "a")

	collections, err := storage.ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "a", collections[0].Name)
	assert.Equal(t, "b", collections[1].Name)
}

func TestUpsertFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")

	f := createFile(t, storage, c.ID, "main.go", 1)
	assert.Greater(t, f.ID, int64(0))

	// Same path in the same collection updates in place
	f2 := createFile(t, storage, c.ID, "main.go", 2)
	assert.Equal(t, f.ID, f2.ID)

	got, err := storage.GetFile(ctx, c.ID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Generation)
	assert.Equal(t, sha256.Sum256([]byte("main.go")), got.ContentHash)

	_, err = storage.GetFile(ctx, c.ID, "missing.go")
	assert.ErrorIs(t, err, ErrNotFound)

	// Same path in another collection is a separate file
	other := createCollection(t, storage, "other")
	f3 := createFile(t, storage, other.ID, "main.go", 1)
	assert.NotEqual(t, f.ID, f3.ID)

	files, err := storage.ListFiles(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestUpsertChunk_Identity(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")
	f := createFile(t, storage, c.ID, "main.go", 1)

	first := createChunk(t, storage, f.ID, 5, NoSplit, "func a() {}", 1)
	again := createChunk(t, storage, f.ID, 5, NoSplit, "func a() { return }", 2)
	assert.Equal(t, first.ID, again.ID)

	// Split pieces share a start line but differ by split index
	p0 := createChunk(t, storage, f.ID, 9, 0, "piece zero", 2)
	p1 := createChunk(t, storage, f.ID, 9, 1, "piece one", 2)
	assert.NotEqual(t, p0.ID, p1.ID)

	chunks, err := storage.ListChunks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	got := chunks[0]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "func a() { return }", got.Content)
	assert.Equal(t, "main.go", got.FilePath)
	assert.Equal(t, 5, got.StartLine)
	assert.Equal(t, NoSplit, got.SplitIndex)
	assert.Equal(t, int64(2), got.Generation)

	assert.Equal(t, 0, chunks[1].SplitIndex)
	assert.Equal(t, 1, chunks[2].SplitIndex)
}

func TestUpsertEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")
	f := createFile(t, storage, c.ID, "main.go", 1)
	chunk := createChunk(t, storage, f.ID, 1, NoSplit, "package main", 1)

	vector := []float32{0.1, 0.2, 0.3, 0.4}
	e := &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector(vector),
		Dimension: 4,
		Provider:  "local",
		Model:     "local-hash",
	}
	require.NoError(t, storage.UpsertEmbedding(ctx, e))
	firstID := e.ID

	e2 := &Embedding{ChunkID: chunk.ID, Vector: SerializeVector([]float32{1, 0, 0, 0}), Dimension: 4, Provider: "local", Model: "local-hash"}
	require.NoError(t, storage.UpsertEmbedding(ctx, e2))
	assert.Equal(t, firstID, e2.ID)

	var (
		blob  []byte
		count int
	)
	require.NoError(t, storage.db.QueryRowContext(ctx,
		"SELECT vector, (SELECT COUNT(*) FROM embeddings) FROM embeddings WHERE chunk_id = ?", chunk.ID).Scan(&blob, &count))
	assert.Equal(t, 1, count)
	decoded, err := DeserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, decoded)
}

func TestPruneStale(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")

	kept := createFile(t, storage, c.ID, "kept.go", 2)
	createChunk(t, storage, kept.ID, 1, NoSplit, "fresh", 2)
	createChunk(t, storage, kept.ID, 7, NoSplit, "stale chunk of a live file", 1)

	gone := createFile(t, storage, c.ID, "gone.go", 1)
	createChunk(t, storage, gone.ID, 1, NoSplit, "stale", 1)

	// Other collections are untouched
	other := createCollection(t, storage, "other")
	otherFile := createFile(t, storage, other.ID, "x.go", 0)
	createChunk(t, storage, otherFile.ID, 1, NoSplit, "other", 0)

	result, err := storage.PruneStale(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 2, result.ChunksDeleted)

	chunks, err := storage.ListChunks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "fresh", chunks[0].Content)

	otherChunks, err := storage.ListChunks(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, otherChunks, 1)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")
	f := createFile(t, storage, c.ID, "main.go", 1)
	whole := createChunk(t, storage, f.ID, 1, NoSplit, "whole", 1)
	createChunk(t, storage, f.ID, 3, 0, "split a", 1)
	createChunk(t, storage, f.ID, 3, 1, "split b", 1)

	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		ChunkID: whole.ID, Vector: SerializeVector([]float32{1, 0, 0, 0}), Dimension: 4, Provider: "local", Model: "local-hash",
	}))

	status, err := storage.GetStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 3, status.ChunksCount)
	assert.Equal(t, 2, status.SplitChunks)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.EmbeddingsAvailable)
	assert.False(t, status.Health.EmbeddingsComplete)
	assert.Equal(t, "code_index", status.Collection.Name)

	_, err = storage.GetStatus(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Commit(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	f := createFile(t, tx, c.ID, "main.go", 1)
	createChunk(t, tx, f.ID, 1, NoSplit, "package main", 1)

	// Reads inside the transaction see its writes
	chunks, err := tx.ListChunks(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	require.NoError(t, tx.Commit())

	chunks, err = storage.ListChunks(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestTransaction_Rollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)

	f := createFile(t, tx, c.ID, "main.go", 1)
	createChunk(t, tx, f.ID, 1, NoSplit, "package main", 1)
	require.NoError(t, tx.Rollback())

	_, err = storage.GetFile(ctx, c.ID, "main.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Nested(t *testing.T) {
	storage := setupTestDB(t)
	tx, err := storage.BeginTx(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.BeginTx(context.Background())
	assert.ErrorIs(t, err, ErrNestedTx)
}

func TestCascadeDelete(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	c := createCollection(t, storage, "code_index")
	f := createFile(t, storage, c.ID, "main.go", 1)
	chunk := createChunk(t, storage, f.ID, 1, NoSplit, "package main", 1)
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		ChunkID: chunk.ID, Vector: SerializeVector([]float32{1, 0, 0, 0}), Dimension: 4, Provider: "local", Model: "local-hash",
	}))

	_, err := storage.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", f.ID)
	require.NoError(t, err)

	var n int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n))
	assert.Equal(t, 0, n)

	chunks, err := storage.ListChunks(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestVectorRoundTrip(t *testing.T) {
	vector := []float32{0, -1.5, 3.25, 1e-7}
	blob := SerializeVector(vector)
	assert.Len(t, blob, 16)

	decoded, err := DeserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)

	_, err = DeserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
