package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// busyTimeoutMillis is how long a connection waits on a locked database
const busyTimeoutMillis = 5000

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dataSourceName(dbPath))
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// alive across calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Collection operations

func upsertCollection(ctx context.Context, q querier, c *Collection) error {
	query := `
		INSERT INTO collections (name, root_path, provider, model, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root_path = excluded.root_path,
			provider = excluded.provider,
			model = excluded.model,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
		RETURNING id, generation
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		c.Name, c.RootPath, c.Provider, c.Model, c.Dimension, now, now,
	).Scan(&c.ID, &c.Generation)
	if err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

const collectionColumns = `
	id, name, root_path, provider, model, dimension, generation,
	total_files, total_chunks, last_indexed_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.Name, &c.RootPath, &c.Provider, &c.Model, &c.Dimension, &c.Generation,
		&c.TotalFiles, &c.TotalChunks, &lastIndexedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		c.LastIndexedAt = lastIndexedAt.Time
	}
	return &c, nil
}

func getCollection(ctx context.Context, q querier, name string) (*Collection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func getCollectionByID(ctx context.Context, q querier, id int64) (*Collection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func updateCollection(ctx context.Context, q querier, c *Collection) error {
	query := `
		UPDATE collections
		SET root_path = ?, generation = ?, total_files = ?, total_chunks = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	var lastIndexedAt interface{}
	if !c.LastIndexedAt.IsZero() {
		lastIndexedAt = c.LastIndexedAt
	}

	now := time.Now()
	res, err := q.ExecContext(ctx, query,
		c.RootPath, c.Generation, c.TotalFiles, c.TotalChunks, lastIndexedAt, now, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	c.UpdatedAt = now
	return nil
}

func listCollections(ctx context.Context, q querier) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	collections := make([]*Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// File operations

func upsertFile(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (collection_id, file_path, content_hash, size_bytes, generation, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			generation = excluded.generation,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.CollectionID, file.FilePath, file.ContentHash[:], file.SizeBytes,
		file.Generation, now, now, now,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

const fileColumns = `
	id, collection_id, file_path, content_hash, size_bytes, generation,
	last_indexed_at, created_at, updated_at
`

func scanFile(row rowScanner) (*File, error) {
	var file File
	var hash []byte
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&file.ID, &file.CollectionID, &file.FilePath, &hash, &file.SizeBytes,
		&file.Generation, &lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	return &file, nil
}

func getFile(ctx context.Context, q querier, collectionID int64, filePath string) (*File, error) {
	file, err := scanFile(q.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE collection_id = ? AND file_path = ?`,
		collectionID, filePath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return file, err
}

func listFiles(ctx context.Context, q querier, collectionID int64) ([]*File, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE collection_id = ? ORDER BY file_path`, collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Chunk operations

func upsertChunk(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (
			file_id, start_line, split_index, content, content_hash, token_count,
			generation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, start_line, split_index)
		DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			generation = excluded.generation,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.FileID, chunk.StartLine, chunk.SplitIndex, chunk.Content,
		chunk.ContentHash[:], chunk.TokenCount, chunk.Generation, now, now,
	).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	chunk.UpdatedAt = now
	return nil
}

const chunkColumns = `
	c.id, c.file_id, f.file_path, c.start_line, c.split_index, c.content,
	c.content_hash, c.token_count, c.generation, c.created_at, c.updated_at
`

func scanChunk(row rowScanner) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	var tokens sql.NullInt64
	err := row.Scan(
		&chunk.ID, &chunk.FileID, &chunk.FilePath, &chunk.StartLine, &chunk.SplitIndex,
		&chunk.Content, &hash, &tokens, &chunk.Generation, &chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(chunk.ContentHash[:], hash)
	chunk.TokenCount = int(tokens.Int64)
	return &chunk, nil
}

func listChunks(ctx context.Context, q querier, collectionID int64) ([]*Chunk, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks c
		JOIN files f ON c.file_id = f.id
		WHERE f.collection_id = ?
		ORDER BY f.file_path, c.start_line, c.split_index
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Embedding operations

func upsertEmbedding(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now,
	).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	embedding.CreatedAt = now
	return nil
}

// Maintenance operations

func pruneStale(ctx context.Context, q querier, collectionID int64, generation int64) (*PruneResult, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE generation < ?
		  AND file_id IN (SELECT id FROM files WHERE collection_id = ?)
	`, generation, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to prune chunks: %w", err)
	}
	chunks, _ := res.RowsAffected()

	res, err = q.ExecContext(ctx,
		`DELETE FROM files WHERE collection_id = ? AND generation < ?`, collectionID, generation)
	if err != nil {
		return nil, fmt.Errorf("failed to prune files: %w", err)
	}
	files, _ := res.RowsAffected()

	return &PruneResult{FilesDeleted: int(files), ChunksDeleted: int(chunks)}, nil
}

// Status operations

func getStatus(ctx context.Context, q querier, collectionID int64) (*CollectionStatus, error) {
	collection, err := getCollectionByID(ctx, q, collectionID)
	if err != nil {
		return nil, err
	}

	status := &CollectionStatus{
		Collection:    collection,
		LastIndexedAt: collection.LastIndexedAt,
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE collection_id = ?", collectionID).
		Scan(&status.FilesCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN c.split_index >= 0 THEN 1 ELSE 0 END), 0)
		FROM chunks c
		JOIN files f ON c.file_id = f.id
		WHERE f.collection_id = ?
	`, collectionID).Scan(&status.ChunksCount, &status.SplitChunks)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN chunks c ON e.chunk_id = c.id
		JOIN files f ON c.file_id = f.id
		WHERE f.collection_id = ?
	`, collectionID).Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		EmbeddingsComplete:  status.EmbeddingsCount == status.ChunksCount,
	}

	return status, nil
}

// SQLiteStorage methods run against the database handle

func (s *SQLiteStorage) UpsertCollection(ctx context.Context, c *Collection) error {
	return upsertCollection(ctx, s.db, c)
}

func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return getCollection(ctx, s.db, name)
}

func (s *SQLiteStorage) UpdateCollection(ctx context.Context, c *Collection) error {
	return updateCollection(ctx, s.db, c)
}

func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*Collection, error) {
	return listCollections(ctx, s.db)
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return upsertFile(ctx, s.db, file)
}

func (s *SQLiteStorage) GetFile(ctx context.Context, collectionID int64, filePath string) (*File, error) {
	return getFile(ctx, s.db, collectionID, filePath)
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, collectionID int64) ([]*File, error) {
	return listFiles(ctx, s.db, collectionID)
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return upsertChunk(ctx, s.db, chunk)
}

func (s *SQLiteStorage) ListChunks(ctx context.Context, collectionID int64) ([]*Chunk, error) {
	return listChunks(ctx, s.db, collectionID)
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, s.db, embedding)
}

func (s *SQLiteStorage) PruneStale(ctx context.Context, collectionID int64, generation int64) (*PruneResult, error) {
	return pruneStale(ctx, s.db, collectionID, generation)
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, collectionID int64) (*CollectionStatus, error) {
	return getStatus(ctx, s.db, collectionID)
}

// sqliteTx wraps a SQL transaction. Every operation, reads included, runs on
// the transaction: the pool holds a single connection, so touching the
// database handle while a transaction is open would block.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertCollection(ctx context.Context, c *Collection) error {
	return upsertCollection(ctx, t.tx, c)
}

func (t *sqliteTx) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return getCollection(ctx, t.tx, name)
}

func (t *sqliteTx) UpdateCollection(ctx context.Context, c *Collection) error {
	return updateCollection(ctx, t.tx, c)
}

func (t *sqliteTx) ListCollections(ctx context.Context) ([]*Collection, error) {
	return listCollections(ctx, t.tx)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return upsertFile(ctx, t.tx, file)
}

func (t *sqliteTx) GetFile(ctx context.Context, collectionID int64, filePath string) (*File, error) {
	return getFile(ctx, t.tx, collectionID, filePath)
}

func (t *sqliteTx) ListFiles(ctx context.Context, collectionID int64) ([]*File, error) {
	return listFiles(ctx, t.tx, collectionID)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return upsertChunk(ctx, t.tx, chunk)
}

func (t *sqliteTx) ListChunks(ctx context.Context, collectionID int64) ([]*Chunk, error) {
	return listChunks(ctx, t.tx, collectionID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, t.tx, embedding)
}

func (t *sqliteTx) PruneStale(ctx context.Context, collectionID int64, generation int64) (*PruneResult, error) {
	return pruneStale(ctx, t.tx, collectionID, generation)
}

func (t *sqliteTx) GetStatus(ctx context.Context, collectionID int64) (*CollectionStatus, error) {
	return getStatus(ctx, t.tx, collectionID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
