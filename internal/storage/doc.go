// Package storage provides SQLite-based persistence for ingested chunks and
// their embeddings.
//
// The storage layer manages:
//   - Collections, each bound to one embedding provider, model and dimension
//   - Files and their SHA-256 content hashes
//   - Chunks, keyed by file, start line and split index
//   - Vector embeddings for chunks
//
// # Database Schema
//
// Tables:
//   - collections: collection name, root path, embedding model, run generation
//   - files: relative file paths and content hashes
//   - chunks: chunk text with start line and split index (-1 when unsplit)
//   - embeddings: one serialized float32 vector per chunk
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("code_index/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	collection := &storage.Collection{Name: "code_index", RootPath: repo,
//	    Provider: "openai", Model: "text-embedding-3-large", Dimension: 1536}
//	if err := db.UpsertCollection(ctx, collection); err != nil {
//	    return err
//	}
//
// # Transactions
//
// A dispatched batch is written in one transaction so a failed batch leaves
// no partial rows behind:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertFile(ctx, file)
//	_ = tx.UpsertChunk(ctx, chunk)
//	_ = tx.UpsertEmbedding(ctx, embedding)
//
//	return tx.Commit()
//
// # Re-ingestion
//
// Every run bumps the collection generation and stamps the rows it writes
// with it. Upserts keep chunk IDs stable across runs; PruneStale then drops
// rows an earlier generation wrote that the current run did not touch.
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
