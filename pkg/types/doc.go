// Package types provides shared type definitions for repoingest.
//
// SourceFile is the raw input of one ingestion run: a repository-relative
// path and the file's bytes, read once and never mutated.
//
// Chunk is the unit persisted by the indexing sink:
//
//	chunk := types.Chunk{
//	    Text:      functionSource,
//	    FilePath:  "internal/parser/parser.go",
//	    StartLine: 42,
//	}
//
// Chunks are values. Splitting an oversized chunk produces new chunks through
// WithSplit, each carrying its 0-based ChunkIndex; the original is unchanged:
//
//	piece := chunk.WithSplit(firstHalf, 0)
//	piece.IsSplit()   // true
//	chunk.IsSplit()   // false
//
// # Validation
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
