package types

import "crypto/sha256"

// SourceFile is one file handed to the pipeline. The pipeline never mutates Content.
type SourceFile struct {
	Path    string // Relative to the repository root
	Content []byte
}

// Chunk represents a contiguous unit of source text bound for embedding
type Chunk struct {
	// Content
	Text string

	// Location
	FilePath  string // Relative to the repository root
	StartLine int

	// ChunkIndex is the 0-based position of this piece within a token-budget
	// split. Nil for chunks that were never split.
	ChunkIndex *int
}

// IsSplit reports whether the chunk is a piece of a larger, subdivided chunk
func (c Chunk) IsSplit() bool {
	return c.ChunkIndex != nil
}

// WithSplit returns a copy of c carrying text as the index-th split piece.
// The receiver is left untouched.
func (c Chunk) WithSplit(text string, index int) Chunk {
	idx := index
	return Chunk{
		Text:       text,
		FilePath:   c.FilePath,
		StartLine:  c.StartLine,
		ChunkIndex: &idx,
	}
}

// SplitIndex returns the split position, or -1 for unsplit chunks
func (c Chunk) SplitIndex() int {
	if c.ChunkIndex == nil {
		return -1
	}
	return *c.ChunkIndex
}

// ContentHash computes the SHA-256 hash of the chunk text
func (c Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Text))
}

// Validate performs validation of the chunk metadata
func (c Chunk) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}

	if c.StartLine < 1 {
		return ErrInvalidStartLine
	}

	if c.ChunkIndex != nil && *c.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}

	return nil
}
