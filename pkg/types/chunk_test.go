package types

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_WithSplit(t *testing.T) {
	orig := Chunk{Text: "abcdef", FilePath: "a.py", StartLine: 3}

	piece := orig.WithSplit("abc", 0)

	assert.False(t, orig.IsSplit(), "original must not be mutated")
	assert.Equal(t, "abcdef", orig.Text)
	require.True(t, piece.IsSplit())
	assert.Equal(t, 0, *piece.ChunkIndex)
	assert.Equal(t, "abc", piece.Text)
	assert.Equal(t, "a.py", piece.FilePath)
	assert.Equal(t, 3, piece.StartLine)
}

func TestChunk_SplitIndex(t *testing.T) {
	c := Chunk{Text: "x", FilePath: "a.go", StartLine: 1}
	assert.Equal(t, -1, c.SplitIndex())
	assert.Equal(t, 2, c.WithSplit("x", 2).SplitIndex())
}

func TestChunk_Validate(t *testing.T) {
	neg := -1
	tests := []struct {
		name    string
		chunk   Chunk
		wantErr error
	}{
		{"valid", Chunk{Text: "x", FilePath: "a.go", StartLine: 1}, nil},
		{"missing path", Chunk{Text: "x", StartLine: 1}, ErrMissingFilePath},
		{"zero start line", Chunk{Text: "x", FilePath: "a.go"}, ErrInvalidStartLine},
		{"negative index", Chunk{Text: "x", FilePath: "a.go", StartLine: 1, ChunkIndex: &neg}, ErrInvalidChunkIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestChunk_ContentHash(t *testing.T) {
	a := Chunk{Text: "hello world"}
	h := a.ContentHash()
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hex.EncodeToString(h[:]))
	assert.Equal(t, a.ContentHash(), Chunk{Text: "hello world", FilePath: "other"}.ContentHash())
}
