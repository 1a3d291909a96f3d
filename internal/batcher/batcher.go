package batcher

import (
	"errors"
	"fmt"

	"github.com/dshills/repoingest/internal/tokenizer"
	"github.com/dshills/repoingest/pkg/types"
)

const (
	// DefaultMaxChunks is the per-request input cap of the OpenAI embeddings API
	DefaultMaxChunks = 2048
)

var (
	// ErrChunkTooLarge is returned when a single chunk exceeds MaxTokens
	ErrChunkTooLarge = errors.New("chunk exceeds batch token limit")
	// ErrInvalidLimits is returned for a non-positive token limit
	ErrInvalidLimits = errors.New("batch token limit must be positive")
)

// Batch is an ordered group of chunks dispatched in one call
type Batch struct {
	Chunks []types.Chunk
	Counts []int // Token count of each chunk
	Tokens int   // Sum of Counts
}

// Len returns the number of chunks in the batch
func (b *Batch) Len() int {
	return len(b.Chunks)
}

// Texts returns the chunk texts in batch order
func (b *Batch) Texts() []string {
	texts := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		texts[i] = c.Text
	}
	return texts
}

// Limits bounds a single batch
type Limits struct {
	MaxTokens int
	MaxChunks int // 0 means no chunk count limit
}

// Assembler greedily packs chunks into batches in arrival order. A batch is
// closed as soon as the next chunk would push it past a limit; the chunk that
// did not fit opens the next batch.
type Assembler struct {
	Limits
	current *Batch
}

// NewAssembler creates an Assembler
func NewAssembler(limits Limits) (*Assembler, error) {
	if limits.MaxTokens <= 0 {
		return nil, ErrInvalidLimits
	}
	if limits.MaxChunks < 0 {
		limits.MaxChunks = 0
	}
	return &Assembler{Limits: limits}, nil
}

// Add appends a chunk with its token count. When the chunk does not fit the
// running batch, that batch is closed and returned and the chunk starts a
// new one. The returned batch is nil while the running batch stays open.
func (a *Assembler) Add(chunk types.Chunk, tokens int) (*Batch, error) {
	if tokens > a.MaxTokens {
		return nil, fmt.Errorf("%w: %s:%d has %d tokens, limit %d",
			ErrChunkTooLarge, chunk.FilePath, chunk.StartLine, tokens, a.MaxTokens)
	}

	var closed *Batch
	if a.current != nil && !a.fits(tokens) {
		closed = a.current
		a.current = nil
	}

	if a.current == nil {
		a.current = &Batch{}
	}
	a.current.Chunks = append(a.current.Chunks, chunk)
	a.current.Counts = append(a.current.Counts, tokens)
	a.current.Tokens += tokens

	return closed, nil
}

func (a *Assembler) fits(tokens int) bool {
	if a.current.Tokens+tokens > a.MaxTokens {
		return false
	}
	if a.MaxChunks > 0 && len(a.current.Chunks) >= a.MaxChunks {
		return false
	}
	return true
}

// Flush closes and returns the running batch, or nil if it is empty
func (a *Assembler) Flush() *Batch {
	b := a.current
	a.current = nil
	return b
}

// Pending returns the number of chunks in the running batch
func (a *Assembler) Pending() int {
	if a.current == nil {
		return 0
	}
	return len(a.current.Chunks)
}

// Assemble counts every chunk with counter and packs the sequence into
// batches. An empty input produces no batches.
func Assemble(chunks []types.Chunk, counter tokenizer.Counter, limits Limits) ([]*Batch, error) {
	a, err := NewAssembler(limits)
	if err != nil {
		return nil, err
	}

	var batches []*Batch
	for _, c := range chunks {
		n, err := counter.Count(c.Text)
		if err != nil {
			return nil, fmt.Errorf("count tokens for %s:%d: %w", c.FilePath, c.StartLine, err)
		}
		closed, err := a.Add(c, n)
		if err != nil {
			return nil, err
		}
		if closed != nil {
			batches = append(batches, closed)
		}
	}

	if last := a.Flush(); last != nil {
		batches = append(batches, last)
	}
	return batches, nil
}
