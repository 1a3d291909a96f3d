package splitter

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dshills/repoingest/internal/tokenizer"
	"github.com/dshills/repoingest/pkg/types"
)

var (
	// ErrUnsplittable is returned when a single character exceeds the budget
	ErrUnsplittable = errors.New("text cannot be split within token budget")
	// ErrInvalidBudget is returned for a non-positive token budget
	ErrInvalidBudget = errors.New("token budget must be positive")
)

// Splitter subdivides text whose token count exceeds MaxTokens
type Splitter struct {
	Counter   tokenizer.Counter
	MaxTokens int
}

// New creates a Splitter
func New(counter tokenizer.Counter, maxTokens int) *Splitter {
	return &Splitter{Counter: counter, MaxTokens: maxTokens}
}

// Split returns text unchanged as a single piece when it fits the budget.
// Otherwise it halves the text at its rune midpoint and recurses on each
// half. Pieces concatenate back to text and each counts at most MaxTokens.
func (s *Splitter) Split(text string) ([]string, error) {
	if s.MaxTokens <= 0 {
		return nil, ErrInvalidBudget
	}
	return s.split(text, nil)
}

func (s *Splitter) split(text string, out []string) ([]string, error) {
	n, err := s.Counter.Count(text)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	if n <= s.MaxTokens {
		return append(out, text), nil
	}

	runes := utf8.RuneCountInString(text)
	if runes <= 1 {
		return nil, fmt.Errorf("%w: %d tokens in %q, budget %d", ErrUnsplittable, n, text, s.MaxTokens)
	}

	mid := byteOffset(text, runes/2)
	out, err = s.split(text[:mid], out)
	if err != nil {
		return nil, err
	}
	return s.split(text[mid:], out)
}

// SplitChunk splits a chunk's text and returns one chunk per piece, each
// carrying its 0-based position as chunk index. A chunk within budget is
// returned unchanged.
func (s *Splitter) SplitChunk(chunk types.Chunk) ([]types.Chunk, error) {
	pieces, err := s.Split(chunk.Text)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", chunk.FilePath, chunk.StartLine, err)
	}
	if len(pieces) == 1 {
		return []types.Chunk{chunk}, nil
	}

	out := make([]types.Chunk, len(pieces))
	for i, piece := range pieces {
		out[i] = chunk.WithSplit(piece, i)
	}
	return out, nil
}

// byteOffset returns the byte offset of the rune at index n
func byteOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
