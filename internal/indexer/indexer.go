package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dshills/repoingest/internal/batcher"
	"github.com/dshills/repoingest/internal/chunker"
	"github.com/dshills/repoingest/internal/splitter"
	"github.com/dshills/repoingest/internal/tokenizer"
	"github.com/dshills/repoingest/pkg/types"
)

// ErrNoExtensions is returned when a run has no extensions to match
var ErrNoExtensions = errors.New("no file extensions configured")

// State is the stage an ingestion run is in
type State int32

const (
	StateIdle State = iota
	StateEnumerate
	StateChunk
	StateBatch
	StateDispatch
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerate:
		return "enumerate"
	case StateChunk:
		return "chunk"
	case StateBatch:
		return "batch"
	case StateDispatch:
		return "dispatch"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DispatchError reports the sink failure that ended a run
type DispatchError struct {
	Batch  int // 1-based ordinal of the failed batch
	Chunks int
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch batch %d (%d chunks): %v", e.Batch, e.Chunks, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Config contains configuration for the indexer
type Config struct {
	Extensions []string // Allowlist of file suffixes, e.g. ".go"
	MaxTokens  int      // Token ceiling of a chunk and of a batch
	MaxChunks  int      // Chunk count ceiling of a batch, 0 for none

	Counter tokenizer.Counter // Required
	Chunker *chunker.Chunker  // Default chunker when nil
	Logger  *slog.Logger
}

// Summary contains statistics about a run
type Summary struct {
	FilesProcessed    int
	FilesSkipped      int // Listed but unreadable
	ChunksProduced    int // Chunks entering batch assembly
	EmptySkipped      int // Empty chunks, never sent to the sink
	SplitsPerformed   int // Oversized chunks that were split
	PiecesFromSplits  int
	BatchesDispatched int
	Tokens            int
	State             State
	Duration          time.Duration
}

// Indexer runs the ingestion pipeline:
// enumerate -> chunk -> split -> batch -> dispatch
type Indexer struct {
	cfg      Config
	chunker  *chunker.Chunker
	splitter *splitter.Splitter
	sink     Sink
	logger   *slog.Logger

	state atomic.Int32
}

// New creates a new Indexer dispatching to sink
func New(cfg Config, sink Sink) (*Indexer, error) {
	if cfg.Counter == nil {
		return nil, errors.New("indexer requires a token counter")
	}
	if sink == nil {
		return nil, errors.New("indexer requires a sink")
	}
	if cfg.MaxTokens <= 0 {
		return nil, splitter.ErrInvalidBudget
	}

	c := cfg.Chunker
	if c == nil {
		c = chunker.New(nil, nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		cfg:      cfg,
		chunker:  c,
		splitter: splitter.New(cfg.Counter, cfg.MaxTokens),
		sink:     sink,
		logger:   logger,
	}, nil
}

// State returns the stage of the current or last run
func (idx *Indexer) State() State {
	return State(idx.state.Load())
}

func (idx *Indexer) setState(s State) {
	idx.state.Store(int32(s))
	idx.logger.Debug("ingest state", "state", s.String())
}

// countedChunk is a chunk with its token count, ready for batching
type countedChunk struct {
	chunk  types.Chunk
	tokens int
}

// Run ingests the repository at root. Files are processed one at a time and
// batches are dispatched in order, each completing before the next starts.
// The first dispatch failure ends the run with a *DispatchError; batches
// dispatched before it stay persisted.
func (idx *Indexer) Run(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	chunks, err := idx.prepare(ctx, root, summary)
	if err == nil && len(chunks) > 0 {
		err = idx.dispatchAll(ctx, chunks, summary)
	}
	if err == nil && len(chunks) > 0 {
		if obs, ok := idx.sink.(RunObserver); ok {
			err = obs.EndRun(ctx, summary)
		}
	}

	summary.Duration = time.Since(start)
	if err != nil {
		idx.setState(StateFailed)
		summary.State = StateFailed
		return summary, err
	}

	idx.setState(StateDone)
	summary.State = StateDone
	if len(chunks) == 0 {
		idx.logger.Info("No files indexed.")
		return summary, nil
	}

	idx.logger.Info(fmt.Sprintf("Indexed %d chunks from %d files.", summary.ChunksProduced, summary.FilesProcessed),
		"splits", summary.SplitsPerformed,
		"batches", summary.BatchesDispatched,
		"tokens", summary.Tokens,
		"duration", summary.Duration)
	return summary, nil
}

// prepare enumerates, reads and chunks every file, splitting oversized
// chunks, and returns the flattened chunk sequence in order
func (idx *Indexer) prepare(ctx context.Context, root string, summary *Summary) ([]countedChunk, error) {
	if len(idx.cfg.Extensions) == 0 {
		return nil, ErrNoExtensions
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("repository path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path %s is not a directory", absRoot)
	}

	if obs, ok := idx.sink.(RunObserver); ok {
		if err := obs.BeginRun(ctx, absRoot); err != nil {
			return nil, fmt.Errorf("failed to begin run: %w", err)
		}
	}

	idx.setState(StateEnumerate)
	paths, err := Discover(ctx, absRoot, idx.cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	idx.logger.Debug("discovered files", "root", absRoot, "count", len(paths))

	idx.setState(StateChunk)
	var chunks []countedChunk
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(filepath.Join(absRoot, filepath.FromSlash(rel)))
		if err != nil {
			idx.logger.Warn("skipping unreadable file", "file", rel, "error", err)
			summary.FilesSkipped++
			continue
		}

		file := types.SourceFile{Path: rel, Content: content}
		if obs, ok := idx.sink.(RunObserver); ok {
			obs.ObserveFile(file)
		}

		chunks, err = idx.chunkFile(file, chunks, summary)
		if err != nil {
			return nil, err
		}
		summary.FilesProcessed++
	}

	return chunks, nil
}

// chunkFile appends the counted chunks of file to out, splitting any chunk
// over the token ceiling
func (idx *Indexer) chunkFile(file types.SourceFile, out []countedChunk, summary *Summary) ([]countedChunk, error) {
	for _, chunk := range idx.chunker.ChunkFile(file) {
		if chunk.Text == "" {
			idx.logger.Debug("skipping empty chunk", "file", chunk.FilePath, "line", chunk.StartLine)
			summary.EmptySkipped++
			continue
		}
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", chunk.FilePath, chunk.StartLine, err)
		}

		tokens, err := idx.cfg.Counter.Count(chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("count tokens for %s:%d: %w", chunk.FilePath, chunk.StartLine, err)
		}
		if tokens <= idx.cfg.MaxTokens {
			out = append(out, countedChunk{chunk: chunk, tokens: tokens})
			summary.ChunksProduced++
			continue
		}

		pieces, err := idx.splitter.SplitChunk(chunk)
		if err != nil {
			return nil, err
		}
		idx.logger.Info(fmt.Sprintf("Splitting document %s starting at line %d into %d chunks",
			chunk.FilePath, chunk.StartLine, len(pieces)),
			"tokens", tokens,
			"max_tokens", idx.cfg.MaxTokens)
		summary.SplitsPerformed++
		summary.PiecesFromSplits += len(pieces)

		for _, piece := range pieces {
			n, err := idx.cfg.Counter.Count(piece.Text)
			if err != nil {
				return nil, fmt.Errorf("count tokens for %s:%d: %w", piece.FilePath, piece.StartLine, err)
			}
			out = append(out, countedChunk{chunk: piece, tokens: n})
			summary.ChunksProduced++
		}
	}
	return out, nil
}

// dispatchAll packs chunks into batches and hands each closed batch to the
// sink before packing continues
func (idx *Indexer) dispatchAll(ctx context.Context, chunks []countedChunk, summary *Summary) error {
	idx.setState(StateBatch)
	assembler, err := batcher.NewAssembler(batcher.Limits{
		MaxTokens: idx.cfg.MaxTokens,
		MaxChunks: idx.cfg.MaxChunks,
	})
	if err != nil {
		return err
	}

	for _, c := range chunks {
		closed, err := assembler.Add(c.chunk, c.tokens)
		if err != nil {
			return err
		}
		if closed != nil {
			if err := idx.dispatch(ctx, closed, summary); err != nil {
				return err
			}
		}
	}

	if last := assembler.Flush(); last != nil {
		return idx.dispatch(ctx, last, summary)
	}
	return nil
}

func (idx *Indexer) dispatch(ctx context.Context, batch *batcher.Batch, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.setState(StateDispatch)
	ordinal := summary.BatchesDispatched + 1
	idx.logger.Debug("dispatching batch", "batch", ordinal, "chunks", batch.Len(), "tokens", batch.Tokens)

	if err := idx.sink.Dispatch(ctx, batch); err != nil {
		return &DispatchError{Batch: ordinal, Chunks: batch.Len(), Err: err}
	}

	summary.BatchesDispatched++
	summary.Tokens += batch.Tokens
	idx.setState(StateBatch)
	return nil
}
