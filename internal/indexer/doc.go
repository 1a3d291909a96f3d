// Package indexer coordinates the end-to-end ingestion pipeline.
//
// A run enumerates the repository, chunks every file, splits chunks over the
// token ceiling, packs the result into token-bounded batches and hands the
// batches to a Sink one at a time.
//
// # Basic Usage
//
//	sink := indexer.NewStoreSink(store, emb, "code_index", logger)
//	idx, err := indexer.New(indexer.Config{
//	    Extensions: []string{".go", ".py"},
//	    MaxTokens:  300000,
//	    MaxChunks:  2048,
//	    Counter:    counter,
//	    Logger:     logger,
//	}, sink)
//	if err != nil {
//	    return err
//	}
//
//	summary, err := idx.Run(ctx, "/path/to/repo")
//
// # Pipeline
//
//  1. Enumerate: git ls-files, or a .gitignore-aware walk outside git
//  2. Chunk: top-level declarations per file, whole file on fallback
//  3. Split: recursive midpoint split of chunks over the ceiling
//  4. Batch: greedy, order-preserving packing
//  5. Dispatch: one batch at a time, in order
//
// # Failure
//
// The first failed dispatch ends the run with a *DispatchError naming the
// batch. Nothing is retried. Batches stored before the failure remain, and
// a rerun overwrites them in place since chunks are keyed by file, start
// line and split index.
//
// # Concurrent Runs
//
// IndexLock lets a long-running server reject a second ingestion while one
// is in progress.
package indexer
