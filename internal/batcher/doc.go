// Package batcher packs an ordered chunk sequence into token-bounded batches.
//
// Packing is online and greedy. Chunks keep their arrival order, each chunk
// lands in exactly one batch, and no batch exceeds the token limit. The
// result is not the minimum possible batch count.
//
// Online use, dispatching each batch as soon as it closes:
//
//	a, _ := batcher.NewAssembler(batcher.Limits{MaxTokens: 300000})
//	for _, c := range chunks {
//	    closed, err := a.Add(c, tokens(c))
//	    ...
//	    if closed != nil {
//	        dispatch(closed)
//	    }
//	}
//	if last := a.Flush(); last != nil {
//	    dispatch(last)
//	}
package batcher
