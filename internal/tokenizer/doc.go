// Package tokenizer resolves a token counter for an embedding model.
//
// Resolution is an ordered chain of named strategies. The default chain tries
// the model's own tiktoken encoding, falls back to cl100k_base for models the
// encoding table does not know, and finally to a four-characters-per-token
// estimate. The winning strategy's name is returned so callers can log when
// a fallback was taken.
//
//	counter, via, err := tokenizer.Resolve("text-embedding-3-large")
//	n, err := counter.Count(text)
package tokenizer
