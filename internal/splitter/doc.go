// Package splitter subdivides chunks that exceed a token budget.
//
// Splitting is a lossless binary recursion on the rune midpoint: no attempt
// is made to respect word or line boundaries. Termination is driven by text
// length, not by the tokenizer, so a tokenizer that counts a half as more
// tokens than its whole still terminates. A single rune whose count exceeds
// the budget is reported as ErrUnsplittable.
package splitter
