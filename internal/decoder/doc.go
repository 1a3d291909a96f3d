// Package decoder turns raw source file bytes into text without ever failing.
//
// Decoding walks an ordered chain of named strategies and returns the result
// of the first one that decodes the bytes cleanly. The default chain is:
//
//	euc_jp → utf-8 → cp932 → shift_jis → latin-1
//
// Ambiguity is resolved by priority, not by confidence: plain ASCII is valid
// EUC-JP and is therefore reported as euc_jp. Latin-1 maps every byte, so in
// practice the chain always ends there; a custom chain that rejects the input
// falls through to a forced UTF-8 decode with one U+FFFD per bad byte.
//
//	d := decoder.New()
//	text, strategy := d.DecodeWith(raw)
//
// The chain is plain data, so callers and tests can inspect it:
//
//	d.Names() // [euc_jp utf-8 cp932 shift_jis latin-1]
package decoder
