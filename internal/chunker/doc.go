// Package chunker splits source files into semantic chunks.
//
// A chunk is one top-level function or class/type declaration, taken from the
// direct children of the file's root syntax node. Declarations nested inside
// a chunk (methods in a Python class, closures in a Go function) travel with
// their parent's text and are never chunked on their own.
//
// # Basic Usage
//
//	c := chunker.New(nil, nil)
//	for unit := range c.Units("pkg/service.py", raw) {
//	    fmt.Println(unit.StartLine, len(unit.Text))
//	}
//
// Units is lazy: the file is parsed when iteration starts, and breaking out of
// the loop stops decoding further units.
//
// # Fallback
//
// Every file yields at least one chunk. When the extension has no parser, the
// parse fails, or no chunkable declaration exists at the top level, the whole
// file is emitted as a single chunk starting at line 1.
//
// # Decoding
//
// Nodes are located on the raw bytes and each node's byte range is decoded on
// its own with the decoder chain, so every chunk is a decoded contiguous slice
// of its source file.
package chunker
