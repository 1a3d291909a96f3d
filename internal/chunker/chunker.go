package chunker

import (
	"iter"

	"github.com/dshills/repoingest/internal/decoder"
	"github.com/dshills/repoingest/internal/parser"
	"github.com/dshills/repoingest/pkg/types"
)

// Unit is one top-level declaration, or a whole file on fallback
type Unit struct {
	Text      string
	StartLine int // 1-indexed
}

// Chunker creates semantic chunks from source files
type Chunker struct {
	parsers *parser.Registry
	decoder *decoder.Decoder
}

// New creates a new Chunker. Nil arguments select the defaults.
func New(parsers *parser.Registry, dec *decoder.Decoder) *Chunker {
	if parsers == nil {
		parsers = parser.NewRegistry()
	}
	if dec == nil {
		dec = decoder.New()
	}
	return &Chunker{
		parsers: parsers,
		decoder: dec,
	}
}

// Units lazily yields the chunkable top-level units of src in document
// order. Each unit's text is the decoded byte range of its node. When no
// chunkable unit exists (unknown extension, parse failure, script-only file)
// exactly one unit holding the whole decoded file at line 1 is yielded.
func (c *Chunker) Units(path string, src []byte) iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		yielded := false
		for _, node := range c.topLevelUnits(path, src) {
			yielded = true
			unit := Unit{
				Text:      c.decoder.Decode(src[node.StartByte:node.EndByte]),
				StartLine: node.StartLine,
			}
			if !yield(unit) {
				return
			}
		}

		if !yielded {
			yield(Unit{Text: c.decoder.Decode(src), StartLine: 1})
		}
	}
}

// topLevelUnits returns the chunkable direct children of the root node, or
// nil when the file cannot be parsed
func (c *Chunker) topLevelUnits(path string, src []byte) []parser.Node {
	p, err := c.parsers.ForPath(path)
	if err != nil {
		return nil
	}

	tree, err := p.Parse(src)
	if err != nil || tree == nil {
		return nil
	}

	var nodes []parser.Node
	for _, child := range tree.Children {
		if child.Category.Chunkable() {
			nodes = append(nodes, child)
		}
	}
	return nodes
}

// ChunkFile chunks a source file and attaches its metadata
func (c *Chunker) ChunkFile(file types.SourceFile) []types.Chunk {
	chunks := make([]types.Chunk, 0)
	for unit := range c.Units(file.Path, file.Content) {
		chunks = append(chunks, types.Chunk{
			Text:      unit.Text,
			FilePath:  file.Path,
			StartLine: unit.StartLine,
		})
	}
	return chunks
}
