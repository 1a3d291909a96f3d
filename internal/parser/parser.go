package parser

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedLanguage is returned when no parser is registered for a file
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Category is the closed set of node classes relevant to chunking.
// Native parser node kinds are mapped into it at the parser boundary.
type Category int

const (
	// CategoryOpaque covers every node kind that is not a chunkable unit
	CategoryOpaque Category = iota
	// CategoryFunction covers function (and, in Go, method) declarations
	CategoryFunction
	// CategoryClass covers class and type declarations
	CategoryClass
)

func (c Category) String() string {
	switch c {
	case CategoryFunction:
		return "function"
	case CategoryClass:
		return "class"
	default:
		return "opaque"
	}
}

// Chunkable reports whether nodes of this category become their own chunk
func (c Category) Chunkable() bool {
	return c == CategoryFunction || c == CategoryClass
}

// Node is a direct child of a file's root syntax node
type Node struct {
	Kind     string // Native node kind reported by the underlying parser
	Category Category

	// Byte range into the parsed source, half-open
	StartByte int
	EndByte   int

	// StartLine is 1-indexed
	StartLine int
}

// Tree is a parsed file reduced to the direct children of its root node.
// Nested declarations are deliberately not represented.
type Tree struct {
	Language string
	Children []Node

	// Errors holds non-fatal syntax errors reported while parsing
	Errors []string
}

// HasErrors returns true if any syntax errors were reported
func (t *Tree) HasErrors() bool {
	return len(t.Errors) > 0
}

// Parser parses source bytes of one language into a Tree
type Parser interface {
	Language() string
	Parse(src []byte) (*Tree, error)
}

// Registry maps file extensions to parsers
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry creates a registry with every parser available in this build
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewGoParser(), ".go")
	registerPlatformParsers(r)
	return r
}

// Register associates p with the given file extensions
func (r *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForPath returns the parser registered for path's extension
func (r *Registry) ForPath(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	return p, nil
}

// Extensions returns the registered extensions, sorted
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// clampRange keeps a node's byte range inside src
func clampRange(start, end, size int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > size {
		end = size
	}
	if end < start {
		end = start
	}
	return start, end
}
