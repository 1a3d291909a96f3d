//go:build cgo
// +build cgo

package parser

// This file is compiled when CGO is available. The Python grammar is a C
// library linked through the tree-sitter bindings.

import (
	"errors"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// PythonAvailable indicates whether Python files are parsed or fall back to
// whole-file chunks in this build
const PythonAvailable = true

// PythonParser parses Python source with tree-sitter
type PythonParser struct {
	language *tree_sitter.Language
}

// NewPythonParser creates a new PythonParser
func NewPythonParser() *PythonParser {
	return &PythonParser{
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

func (p *PythonParser) Language() string {
	return "python"
}

// Parse parses src and classifies the direct children of the module node.
// tree-sitter recovers from syntax errors with ERROR nodes, which map to
// CategoryOpaque.
func (p *PythonParser) Parse(src []byte) (*Tree, error) {
	ts := tree_sitter.NewParser()
	defer ts.Close()

	if err := ts.SetLanguage(p.language); err != nil {
		return nil, err
	}

	parsed := ts.Parse(src, nil)
	if parsed == nil {
		return nil, errors.New("tree-sitter returned no tree")
	}
	defer parsed.Close()

	root := parsed.RootNode()
	tree := &Tree{Language: p.Language()}
	if root.HasError() {
		tree.Errors = append(tree.Errors, "syntax error in python source")
	}

	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		start, end := clampRange(int(child.StartByte()), int(child.EndByte()), len(src))
		tree.Children = append(tree.Children, Node{
			Kind:      child.Kind(),
			Category:  pythonCategory(child),
			StartByte: start,
			EndByte:   end,
			StartLine: int(child.StartPosition().Row) + 1,
		})
	}

	return tree, nil
}

// pythonCategory maps a module-level tree-sitter node into the closed set.
// A decorated definition takes the category of the definition it wraps.
func pythonCategory(n *tree_sitter.Node) Category {
	kind := n.Kind()
	if kind == "decorated_definition" {
		inner := n.ChildByFieldName("definition")
		if inner == nil {
			return CategoryOpaque
		}
		kind = inner.Kind()
	}
	return pythonKindCategory(kind)
}

func registerPlatformParsers(r *Registry) {
	r.Register(NewPythonParser(), ".py", ".pyi")
}
