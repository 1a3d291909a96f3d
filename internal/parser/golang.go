package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"unicode/utf8"
)

// GoParser parses Go source with the standard library AST
type GoParser struct{}

// NewGoParser creates a new GoParser
func NewGoParser() *GoParser {
	return &GoParser{}
}

func (p *GoParser) Language() string {
	return "go"
}

// Parse parses src and classifies its top-level declarations. Syntax errors
// are non-fatal: go/parser returns a partial AST and whatever declarations it
// recovered are still classified. src may hold legacy encoded comments and
// literals; node offsets always refer to src.
func (p *GoParser) Parse(src []byte) (*Tree, error) {
	fset := token.NewFileSet()
	tree := &Tree{Language: p.Language()}

	file, err := goparser.ParseFile(fset, "", parseable(src), goparser.SkipObjectResolution)
	if err != nil {
		tree.Errors = append(tree.Errors, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return tree, nil
	}

	tf := fset.File(file.Pos())
	if tf == nil {
		return tree, nil
	}

	for _, decl := range file.Decls {
		start, end := clampRange(tf.Offset(decl.Pos()), tf.Offset(decl.End()), len(src))
		tree.Children = append(tree.Children, Node{
			Kind:      goDeclKind(decl),
			Category:  goDeclCategory(decl),
			StartByte: start,
			EndByte:   end,
			StartLine: fset.Position(decl.Pos()).Line,
		})
	}

	return tree, nil
}

// goDeclCategory maps a top-level Go declaration into the closed category set
func goDeclCategory(decl ast.Decl) Category {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return CategoryFunction
	case *ast.GenDecl:
		if d.Tok == token.TYPE {
			return CategoryClass
		}
	}
	return CategoryOpaque
}

func goDeclKind(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv != nil && len(d.Recv.List) > 0 {
			return "method_declaration"
		}
		return "function_declaration"
	case *ast.GenDecl:
		return d.Tok.String() + "_declaration"
	default:
		return "bad_declaration"
	}
}

// parseable returns src with every byte that is not part of a valid UTF-8
// sequence replaced by a space. go/parser gives up on a file when invalid
// bytes show up near the package clause, and the replacement keeps every
// byte offset where it was.
func parseable(src []byte) []byte {
	if utf8.Valid(src) {
		return src
	}

	out := make([]byte, len(src))
	copy(out, src)
	for i := 0; i < len(out); {
		r, size := utf8.DecodeRune(out[i:])
		if r == utf8.RuneError && size == 1 {
			out[i] = ' '
		}
		i += size
	}
	return out
}
