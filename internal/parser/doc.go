// Package parser reduces source files to the direct children of their root
// syntax node, classified into a closed set of categories.
//
// Only three categories exist: CategoryFunction, CategoryClass and
// CategoryOpaque. Every parser maps its native node kinds into this set at the
// boundary, and anything it does not recognize is opaque. The scan is a single
// level deep by construction: Tree carries no grandchildren, so a method inside
// a class can never be reported on its own.
//
// # Basic Usage
//
//	reg := parser.NewRegistry()
//	p, err := reg.ForPath("service/handler.py")
//	if errors.Is(err, parser.ErrUnsupportedLanguage) {
//	    // caller falls back to a whole-file chunk
//	}
//	tree, err := p.Parse(src)
//	for _, n := range tree.Children {
//	    fmt.Printf("%s %s line %d\n", n.Category, n.Kind, n.StartLine)
//	}
//
// # Languages
//
//   - Go (.go): go/parser. Function and method declarations are functions,
//     type declarations are classes.
//   - Python (.py, .pyi): tree-sitter, only in CGO builds (see PythonAvailable).
//     function_definition and class_definition map directly; a
//     decorated_definition takes the category of the definition it wraps.
//
// # Error Handling
//
// Syntax errors are recorded in Tree.Errors and never abort parsing; partial
// trees are still classified. Node byte ranges index into the bytes that were
// parsed, so callers slice the raw source and decode each slice.
package parser
