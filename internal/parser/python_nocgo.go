//go:build !cgo
// +build !cgo

package parser

// This file is compiled without CGO. The tree-sitter Python grammar is not
// available, so Python files are not registered and fall back to whole-file
// chunks.

// PythonAvailable indicates whether Python files are parsed or fall back to
// whole-file chunks in this build
const PythonAvailable = false

func registerPlatformParsers(r *Registry) {}
