//go:build cgo
// +build cgo

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythonParser_TopLevelUnits(t *testing.T) {
	src := []byte(`import os


def first():
    return 1


class Service:
    def method(self):
        return 2


@decorator
def decorated():
    pass


print("script")
`)

	tree, err := NewPythonParser().Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "python", tree.Language)
	assert.False(t, tree.HasErrors())

	var chunkable []Node
	for _, n := range tree.Children {
		if n.Category.Chunkable() {
			chunkable = append(chunkable, n)
		}
	}
	require.Len(t, chunkable, 3, "method inside class must not be reported separately")

	assert.Equal(t, "function_definition", chunkable[0].Kind)
	assert.Equal(t, 4, chunkable[0].StartLine)
	assert.Equal(t, "def first():\n    return 1", string(src[chunkable[0].StartByte:chunkable[0].EndByte]))

	assert.Equal(t, CategoryClass, chunkable[1].Category)
	assert.Equal(t, 8, chunkable[1].StartLine)
	assert.Contains(t, string(src[chunkable[1].StartByte:chunkable[1].EndByte]), "def method(self)")

	assert.Equal(t, "decorated_definition", chunkable[2].Kind)
	assert.Equal(t, CategoryFunction, chunkable[2].Category)
	assert.Equal(t, 13, chunkable[2].StartLine)
}

func TestPythonParser_ScriptOnly(t *testing.T) {
	tree, err := NewPythonParser().Parse([]byte("x = 1\nprint(x)\n"))
	require.NoError(t, err)
	for _, n := range tree.Children {
		assert.False(t, n.Category.Chunkable())
	}
}
