package symbols

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupportedExtensions(t *testing.T) {
	require.True(t, Supported("main.go"))
	require.True(t, Supported("script.py"))
	require.True(t, Supported("app.js"))
	require.False(t, Supported("main.rs"))
	require.False(t, Supported("styles.css"))
}

func TestExtractUnsupportedLanguageFailsSemantic(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract("styles.css", []byte("body {}"))
	require.Error(t, err)
}

func TestExtractGoFunctions(t *testing.T) {
	e := NewExtractor()
	src := []byte(`package main

func Hello() string {
	return "hi"
}

func World() string {
	return "world"
}
`)
	syms, err := e.Extract("main.go", src)
	require.NoError(t, err)
	require.Len(t, syms, 2)

	names := map[string]bool{}
	for _, s := range syms {
		names[s.Name] = true
	}
	require.True(t, names["Hello"])
	require.True(t, names["World"])
}

func TestDiffDetectsAddedModifiedDeleted(t *testing.T) {
	before := []Symbol{
		{Name: "Foo", Kind: "function", StructuralHash: "hash-foo-v1"},
		{Name: "Bar", Kind: "function", StructuralHash: "hash-bar"},
	}
	after := []Symbol{
		{Name: "Foo", Kind: "function", StructuralHash: "hash-foo-v2"},
		{Name: "Baz", Kind: "function", StructuralHash: "hash-baz"},
	}

	deltas := Diff(before, after)
	byName := map[string]Delta{}
	for _, d := range deltas {
		byName[d.SymbolName] = d
	}

	require.Equal(t, Modified, byName["Foo"].Kind)
	require.Equal(t, Deleted, byName["Bar"].Kind)
	require.Equal(t, Added, byName["Baz"].Kind)
}

func TestDiffDetectsRename(t *testing.T) {
	before := []Symbol{{Name: "OldName", Kind: "function", StructuralHash: "same-body"}}
	after := []Symbol{{Name: "NewName", Kind: "function", StructuralHash: "same-body"}}

	deltas := Diff(before, after)
	require.Len(t, deltas, 1)
	require.Equal(t, Renamed, deltas[0].Kind)
	require.Equal(t, "NewName", deltas[0].NewName)
}

func TestDiffNoChanges(t *testing.T) {
	syms := []Symbol{{Name: "Foo", Kind: "function", StructuralHash: "h"}}
	require.Empty(t, Diff(syms, syms))
}
