// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package symbols extracts named program constructs (functions, methods,
// types) from source files using Tree-sitter, and diffs two extractions
// of the same file into Added/Modified/Deleted/Renamed deltas.
package symbols

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// Kind mirrors metadb.SymbolKind without importing it, so this package
// stays independent of the storage layer.
type Kind string

const (
	Added    Kind = "Added"
	Modified Kind = "Modified"
	Deleted  Kind = "Deleted"
	Renamed  Kind = "Renamed"
)

// Symbol is one named construct found in a parse: its name, its node
// type ("function", "method", "type"), and a structural hash of its body
// text (independent of surrounding whitespace/comments would require a
// normalising pass; this implementation hashes the raw node bytes, which
// is sufficient to detect "changed" vs "unchanged").
type Symbol struct {
	Name           string
	Kind           string
	StructuralHash string
	StartLine      int
	EndLine        int
	StartByte      int
	EndByte        int
}

// Delta is one entry in a diff between two parses of the same file.
type Delta struct {
	SymbolName     string
	Kind           Kind
	NewName        string
	StructuralHash string
}

// Extractor parses source files into Symbol lists, one tree-sitter parser
// pool per supported language.
type Extractor struct {
	goPool sync.Pool
	pyPool sync.Pool
	jsPool sync.Pool
	once   sync.Once
}

// NewExtractor returns a ready-to-use Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) init() {
	e.once.Do(func() {
		e.goPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(golang.GetLanguage())
			return p
		}
		e.pyPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(python.GetLanguage())
			return p
		}
		e.jsPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(javascript.GetLanguage())
			return p
		}
	})
}

// languageFor maps a file extension to a supported language name, or ""
// if no adapter exists for it.
func languageFor(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	default:
		return ""
	}
}

// Supported reports whether path's extension has a parser adapter.
func Supported(path string) bool { return languageFor(path) != "" }

// Extract parses content as the language implied by path's extension. It
// returns a Semantic error if no adapter covers that extension, matching
// the contract that restore_symbol/find_symbols fail cleanly rather than
// inventing placeholder symbols.
func (e *Extractor) Extract(path string, content []byte) ([]Symbol, error) {
	lang := languageFor(path)
	if lang == "" {
		return nil, mnemerr.NewSemanticError(
			"No symbol adapter for this file type",
			"no Tree-sitter adapter is registered for "+filepath.Ext(path),
		)
	}
	e.init()

	var pool *sync.Pool
	switch lang {
	case "go":
		pool = &e.goPool
	case "python":
		pool = &e.pyPool
	case "javascript":
		pool = &e.jsPool
	}

	parserObj := pool.Get()
	parser := parserObj.(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, mnemerr.NewSemanticError("Parse failed", err.Error())
	}
	defer tree.Close()

	nodeTypes := declarationNodeTypesFor(lang)
	var out []Symbol
	walk(tree.RootNode(), func(n *sitter.Node) {
		kind, ok := nodeTypes[n.Type()]
		if !ok {
			return
		}
		name := declarationName(n, content)
		if name == "" {
			return
		}
		body := content[n.StartByte():n.EndByte()]
		sum := sha256.Sum256(body)
		out = append(out, Symbol{
			Name:           name,
			Kind:           kind,
			StructuralHash: hex.EncodeToString(sum[:]),
			StartLine:      int(n.StartPoint().Row) + 1,
			EndLine:        int(n.EndPoint().Row) + 1,
			StartByte:      int(n.StartByte()),
			EndByte:        int(n.EndByte()),
		})
	})
	return out, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func declarationNodeTypesFor(lang string) map[string]string {
	switch lang {
	case "go":
		return map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
			"type_spec":            "type",
		}
	case "python":
		return map[string]string{
			"function_definition": "function",
			"class_definition":    "type",
		}
	case "javascript":
		return map[string]string{
			"function_declaration": "function",
			"method_definition":    "method",
			"class_declaration":    "type",
		}
	default:
		return nil
	}
}

// declarationName finds the identifier child of a declaration node. Every
// grammar this package supports names its declared identifier field
// "name"; that's the only structural assumption made here.
func declarationName(n *sitter.Node, content []byte) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return string(content[nameNode.StartByte():nameNode.EndByte()])
}
