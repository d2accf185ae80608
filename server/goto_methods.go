package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/slatex/stexls/loc"
	"github.com/slatex/stexls/stex/linker"
	"github.com/slatex/stexls/stex/symbol"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
)

// referenceAt returns the reference enclosing pos in linked, the smallest
// range first.
func referenceAt(linked *linker.LinkedObject, pos loc.Position) *compilerReference {
	var best *compilerReference
	for _, ref := range linked.References {
		if !rangeContains(ref.Range, pos) {
			continue
		}
		if best == nil || rangeSize(ref.Range) < rangeSize(best.Range) {
			best = &compilerReference{Range: ref.Range, QualifiedName: ref.QualifiedName}
		}
	}
	return best
}

type compilerReference struct {
	Range         loc.Range
	QualifiedName []string
}

func rangeContains(r loc.Range, p loc.Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character < r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character > r.End.Character {
		return false
	}
	return true
}

func rangeSize(r loc.Range) int {
	if r.Start.Line != r.End.Line {
		return int(r.End.Line-r.Start.Line) * 1_000_000
	}
	return int(r.End.Character - r.Start.Character)
}

// TextDocumentDefinition resolves the reference under the cursor against the
// file's linked symbol table and returns the defining symbol's location.
func TextDocumentDefinition(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.TextDocumentPositionParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	linked, ok := s.Driver.Linked(path)
	if !ok {
		return marshalResponse(id, nil)
	}
	ref := referenceAt(linked, loc.Position{Line: params.Position.Line, Character: params.Position.Character})
	if ref == nil {
		return marshalResponse(id, nil)
	}
	matches := symbol.Lookup(linked.SymbolTable, ref.QualifiedName)
	if len(matches) == 0 {
		return marshalResponse(id, nil)
	}
	return marshalResponse(id, transportLocation(matches[0].Location))
}

// TextDocumentReferences finds the symbol under the cursor, then scans every
// file's most recent linked object for references resolving to the same
// definition site. Symbol pointers differ per LinkedObject (Link deep-copies
// on merge), so symbols are compared by their defining Location rather than
// by identity.
func TextDocumentReferences(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.ReferenceParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	linked, ok := s.Driver.Linked(path)
	if !ok {
		return marshalResponse(id, []transport.Location{})
	}
	ref := referenceAt(linked, loc.Position{Line: params.Position.Line, Character: params.Position.Character})
	if ref == nil {
		return marshalResponse(id, []transport.Location{})
	}
	matches := symbol.Lookup(linked.SymbolTable, ref.QualifiedName)
	if len(matches) == 0 {
		return marshalResponse(id, []transport.Location{})
	}
	target := matches[0].Location

	var out []transport.Location
	if params.Context.IncludeDeclaration {
		out = append(out, transportLocation(target))
	}
	for _, other := range s.Driver.AllLinked() {
		for _, r := range other.References {
			resolved := symbol.Lookup(other.SymbolTable, r.QualifiedName)
			if len(resolved) == 0 || !sameLocation(resolved[0].Location, target) {
				continue
			}
			out = append(out, transportLocation(loc.Location{File: other.File, Range: r.Range}))
		}
	}
	return marshalResponse(id, out)
}

func sameLocation(a, b loc.Location) bool {
	return a.File == b.File && a.Range == b.Range
}

// TextDocumentSymbol builds a nested outline of the file's own symbol table
// (pre-link, so every definition and module within the file is visible
// regardless of its public/private access).
func TextDocumentSymbol(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.DocumentSymbolParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	obj, ok := s.Driver.Modules()[path]
	if !ok {
		return marshalResponse(id, []transport.DocumentSymbol{})
	}
	return marshalResponse(id, childSymbols(obj.SymbolTable))
}

func childSymbols(node *symbol.Symbol) []transport.DocumentSymbol {
	var out []transport.DocumentSymbol
	for _, siblings := range node.Children {
		for _, c := range siblings {
			out = append(out, transport.DocumentSymbol{
				Name:           c.Name,
				Kind:           symbolKindOf(c),
				Range:          transportRange(c.Location.Range),
				SelectionRange: transportRange(c.Location.Range),
				Children:       childSymbols(c),
			})
		}
	}
	return out
}

func symbolKindOf(s *symbol.Symbol) transport.SymbolKind {
	switch s.Kind {
	case symbol.KindModule:
		return transport.SymbolKindModule
	case symbol.KindBinding:
		return transport.SymbolKindNamespace
	case symbol.KindDef:
		return transport.SymbolKindConstant
	default:
		return transport.SymbolKindObject
	}
}

// WorkspaceSymbol returns every symbol, at any depth, of every compiled
// file whose dotted name contains params.Query case-insensitively; an
// empty query matches every symbol.
func WorkspaceSymbol(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.WorkspaceSymbolParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	query := strings.ToLower(params.Query)
	var out []transport.SymbolInformation
	for _, obj := range s.Driver.Modules() {
		collectWorkspaceSymbols(obj.SymbolTable, nil, query, &out)
	}
	return marshalResponse(id, out)
}

func collectWorkspaceSymbols(node *symbol.Symbol, prefix []string, query string, out *[]transport.SymbolInformation) {
	for _, siblings := range node.Children {
		for _, c := range siblings {
			path := append(append([]string{}, prefix...), c.Name)
			name := strings.Join(path, ".")
			if query == "" || strings.Contains(strings.ToLower(name), query) {
				*out = append(*out, transport.SymbolInformation{
					Name:     name,
					Kind:     symbolKindOf(c),
					Location: transportLocation(c.Location),
				})
			}
			collectWorkspaceSymbols(c, path, query, out)
		}
	}
}
