package server

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/slatex/stexls/stex/symbol"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
)

// The patterns below recognize the sTeX constructs SPEC_FULL.md §4.7.1
// names, each keyed to a prefix-span group so the textEdit can replace
// exactly what the user has typed so far.
var (
	reGImportRepo       = regexp.MustCompile(`\\gimport\{([^}]*)$`)
	reGImportModule     = regexp.MustCompile(`\\gimport\{[^}]*\}\{([^}]*)$`)
	reImportModuleRArg  = regexp.MustCompile(`\\importmodule\{([^}]*)$`)
	reImportModuleNamed = regexp.MustCompile(`\\importmodule\[[^]]*repos=([^,\]]*)$`)
	reTrefi             = regexp.MustCompile(`\\t?refi\[([a-zA-Z0-9_\-]*)\?([^\]]*)$`)
	reDefi              = regexp.MustCompile(`\\defi\{([a-zA-Z0-9_\- ]*)$`)
	reSymdef            = regexp.MustCompile(`\\symdef\{([^}]*)$`)
	reSymi              = regexp.MustCompile(`\\symi\{([^}]*)$`)
)

// Completion dispatches on which sTeX construct encloses the cursor using a
// regex-over-line-prefix match, one pattern per gimport/importmodule/
// trefi/defi/symdef/symi form.
func Completion(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.CompletionParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	content, err := s.Workspace.ReadFile(path)
	if err != nil {
		return marshalResponse(id, []transport.CompletionItem{})
	}
	offset, err := PositionToOffset(params.Position, content, s.encoding)
	if err != nil {
		return marshalResponse(id, []transport.CompletionItem{})
	}
	upToCursor := content[:offset]
	lineStart := strings.LastIndexByte(upToCursor, '\n') + 1
	prefix := upToCursor[lineStart:]

	var items []transport.CompletionItem
	switch {
	case reGImportModule.MatchString(prefix):
		m := reGImportModule.FindStringSubmatch(prefix)
		items = moduleCandidates(s, m[1], params.Position)
	case reGImportRepo.MatchString(prefix):
		m := reGImportRepo.FindStringSubmatch(prefix)
		items = repoCandidates(s, m[1], params.Position)
	case reImportModuleNamed.MatchString(prefix):
		m := reImportModuleNamed.FindStringSubmatch(prefix)
		items = repoCandidates(s, m[1], params.Position)
	case reImportModuleRArg.MatchString(prefix):
		m := reImportModuleRArg.FindStringSubmatch(prefix)
		items = moduleCandidates(s, m[1], params.Position)
	case reTrefi.MatchString(prefix):
		m := reTrefi.FindStringSubmatch(prefix)
		items = symbolCandidates(s, path, m[2], symbol.DefTypeDef, params.Position)
	case reDefi.MatchString(prefix):
		m := reDefi.FindStringSubmatch(prefix)
		items = symbolCandidates(s, path, m[1], symbol.DefTypeDef, params.Position)
	case reSymdef.MatchString(prefix):
		m := reSymdef.FindStringSubmatch(prefix)
		items = symbolCandidates(s, path, m[1], symbol.DefTypeSymdef, params.Position)
	case reSymi.MatchString(prefix):
		m := reSymi.FindStringSubmatch(prefix)
		items = symbolCandidates(s, path, m[1], symbol.DefTypeSym, params.Position)
	}
	return marshalResponse(id, items)
}

func completionEdit(typed string, label string, pos transport.Position) *transport.TextEdit {
	start := pos
	if uint32(len(typed)) <= pos.Character {
		start.Character = pos.Character - uint32(len(typed))
	}
	return &transport.TextEdit{Range: transport.Range{Start: start, End: pos}, NewText: label}
}

// repoCandidates/moduleCandidates enumerate from the workspace's compiled
// module index (option (a) of §4.7.1: no link pass required, just every
// known file/module).
func repoCandidates(s *Server, typed string, pos transport.Position) []transport.CompletionItem {
	seen := map[string]bool{}
	var out []transport.CompletionItem
	for file := range s.Driver.Modules() {
		repo := firstPathSegment(file, s.Workspace.Config.Root)
		if repo == "" || seen[repo] || !strings.HasPrefix(repo, typed) {
			continue
		}
		seen[repo] = true
		out = append(out, transport.CompletionItem{Label: repo, Kind: transport.CompletionItemKindModule, TextEdit: completionEdit(typed, repo, pos)})
	}
	return out
}

func moduleCandidates(s *Server, typed string, pos transport.Position) []transport.CompletionItem {
	var out []transport.CompletionItem
	for _, obj := range s.Driver.Modules() {
		for name, siblings := range obj.SymbolTable.Children {
			for _, c := range siblings {
				if c.Kind != symbol.KindModule || !strings.HasPrefix(name, typed) {
					continue
				}
				out = append(out, transport.CompletionItem{Label: name, Kind: transport.CompletionItemKindModule, TextEdit: completionEdit(typed, name, pos)})
			}
		}
	}
	return out
}

// symbolCandidates enumerates from the linked object's symbol table (option
// (b): filtered by definition kind and noverb status).
func symbolCandidates(s *Server, file, typed string, wantType symbol.DefType, pos transport.Position) []transport.CompletionItem {
	linked, ok := s.Driver.Linked(file)
	if !ok {
		return nil
	}
	var out []transport.CompletionItem
	var walk func(n *symbol.Symbol)
	walk = func(n *symbol.Symbol) {
		for _, siblings := range n.Children {
			for _, c := range siblings {
				if c.Kind == symbol.KindDef && c.DefType == wantType && !c.Noverb && strings.HasPrefix(c.Name, typed) {
					out = append(out, transport.CompletionItem{Label: c.Name, Kind: transport.CompletionItemKindValue, TextEdit: completionEdit(typed, c.Name, pos)})
				}
				walk(c)
			}
		}
	}
	walk(linked.SymbolTable)
	return out
}

func firstPathSegment(file, root string) string {
	rel := strings.TrimPrefix(file, root)
	rel = strings.TrimPrefix(rel, "/")
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
