// Package linker computes per-root build orders across a workspace's
// compiled files, merges their public symbol tables into one linked object,
// and validates every reference against that closure.
//
// Grounded on original_source/stexls/stex/linker.py's Linker class
// (_make_build_order, relevant_objects, _validate_references).
package linker

import (
	"sort"
	"strings"

	"github.com/slatex/stexls/loc"
	"github.com/slatex/stexls/stex/compiler"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/stex/symbol"
)

// FileIndex maps a compiled file's path to its StexObject; it is the
// workspace-wide module index a link pass is run against, rebuilt as a
// snapshot at the start of every pass (SPEC_FULL.md §5).
type FileIndex map[string]*compiler.StexObject

// MakeBuildOrder returns current's dependency closure in dependency-before-
// dependent order, deduplicated, ending with current. Diagnostics for
// unresolved or cyclic dependencies are appended to diags.
func MakeBuildOrder(current *compiler.StexObject, modules FileIndex, diags *diagnostic.Bag) []*compiler.StexObject {
	return makeBuildOrder(current, modules, diags, map[*compiler.StexObject]loc.Location{}, true, false, current, map[*compiler.StexObject][]*compiler.StexObject{})
}

func makeBuildOrder(
	current *compiler.StexObject,
	modules FileIndex,
	diags *diagnostic.Bag,
	cyclicStack map[*compiler.StexObject]loc.Location,
	atToplevel bool,
	useOnStack bool,
	root *compiler.StexObject,
	cache map[*compiler.StexObject][]*compiler.StexObject,
) []*compiler.StexObject {
	// Memoization applies only to the fully-resolved top-level result: a
	// non-toplevel call's order depends on useOnStack/cyclicStack context
	// that the cache key (current alone) cannot distinguish, so only the
	// toplevel entry point reads and writes it.
	if atToplevel {
		if cached, ok := cache[current]; ok {
			return cached
		}
	}

	var order []*compiler.StexObject
	seenAtToplevel := map[string]loc.Range{}

	for _, dep := range current.Dependencies {
		depObj, ok := modules[dep.FileHint]
		if !ok {
			if atToplevel {
				diags.FileNotFound(dep.Range, dep.FileHint)
			}
			continue
		}
		if !isExported(depObj, dep.ModuleName) {
			if atToplevel {
				diags.UndefinedModuleNotExported(dep.Range, dep.ModuleName, dep.FileHint)
			}
			continue
		}
		if atToplevel {
			if _, dup := seenAtToplevel[dep.ModuleName]; dup {
				diags.UnableToLinkNonUniqueModule(dep.Range, dep.ModuleName, current.File)
				continue
			}
			seenAtToplevel[dep.ModuleName] = dep.Range
		}
		if !dep.Export && !atToplevel {
			continue
		}
		if prevLoc, onStack := cyclicStack[depObj]; onStack {
			if depObj == root {
				diags.CyclicDependency(prevLoc.Range, dep.ModuleName, loc.Location{File: current.File, Range: dep.Range})
			}
			continue
		}
		if useOnStack && depObj == root {
			continue
		}

		// root stays on the stack while a top-level import is followed, so
		// an import reaching root again is reported at that top-level import.
		if atToplevel {
			cyclicStack[root] = loc.Location{File: current.File, Range: dep.Range}
		}
		cyclicStack[depObj] = loc.Location{File: current.File, Range: dep.Range}
		sub := makeBuildOrder(depObj, modules, diags, cyclicStack, false, useOnStack || !dep.Export, root, cache)
		delete(cyclicStack, depObj)
		if atToplevel {
			delete(cyclicStack, root)
		}
		order = appendUnique(order, sub...)
	}
	order = appendUnique(order, current)
	if atToplevel {
		cache[current] = order
	}
	return order
}

func appendUnique(order []*compiler.StexObject, items ...*compiler.StexObject) []*compiler.StexObject {
	for _, item := range items {
		found := false
		for _, existing := range order {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			order = append(order, item)
		}
	}
	return order
}

func isExported(obj *compiler.StexObject, moduleName string) bool {
	for _, s := range obj.SymbolTable.Children[moduleName] {
		if s.VisibleAccess() == symbol.AccessPublic {
			return true
		}
	}
	return false
}

// LinkedObject is the transitive public closure of current's imports plus
// current's own symbols, together with every merged reference and
// diagnostic (SPEC_FULL.md §4.4).
type LinkedObject struct {
	File        string
	SymbolTable *symbol.Symbol
	References  []*compiler.Reference
	Diagnostics *diagnostic.Bag

	// scopeMap translates a Reference.Scope pointer (a node in some
	// contributing StexObject's own, pre-merge symbol tree) to its copy in
	// SymbolTable, since mergeSymbols deep-copies every contributor's
	// symbols and no pointer survives the merge unchanged.
	scopeMap map[*symbol.Symbol]*symbol.Symbol
}

// Link merges a build order into one LinkedObject. Every object but current
// contributes only its PUBLIC symbol subtree (via the import protocol);
// current itself contributes its full symbol subtree, since self-relative
// and private references must still resolve against it.
func Link(buildOrder []*compiler.StexObject, current *compiler.StexObject) *LinkedObject {
	root := symbol.NewRoot(current.File)
	diags := &diagnostic.Bag{}
	var refs []*compiler.Reference
	scopeMap := map[*symbol.Symbol]*symbol.Symbol{}
	for _, o := range buildOrder {
		scopeMap[o.SymbolTable] = root
		mergeSymbols(root, o.SymbolTable, o != current, scopeMap)
		refs = append(refs, o.References...)
		if o.Diagnostics != nil {
			diags.Items = append(diags.Items, o.Diagnostics.Items...)
		}
	}
	return &LinkedObject{File: current.File, SymbolTable: root, References: refs, Diagnostics: diags, scopeMap: scopeMap}
}

// mergeSymbols deep-copies src's children into dst, recursing through
// Module/Binding/Scope barriers, and records each original-to-copy pair in
// scopeMap so a pre-merge Reference.Scope can later be translated into the
// merged tree. When publicOnly is set (every contributor except current
// itself), children whose visible access is not PUBLIC are skipped -- this
// is package symbol's import_from protocol, reimplemented here because the
// linker additionally needs the publicOnly=false variant for current's own
// contribution.
func mergeSymbols(dst, src *symbol.Symbol, publicOnly bool, scopeMap map[*symbol.Symbol]*symbol.Symbol) {
	for _, siblings := range src.Children {
		for _, child := range siblings {
			if publicOnly && child.VisibleAccess() != symbol.AccessPublic {
				continue
			}
			cp := copySymbolShallow(child)
			if err := symbol.AddChild(dst, cp, true); err != nil {
				continue
			}
			scopeMap[child] = cp
			if cp.Kind == symbol.KindModule || cp.Kind == symbol.KindBinding || cp.Kind == symbol.KindScope {
				mergeSymbols(cp, child, publicOnly, scopeMap)
			}
		}
	}
}

// translateScope returns the merged-tree node corresponding to a reference's
// pre-merge scope, falling back to the merged root if the scope was never
// copied (e.g. a reference recorded against a symbol later rejected by
// AddChild).
func (l *LinkedObject) translateScope(scope *symbol.Symbol) *symbol.Symbol {
	if scope == nil {
		return l.SymbolTable
	}
	if cp, ok := l.scopeMap[scope]; ok {
		return cp
	}
	return l.SymbolTable
}

func copySymbolShallow(s *symbol.Symbol) *symbol.Symbol {
	cp := *s
	cp.Parent = nil
	cp.Children = make(map[string][]*symbol.Symbol)
	if s.Noverbs != nil {
		cp.Noverbs = make(symbol.NoverbSet, len(s.Noverbs))
		for k := range s.Noverbs {
			cp.Noverbs[k] = struct{}{}
		}
	}
	return &cp
}

// ValidateReferences resolves every reference in linked via
// symbol.Lookup(scope, ref.QualifiedName), where scope is ref.Scope
// translated into the merged symbol tree, and appends the resulting
// diagnostics (undefined-symbol, reference-type-check, referenced-noverb-
// symbol, never-referenced) to linked.Diagnostics.
func ValidateReferences(linked *LinkedObject) {
	referenced := map[*symbol.Symbol]bool{}

	for _, ref := range linked.References {
		scope := linked.translateScope(ref.Scope)
		matches := symbol.Lookup(scope, ref.QualifiedName)
		if len(matches) == 0 {
			wantSymbols := ref.ReferenceType.Has(compiler.RefDef | compiler.RefDref | compiler.RefSymdef | compiler.RefSym)
			candidates := collectCandidateNames(linked.SymbolTable, nil, wantSymbols)
			suggestions := fuzzyMatch(strings.Join(ref.QualifiedName, "."), candidates, 3)
			linked.Diagnostics.UndefinedSymbol(ref.Range, strings.Join(ref.QualifiedName, "."), suggestions)
			continue
		}
		for _, m := range matches {
			referenced[m] = true
		}
		resolved := matches[0]
		if !matchesReferenceType(resolved, ref.ReferenceType) {
			linked.Diagnostics.ReferenceTypeCheck(ref.Range, ref.ReferenceType.String(), describeSymbolType(resolved))
		}
		if resolved.Kind == symbol.KindDef && resolved.Noverb {
			if lang, ok := enclosingBindingLang(scope); ok {
				if _, all := resolved.Noverbs["*"]; all {
					linked.Diagnostics.SymbolIsNoverb(ref.Range, resolved.Name, "", nil)
				} else if _, has := resolved.Noverbs[lang]; has {
					linked.Diagnostics.SymbolIsNoverb(ref.Range, resolved.Name, lang, nil)
				}
			}
		}
	}

	collectDefs(linked.SymbolTable, linked.File, func(s *symbol.Symbol) {
		if !referenced[s] {
			linked.Diagnostics.NeverReferenced(s.Location.Range, s.Name)
		}
	})
}

func matchesReferenceType(s *symbol.Symbol, rt compiler.ReferenceType) bool {
	switch s.Kind {
	case symbol.KindModule:
		if s.ModuleType == symbol.ModuleTypeModsig {
			return rt.Has(compiler.RefModsig)
		}
		return rt.Has(compiler.RefModule)
	case symbol.KindBinding:
		return rt.Has(compiler.RefBinding)
	case symbol.KindDef:
		switch s.DefType {
		case symbol.DefTypeDef:
			return rt.Has(compiler.RefDef)
		case symbol.DefTypeDref:
			return rt.Has(compiler.RefDref)
		case symbol.DefTypeSymdef:
			return rt.Has(compiler.RefSymdef)
		case symbol.DefTypeSym:
			return rt.Has(compiler.RefSym)
		}
	}
	return false
}

func describeSymbolType(s *symbol.Symbol) string {
	if s.Kind == symbol.KindDef {
		return s.DefType.String()
	}
	return s.Kind.String()
}

func enclosingBindingLang(s *symbol.Symbol) (string, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == symbol.KindBinding {
			return cur.Lang, true
		}
	}
	return "", false
}

func collectDefs(node *symbol.Symbol, file string, fn func(*symbol.Symbol)) {
	for _, siblings := range node.Children {
		for _, c := range siblings {
			if c.Kind == symbol.KindDef && c.Location.File == file {
				fn(c)
			}
			collectDefs(c, file, fn)
		}
	}
}

type candidate struct {
	name string
	loc  loc.Location
}

func collectCandidateNames(node *symbol.Symbol, prefix []string, wantSymbols bool) []candidate {
	var out []candidate
	for _, siblings := range node.Children {
		for _, c := range siblings {
			path := append(append([]string{}, prefix...), c.Name)
			isMatch := (wantSymbols && c.Kind == symbol.KindDef) || (!wantSymbols && c.Kind == symbol.KindModule)
			if isMatch {
				out = append(out, candidate{name: strings.Join(path, "."), loc: c.Location})
			}
			out = append(out, collectCandidateNames(c, path, wantSymbols)...)
		}
	}
	return out
}

// fuzzyMatch returns up to n candidates whose normalized edit-distance
// ratio against target is >= 0.6, highest ratio first. Grounded on
// difflib.get_close_matches's cutoff/count contract (SPEC_FULL.md §4.4);
// the ratio itself is a normalized Levenshtein ratio rather than
// difflib's SequenceMatcher ratio, since no string-similarity library
// appears anywhere in the dependency corpus (see DESIGN.md).
func fuzzyMatch(target string, candidates []candidate, n int) []diagnostic.SimilarSymbol {
	type scored struct {
		candidate
		ratio float64
	}
	var scoredList []scored
	for _, c := range candidates {
		r := levenshteinRatio(target, c.name)
		if r >= 0.6 {
			scoredList = append(scoredList, scored{c, r})
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].ratio > scoredList[j].ratio })
	if len(scoredList) > n {
		scoredList = scoredList[:n]
	}
	out := make([]diagnostic.SimilarSymbol, len(scoredList))
	for i, s := range scoredList {
		out[i] = diagnostic.SimilarSymbol{Name: s.name, Location: s.loc}
	}
	return out
}

func levenshteinRatio(a, b string) float64 {
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
