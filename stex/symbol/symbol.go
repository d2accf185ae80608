// Package symbol implements the sTeX symbol table: a recursive, tagged tree
// of Module/Binding/Def/Scope/Root symbols with scoped, barrier-respecting
// lookup and the import-materialization protocol used by the linker.
//
// Grounded on original_source/stexls/stex/symbols.py; see DESIGN.md.
package symbol

import (
	"fmt"

	"github.com/slatex/stexls/loc"
)

// Kind tags the variant of a Symbol.
type Kind int

const (
	KindRoot Kind = iota
	KindModule
	KindBinding
	KindDef
	KindScope
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindModule:
		return "module"
	case KindBinding:
		return "binding"
	case KindDef:
		return "def"
	case KindScope:
		return "scope"
	default:
		return "unknown"
	}
}

// ModuleType distinguishes a module signature from a fully semantic module.
type ModuleType int

const (
	ModuleTypeModsig ModuleType = iota
	ModuleTypeModule
)

// DefType distinguishes the four kinds of definition-like symbol.
type DefType int

const (
	DefTypeDef DefType = iota
	DefTypeDref
	DefTypeSymdef
	DefTypeSym
)

func (d DefType) String() string {
	switch d {
	case DefTypeDef:
		return "DEF"
	case DefTypeDref:
		return "DREF"
	case DefTypeSymdef:
		return "SYMDEF"
	case DefTypeSym:
		return "SYM"
	default:
		return "?"
	}
}

// Access is the declared visibility of a symbol.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// mostRestrictive returns whichever of a, b is more restrictive
// (Private > Protected > Public).
func mostRestrictive(a, b Access) Access {
	if a > b {
		return a
	}
	return b
}

// NoverbSet is an unordered set of language tags. Comparison between two
// NoverbSets must be unordered equality (resolved Open Question, see
// SPEC_FULL.md §9) -- never compared as an ordered sequence.
type NoverbSet map[string]struct{}

func NewNoverbSet(langs ...string) NoverbSet {
	s := make(NoverbSet, len(langs))
	for _, l := range langs {
		s[l] = struct{}{}
	}
	return s
}

func (s NoverbSet) Equal(other NoverbSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Symbol is one node of the per-file symbol table.
type Symbol struct {
	Kind     Kind
	Name     string
	Location loc.Location
	Access   Access

	// Module-specific
	ModuleType ModuleType

	// Binding-specific
	Lang string

	// Def-specific
	DefType DefType
	Noverb  bool
	Noverbs NoverbSet

	Parent   *Symbol
	Children map[string][]*Symbol
}

func newBase(kind Kind, name string, location loc.Location) *Symbol {
	return &Symbol{
		Kind:     kind,
		Name:     name,
		Location: location,
		Access:   AccessPublic,
		Children: make(map[string][]*Symbol),
	}
}

// NewRoot constructs the synthetic per-file root container.
func NewRoot(file string) *Symbol {
	return newBase(KindRoot, "__root__", loc.WholeFile(file))
}

func NewModule(name string, location loc.Location, mtype ModuleType) *Symbol {
	s := newBase(KindModule, name, location)
	s.ModuleType = mtype
	return s
}

func NewBinding(name string, location loc.Location, lang string) *Symbol {
	s := newBase(KindBinding, name, location)
	s.Lang = lang
	return s
}

func NewScope(name string, location loc.Location) *Symbol {
	return newBase(KindScope, name, location)
}

func NewDef(name string, location loc.Location, defType DefType) *Symbol {
	s := newBase(KindDef, name, location)
	s.DefType = defType
	s.Noverbs = make(NoverbSet)
	return s
}

// IsBarrier reports whether lookup from inside this symbol may not escape
// upward past it (Module and Binding are barriers; everything else is not).
func (s *Symbol) IsBarrier() bool {
	return s.Kind == KindModule || s.Kind == KindBinding
}

// VisibleAccess is the intersection (most-restrictive combination) of this
// symbol's own access with its parent chain's visible access, computed
// lazily (no caching -- the tree is small and built once per file).
func (s *Symbol) VisibleAccess() Access {
	if s.Parent == nil {
		return s.Access
	}
	return mostRestrictive(s.Access, s.Parent.VisibleAccess())
}

// DuplicateSymbolError reports a rejected AddChild call.
type DuplicateSymbolError struct {
	Name     string
	Previous loc.Location
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("symbol %q previously defined at %s", e.Name, e.Previous)
}

// InvalidRedefinitionError reports an "alternative" AddChild whose signature
// disagrees with the existing definition(s) of the same name.
type InvalidRedefinitionError struct {
	Name  string
	Other loc.Location
	Info  string
}

func (e *InvalidRedefinitionError) Error() string {
	return fmt.Sprintf("invalid redefinition of %q (previously at %s): %s", e.Name, e.Other, e.Info)
}

// sameSignature reports whether two symbols are compatible "alternatives":
// same Kind, same DefType (when Kind==Def), and identical noverb signature.
func sameSignature(a, b *Symbol) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindDef {
		if a.DefType != b.DefType {
			return false
		}
		if a.Noverb != b.Noverb {
			return false
		}
		if !a.Noverbs.Equal(b.Noverbs) {
			return false
		}
	}
	return true
}

// AddChild inserts child under parent keyed by child.Name. If a child with
// the same name already exists, the insert is rejected with
// DuplicateSymbolError unless alternative is true, in which case it
// succeeds only when every existing member with that name has the same
// Kind, DefType and noverb signature as child; otherwise
// InvalidRedefinitionError is returned.
func AddChild(parent, child *Symbol, alternative bool) error {
	existing := parent.Children[child.Name]
	if len(existing) > 0 {
		if !alternative {
			return &DuplicateSymbolError{Name: child.Name, Previous: existing[0].Location}
		}
		for _, e := range existing {
			if !sameSignature(e, child) {
				return &InvalidRedefinitionError{
					Name:  child.Name,
					Other: e.Location,
					Info:  fmt.Sprintf("incompatible redefinition of %q", child.Name),
				}
			}
		}
	}
	child.Parent = parent
	parent.Children[child.Name] = append(parent.Children[child.Name], child)
	return nil
}

// Find descends strictly into node.Children[rest[0]], recursing until rest
// is exhausted; on an empty rest it returns node itself (wrapped in a
// single-element slice for a uniform result shape).
func Find(node *Symbol, rest []string) []*Symbol {
	if len(rest) == 0 {
		return []*Symbol{node}
	}
	children := node.Children[rest[0]]
	if len(children) == 0 {
		return nil
	}
	var out []*Symbol
	for _, c := range children {
		out = append(out, Find(c, rest[1:])...)
	}
	return out
}

// Lookup resolves namePath starting at start, honoring lookup barriers and
// the self-relative fallback described in SPEC_FULL.md §4.3.
func Lookup(start *Symbol, namePath []string) []*Symbol {
	if len(namePath) == 0 {
		return nil
	}
	if children := start.Children[namePath[0]]; len(children) > 0 {
		var out []*Symbol
		for _, c := range children {
			out = append(out, Find(c, namePath[1:])...)
		}
		if len(out) > 0 {
			return out
		}
	}
	if !start.IsBarrier() && start.Parent != nil {
		if out := Lookup(start.Parent, namePath); len(out) > 0 {
			return out
		}
	}
	if start.Name == namePath[0] && !start.IsBarrier() {
		return Find(start, namePath[1:])
	}
	return nil
}

// ImportFrom deep-copies every PUBLIC descendant of module into dst's
// child set, preserving noverb signatures. Re-imports (a child with the
// same name and matching signature already present) are silently skipped;
// conflicting names are swallowed here -- they surface as link diagnostics,
// never as panics, per SPEC_FULL.md §4.3.
func ImportFrom(dst *Symbol, module *Symbol) {
	for _, siblings := range module.Children {
		for _, child := range siblings {
			if child.VisibleAccess() != AccessPublic {
				continue
			}
			copied := shallowCopy(child)
			if err := AddChild(dst, copied, true); err != nil {
				continue
			}
			if child.Kind == KindModule || child.Kind == KindBinding || child.Kind == KindScope {
				ImportFrom(copied, child)
			}
		}
	}
}

func shallowCopy(s *Symbol) *Symbol {
	cp := *s
	cp.Parent = nil
	cp.Children = make(map[string][]*Symbol)
	if s.Noverbs != nil {
		cp.Noverbs = make(NoverbSet, len(s.Noverbs))
		for k := range s.Noverbs {
			cp.Noverbs[k] = struct{}{}
		}
	}
	return &cp
}
