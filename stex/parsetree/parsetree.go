// Package parsetree recognizes sTeX-significant environments in a generic
// LaTeX parse tree (package latex) and builds the typed intermediate tree
// described in SPEC_FULL.md §3/§4.1.
//
// Grounded on original_source/stexls/stex/parser.py: every variant's
// PATTERN and argument-count validation rule is ported from
// IntermediateParseTree's subclasses.
package parsetree

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/slatex/stexls/latex"
	"github.com/slatex/stexls/loc"
)

// Kind tags the variant of an intermediate tree node.
type Kind int

const (
	KindScope Kind = iota
	KindModsig
	KindModnl
	KindModule
	KindView
	KindViewSig
	KindGViewSig
	KindGViewNl
	KindMhView
	KindDefi
	KindTrefi
	KindSymi
	KindSymdef
	KindImportModule
	KindGImport
	KindGUse
	KindGStructure
	KindTAssign
)

func (k Kind) String() string {
	names := []string{"Scope", "Modsig", "Modnl", "Module", "View", "ViewSig",
		"GViewSig", "GViewNl", "MhView", "Defi", "Trefi", "Symi", "Symdef",
		"ImportModule", "GImport", "GUse", "GStructure", "TAssign"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// ModuleAnnotation is the parsed [module?symbol]/[?symbol]/[module] Trefi
// target annotation.
type ModuleAnnotation struct {
	Module *string
	Symbol *string
}

// Tree is one node of the intermediate parse tree.
type Tree struct {
	Kind     Kind
	Location loc.Location
	Name     string // module/view name, defi/trefi generated name, etc.
	NameRange loc.Range

	Parent   *Tree
	Children []*Tree

	// Modnl / MhModnl
	Lang   string
	MhMode bool

	// Module
	ID        string
	Anonymous bool

	// View / ViewSig / GViewSig / GViewNl / MhView
	SourceModule string
	TargetModule string
	MhRepos      string
	ViewPath     string

	// Defi / Trefi
	Arity        int
	MFlag        bool
	AFlag        bool
	SFlag        bool
	StarFlag     bool
	Drefi        bool
	Tokens       []string
	NameOverride string
	Annotation   *ModuleAnnotation

	// Symi
	Noverbs map[string]struct{}

	// ImportModule
	Export   bool
	Dir      string
	Path     string
	Load     string
	ResolvedFile string

	// GImport / GUse
	Repo string
}

// FindParentModuleTree walks up Parent pointers for the first enclosing
// Modsig/Modnl/Module/View(Sig) node.
func (t *Tree) FindParentModuleTree() *Tree {
	for cur := t.Parent; cur != nil; cur = cur.Parent {
		switch cur.Kind {
		case KindModsig, KindModnl, KindModule, KindView, KindViewSig, KindGViewSig, KindGViewNl, KindMhView:
			return cur
		}
	}
	return nil
}

func (t *Tree) FindParentModuleName() string {
	if p := t.FindParentModuleTree(); p != nil {
		return p.Name
	}
	return ""
}

// ParserError is a single parse-time error, attached to a location.
type ParserError struct {
	Location loc.Location
	Err      error
}

// ParsedFile is the output of recognizing one file's latex.Node tree.
type ParsedFile struct {
	Path   string
	Roots  []*Tree
	Errors []ParserError
}

var (
	defiPattern     = regexp.MustCompile(`^([ma]*)(d|D)ef([ivx]+)(s)?(\*)?$`)
	trefiPattern    = regexp.MustCompile(`^([ma]*)(d|D|t|T)ref([ivx]+)(s)?(\*)?$`)
	symiPattern     = regexp.MustCompile(`^sym([ivx]+)$`)
	tvAssignPattern = regexp.MustCompile(`^(t|v)assign$`)
	modnlPattern    = regexp.MustCompile(`^(mh)?modnl$`)
)

var romanValues = map[byte]int{'i': 1, 'v': 5, 'x': 10}

func decodeRoman(s string) int {
	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

// Recognize builds the intermediate tree for one file's latex.Node tree.
func Recognize(path string, root *latex.Node) *ParsedFile {
	pf := &ParsedFile{Path: path}
	for _, child := range root.Children {
		if t, err := recognizeNode(path, child, nil, pf); err != nil {
			pf.Errors = append(pf.Errors, ParserError{Location: nodeLocation(path, child), Err: err})
		} else if t != nil {
			pf.Roots = append(pf.Roots, t)
		}
	}
	return pf
}

func nodeLocation(path string, n *latex.Node) loc.Location {
	return loc.Location{File: path, Range: n.Range}
}

// recognizeNode dispatches on n.Name and constructs the matching Tree
// variant, recursing into children afterward (children of recognized
// constructs are recognized in the new node's scope).
func recognizeNode(path string, n *latex.Node, parent *Tree, pf *ParsedFile) (*Tree, error) {
	if n.Name == "" {
		return nil, nil // plain text node, not a recognized environment
	}
	name := n.Name
	lower := strings.ToLower(name)

	var t *Tree
	switch {
	case lower == "modsig":
		if len(n.RArgs) != 1 {
			return nil, fmt.Errorf("modsig requires exactly one required argument (module name), got %d", len(n.RArgs))
		}
		t = &Tree{Kind: KindModsig, Name: n.RArg(0), NameRange: n.RArgs[0].Range}
	case modnlPattern.MatchString(lower):
		if len(n.RArgs) != 2 {
			return nil, fmt.Errorf("%s requires exactly two required arguments (module name, language), got %d", name, len(n.RArgs))
		}
		t = &Tree{Kind: KindModnl, Name: n.RArg(0), Lang: n.RArg(1), MhMode: modnlPattern.FindStringSubmatch(lower)[1] == "mh", NameRange: n.RArgs[0].Range}
	case lower == "module":
		id, hasID := n.OArgNamed("id")
		t = &Tree{Kind: KindModule, ID: id, Anonymous: !hasID, Name: id}
	case lower == "view":
		t = parseView(n, KindView)
	case lower == "viewsig":
		t = parseView(n, KindViewSig)
	case lower == "gviewsig":
		if len(n.RArgs) != 3 {
			return nil, fmt.Errorf("gviewsig requires exactly three required arguments, got %d", len(n.RArgs))
		}
		t = &Tree{Kind: KindGViewSig, Name: n.RArg(0), SourceModule: n.RArg(1), TargetModule: n.RArg(2), NameRange: n.RArgs[0].Range}
	case lower == "gviewnl":
		if len(n.RArgs) != 2 {
			return nil, fmt.Errorf("gviewnl requires exactly two required arguments (view name, language), got %d", len(n.RArgs))
		}
		t = &Tree{Kind: KindGViewNl, Name: n.RArg(0), Lang: n.RArg(1), NameRange: n.RArgs[0].Range}
	case lower == "mhview":
		t = parseView(n, KindMhView)
		if mhrepos, ok := n.OArgNamed("mhrepos"); ok {
			t.MhRepos = mhrepos
		}
		if p, ok := n.OArgNamed("path"); ok {
			t.ViewPath = p
		}
	case defiPattern.MatchString(name):
		var err error
		t, err = parseDefi(name, n)
		if err != nil {
			return nil, err
		}
	case trefiPattern.MatchString(name):
		var err error
		t, err = parseTrefi(name, n)
		if err != nil {
			return nil, err
		}
	case symiPattern.MatchString(lower):
		m := symiPattern.FindStringSubmatch(lower)
		arity := decodeRoman(m[1])
		if len(n.RArgs) != arity {
			return nil, fmt.Errorf("%s requires exactly %d required arguments, got %d", name, arity, len(n.RArgs))
		}
		t = &Tree{Kind: KindSymi, Arity: arity, Noverbs: parseNoverb(n)}
		if arity > 0 {
			t.Name = n.RArg(0)
			t.NameRange = n.RArgs[0].Range
		}
	case lower == "symdef":
		nameOverride, hasOverride := n.OArgNamed("name")
		name := nameOverride
		if !hasOverride && len(n.RArgs) > 0 {
			name = n.RArg(0)
		}
		t = &Tree{Kind: KindSymdef, Name: name, Noverbs: parseNoverb(n)}
	case lower == "importmodule":
		var err error
		t, err = parseImportModule(n)
		if err != nil {
			return nil, err
		}
	case lower == "gimport":
		if len(n.RArgs) != 1 {
			return nil, fmt.Errorf("gimport requires exactly one required argument (module), got %d", len(n.RArgs))
		}
		repo, _ := n.OArgPositional(0)
		t = &Tree{Kind: KindGImport, Name: n.RArg(0), Repo: repo, Export: true, NameRange: n.RArgs[0].Range}
	case lower == "guse":
		if len(n.RArgs) != 1 {
			return nil, fmt.Errorf("guse requires exactly one required argument (module), got %d", len(n.RArgs))
		}
		repo, _ := n.OArgPositional(0)
		t = &Tree{Kind: KindGUse, Name: n.RArg(0), Repo: repo, Export: false, NameRange: n.RArgs[0].Range}
	case lower == "gstructure":
		t = &Tree{Kind: KindGStructure}
	case tvAssignPattern.MatchString(lower):
		if len(n.RArgs) != 2 {
			return nil, fmt.Errorf("%s requires exactly two required arguments, got %d", name, len(n.RArgs))
		}
		t = &Tree{Kind: KindTAssign}
	default:
		// Unrecognized environment: treat as a textual scope / import
		// barrier, matching the generic "Scope" variant (omtext, frame,
		// example, ...). This is a deliberate generalization over the
		// original implementation's fixed environment-name whitelist: any
		// environment this recognizer does not specifically understand
		// still needs to act as a lookup barrier for the symbols nested
		// inside it.
		t = &Tree{Kind: KindScope, Name: name}
	}

	t.Location = nodeLocation(path, n)
	t.Parent = parent
	for _, c := range n.Children {
		child, err := recognizeNode(path, c, t, pf)
		if err != nil {
			pf.Errors = append(pf.Errors, ParserError{Location: nodeLocation(path, c), Err: err})
			continue
		}
		if child != nil {
			t.Children = append(t.Children, child)
		}
	}
	return t, nil
}

func parseView(n *latex.Node, kind Kind) *Tree {
	t := &Tree{Kind: kind}
	if len(n.RArgs) > 0 {
		t.Name = n.RArg(0)
		t.NameRange = n.RArgs[0].Range
	}
	if from, ok := n.OArgNamed("from"); ok {
		t.SourceModule = from
	} else if len(n.RArgs) > 1 {
		t.SourceModule = n.RArg(1)
	}
	if to, ok := n.OArgNamed("to"); ok {
		t.TargetModule = to
	} else if len(n.RArgs) > 2 {
		t.TargetModule = n.RArg(2)
	}
	return t
}

// parseDefi handles the defi family (defi, adefi, mdefi, Defis, ...): a
// definition occurrence of a symbol, generated name from its token
// arguments.
func parseDefi(name string, n *latex.Node) (*Tree, error) {
	m := defiPattern.FindStringSubmatch(name)
	flags, roman, sFlag, starFlag := m[1], m[3], m[4] != "", m[5] != ""
	mFlag := strings.ContainsAny(flags, "mM")
	aFlag := strings.ContainsAny(flags, "aA")
	arity := decodeRoman(strings.ToLower(roman))

	expectedArgs := arity
	if aFlag {
		expectedArgs++
	}
	if len(n.RArgs) != expectedArgs {
		return nil, fmt.Errorf("%s requires exactly %d required arguments, got %d", name, expectedArgs, len(n.RArgs))
	}

	tokenStart := 0
	if aFlag {
		tokenStart = 1
	}
	var tokens []string
	for _, a := range n.RArgs[tokenStart:] {
		tokens = append(tokens, a.Value)
	}
	generatedName := strings.Join(tokens, "-")

	t := &Tree{
		Kind: KindDefi,
		MFlag: mFlag, AFlag: aFlag, SFlag: sFlag, StarFlag: starFlag,
		Arity: arity, Tokens: tokens, Name: generatedName,
	}
	if len(n.RArgs) > tokenStart {
		t.NameRange = n.RArgs[tokenStart].Range
	}
	return t, nil
}

// parseTrefi handles the trefi family, which also covers the d/D letter
// forms (drefi, Drefi, ...): every trefi, regardless of its flag letters,
// compiles to a reference, with Drefi recording whether the macro was
// spelled with the d/D letter rather than t/T.
func parseTrefi(name string, n *latex.Node) (*Tree, error) {
	m := trefiPattern.FindStringSubmatch(name)
	flags, letter, roman, sFlag, starFlag := m[1], m[2], m[3], m[4] != "", m[5] != ""
	mFlag := strings.ContainsAny(flags, "mM")
	aFlag := strings.ContainsAny(flags, "aA")
	arity := decodeRoman(strings.ToLower(roman))

	expectedArgs := arity
	if aFlag {
		expectedArgs++
	}
	if len(n.RArgs) != expectedArgs {
		return nil, fmt.Errorf("%s requires exactly %d required arguments, got %d", name, expectedArgs, len(n.RArgs))
	}

	tokenStart := 0
	if aFlag {
		tokenStart = 1
	}
	var tokens []string
	for _, a := range n.RArgs[tokenStart:] {
		tokens = append(tokens, a.Value)
	}
	generatedName := strings.Join(tokens, "-")

	t := &Tree{
		Kind: KindTrefi,
		MFlag: mFlag, AFlag: aFlag, SFlag: sFlag, StarFlag: starFlag,
		Arity: arity, Tokens: tokens, Name: generatedName,
		Drefi: letter == "d" || letter == "D",
	}
	if len(n.RArgs) > tokenStart {
		t.NameRange = n.RArgs[tokenStart].Range
	}

	module, symbol, hasAnnotation := parseTrefiAnnotation(n)
	if hasAnnotation {
		t.Annotation = &ModuleAnnotation{Module: module, Symbol: symbol}
	}
	if mFlag && (!hasAnnotation || symbol == nil) {
		return t, fmt.Errorf("mtref requires ?<symbol> annotation syntax")
	}
	return t, nil
}

// parseTrefiAnnotation parses the optional [module?symbol] / [?symbol] /
// [module] target annotation from a Trefi's optional arguments.
func parseTrefiAnnotation(n *latex.Node) (module, sym *string, ok bool) {
	for _, a := range n.OArgs {
		if a.Name != "" {
			continue
		}
		v := a.Value
		if idx := strings.IndexByte(v, '?'); idx >= 0 {
			modPart := v[:idx]
			symPart := v[idx+1:]
			if modPart != "" {
				module = &modPart
			}
			symPart2 := symPart
			sym = &symPart2
			return module, sym, true
		}
		modPart := v
		module = &modPart
		return module, nil, true
	}
	return nil, nil, false
}

// parseNoverb recognizes both the bare "[noverb]" flag (all languages) and
// the "[noverb=en;de]" form (specific languages only). A bare flag is
// recorded as the wildcard entry "*".
func parseNoverb(n *latex.Node) map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range n.OArgs {
		if a.Name == "" && a.Value == "noverb" {
			out["*"] = struct{}{}
		}
	}
	if langs, ok := n.OArgNamed("noverb"); ok {
		if langs == "" || langs == "true" {
			out["*"] = struct{}{}
		} else {
			for _, l := range strings.Split(langs, ";") {
				l = strings.TrimSpace(l)
				if l != "" {
					out[l] = struct{}{}
				}
			}
		}
	}
	return out
}

func parseImportModule(n *latex.Node) (*Tree, error) {
	if len(n.RArgs) < 1 {
		return nil, fmt.Errorf("importmodule requires a module name argument")
	}
	t := &Tree{Kind: KindImportModule, Name: n.RArg(0), NameRange: n.RArgs[0].Range, Export: true}
	if useFlag, ok := n.OArgNamed("use"); ok && (useFlag == "" || useFlag == "true") {
		t.Export = false
	}
	for _, a := range n.OArgs {
		if a.Name == "" && a.Value == "use" {
			t.Export = false
		}
	}
	mhrepos, hasMhrepos := n.OArgNamed("mhrepos")
	repos, hasRepos := n.OArgNamed("repos")
	dir, hasDir := n.OArgNamed("dir")
	path, hasPath := n.OArgNamed("path")
	load, hasLoad := n.OArgNamed("load")

	t.MhRepos = mhrepos
	t.Dir = dir
	t.Path = path
	t.Load = load
	t.Repo = repos
	t.MhMode = hasMhrepos || hasDir || hasPath

	if t.MhMode {
		if hasLoad {
			return nil, fmt.Errorf("importmodule: load is forbidden in mh mode")
		}
		if hasDir && hasPath {
			return nil, fmt.Errorf("importmodule: at most one of dir/path may be set in mh mode")
		}
	} else {
		if !hasLoad {
			return nil, fmt.Errorf("importmodule: load is mandatory outside mh mode")
		}
		if hasMhrepos || hasDir || hasPath {
			return nil, fmt.Errorf("importmodule: mhrepos/dir/path are forbidden outside mh mode")
		}
	}
	if hasRepos {
		// deprecated; surfaced as a diagnostic by the compiler, not here.
		t.MhRepos = repos
	}
	return t, nil
}
