// Package compiler implements the per-file object compiler: walking the
// intermediate parse tree (package stex/parsetree) to build a StexObject
// (symbol table, dependencies, references, diagnostics).
//
// Grounded on original_source/stexls/stex/compiler.py's Compiler.compile and
// the individual _compile_* dispatch methods referenced throughout.
package compiler

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/slatex/stexls/latex"
	"github.com/slatex/stexls/loc"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/stex/parsetree"
	"github.com/slatex/stexls/stex/symbol"
)

// ReferenceType is a bitflag over the kinds of symbol a Reference may
// legally resolve to.
type ReferenceType uint16

const (
	RefBinding ReferenceType = 1 << iota
	RefModule
	RefModsig
	RefViewsig
	RefViewmod
	RefDef
	RefDref
	RefSymdef
	RefSym
)

func (rt ReferenceType) Has(other ReferenceType) bool { return rt&other != 0 }

func (rt ReferenceType) String() string {
	names := []struct {
		flag ReferenceType
		name string
	}{
		{RefBinding, "BINDING"}, {RefModule, "MODULE"}, {RefModsig, "MODSIG"},
		{RefViewsig, "VIEWSIG"}, {RefViewmod, "VIEWMOD"}, {RefDef, "DEF"},
		{RefDref, "DREF"}, {RefSymdef, "SYMDEF"}, {RefSym, "SYM"},
	}
	var parts []string
	for _, n := range names {
		if rt.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Dependency is a required module that must be resolved at link time.
type Dependency struct {
	Range          loc.Range
	Scope          *symbol.Symbol
	ModuleName     string
	ModuleTypeHint symbol.ModuleType
	FileHint       string
	Export         bool
}

// Reference is a symbol-table lookup that must succeed at link time.
type Reference struct {
	Range         loc.Range
	Scope         *symbol.Symbol
	QualifiedName []string
	ReferenceType ReferenceType
}

// StexObject is the compiled artifact of a single source file.
type StexObject struct {
	File         string
	SymbolTable  *symbol.Symbol
	Dependencies []*Dependency
	References   []*Reference
	Diagnostics  *diagnostic.Bag
}

// LogValue gives slog a structured, size-bounded view of the compiled
// object.
func (o *StexObject) LogValue() slog.Value {
	diagCount := 0
	if o.Diagnostics != nil {
		diagCount = len(o.Diagnostics.Items)
	}
	return slog.GroupValue(
		slog.String("file", o.File),
		slog.Int("dependencies", len(o.Dependencies)),
		slog.Int("references", len(o.References)),
		slog.Int("diagnostics", diagCount),
	)
}

// Compiler holds the workspace root used for import path resolution.
type Compiler struct {
	Root string
}

func New(root string) *Compiler {
	return &Compiler{Root: root}
}

// Compile parses and compiles one file's content into a StexObject. It never
// fails: parser and compile-time errors are recorded as diagnostics on the
// returned object.
func (c *Compiler) Compile(file string, content string) *StexObject {
	obj := &StexObject{
		File:        file,
		SymbolTable: symbol.NewRoot(file),
		Diagnostics: &diagnostic.Bag{},
	}

	root := latex.Parse(file, content)
	pf := parsetree.Recognize(file, root)
	for _, perr := range pf.Errors {
		obj.Diagnostics.ParserException(perr.Location.Range, perr.Err)
	}

	w := &walker{c: c, file: file, obj: obj}
	for _, t := range pf.Roots {
		w.visit(t, obj.SymbolTable)
	}
	return obj
}

type walker struct {
	c    *Compiler
	file string
	obj  *StexObject
}

func (w *walker) visit(t *parsetree.Tree, ctx *symbol.Symbol) {
	switch t.Kind {
	case parsetree.KindScope:
		scope := symbol.NewScope(t.Name, t.Location)
		_ = symbol.AddChild(ctx, scope, true)
		w.visitChildren(t, scope)
	case parsetree.KindModsig:
		w.compileModsig(t, ctx)
	case parsetree.KindModnl:
		w.compileModnl(t, ctx)
	case parsetree.KindModule:
		w.compileModule(t, ctx)
	case parsetree.KindView, parsetree.KindViewSig, parsetree.KindGViewSig, parsetree.KindGViewNl, parsetree.KindMhView:
		w.compileView(t, ctx)
	case parsetree.KindDefi:
		w.compileDefi(t, ctx)
	case parsetree.KindTrefi:
		w.compileTrefi(t, ctx)
	case parsetree.KindSymi:
		w.compileSymi(t, ctx)
	case parsetree.KindSymdef:
		w.compileSymdef(t, ctx)
	case parsetree.KindImportModule:
		w.compileImportModule(t, ctx)
	case parsetree.KindGImport, parsetree.KindGUse:
		w.compileGImport(t, ctx)
	case parsetree.KindGStructure, parsetree.KindTAssign:
		w.visitChildren(t, ctx)
	default:
		w.visitChildren(t, ctx)
	}
}

func (w *walker) visitChildren(t *parsetree.Tree, ctx *symbol.Symbol) {
	for _, c := range t.Children {
		w.visit(c, ctx)
	}
}

func (w *walker) expectedFileName(module string) string {
	return module + ".tex"
}

func (w *walker) compileModsig(t *parsetree.Tree, ctx *symbol.Symbol) {
	expected := w.expectedFileName(t.Name)
	if filepath.Base(w.file) != expected {
		w.obj.Diagnostics.FileNameMismatch(t.NameRange, expected, filepath.Base(w.file))
	}
	mod := symbol.NewModule(t.Name, t.Location, symbol.ModuleTypeModsig)
	if err := symbol.AddChild(ctx, mod, false); err != nil {
		w.reportAddChildError(t.NameRange, err)
		return
	}
	w.visitChildren(t, mod)
}

func (w *walker) compileModnl(t *parsetree.Tree, ctx *symbol.Symbol) {
	expected := t.Name + "." + t.Lang + ".tex"
	if filepath.Base(w.file) != expected {
		w.obj.Diagnostics.FileNameMismatch(t.NameRange, expected, filepath.Base(w.file))
	}
	bind := symbol.NewBinding(t.Name, t.Location, t.Lang)
	if err := symbol.AddChild(ctx, bind, false); err != nil {
		w.reportAddChildError(t.NameRange, err)
		return
	}
	sigPath := filepath.Join(filepath.Dir(w.file), t.Name+".tex")
	w.obj.Dependencies = append(w.obj.Dependencies, &Dependency{
		Range: t.NameRange, Scope: bind, ModuleName: t.Name,
		ModuleTypeHint: symbol.ModuleTypeModsig, FileHint: sigPath, Export: true,
	})
	w.obj.References = append(w.obj.References, &Reference{
		Range: t.NameRange, Scope: bind, QualifiedName: []string{t.Name}, ReferenceType: RefModsig,
	})
	w.visitChildren(t, bind)
}

func (w *walker) compileModule(t *parsetree.Tree, ctx *symbol.Symbol) {
	name := t.ID
	if name == "" {
		name = fmt.Sprintf("__anon_%d_%d", t.Location.Range.Start.Line, t.Location.Range.Start.Character)
	}
	mod := symbol.NewModule(name, t.Location, symbol.ModuleTypeModule)
	if err := symbol.AddChild(ctx, mod, false); err != nil {
		w.reportAddChildError(t.NameRange, err)
		return
	}
	w.visitChildren(t, mod)
}

func (w *walker) compileView(t *parsetree.Tree, ctx *symbol.Symbol) {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("__view_%d_%d", t.Location.Range.Start.Line, t.Location.Range.Start.Character)
	}
	mod := symbol.NewModule(name, t.Location, symbol.ModuleTypeModule)
	if err := symbol.AddChild(ctx, mod, false); err != nil {
		w.reportAddChildError(t.NameRange, err)
		return
	}
	if t.Kind == parsetree.KindGViewNl {
		if t.FindParentModuleTree() == nil || t.FindParentModuleTree().Kind != parsetree.KindGViewSig {
			w.obj.Diagnostics.ModuleNotFoundSemanticLocationCheck(t.Location.Range, "gviewnl")
		}
	}
	if t.SourceModule != "" {
		w.obj.References = append(w.obj.References, &Reference{
			Range: t.Location.Range, Scope: mod, QualifiedName: []string{t.SourceModule}, ReferenceType: RefViewsig,
		})
		w.obj.Dependencies = append(w.obj.Dependencies, &Dependency{
			Range: t.Location.Range, Scope: mod, ModuleName: t.SourceModule,
			ModuleTypeHint: symbol.ModuleTypeModsig, Export: true,
		})
	}
	if t.TargetModule != "" {
		w.obj.References = append(w.obj.References, &Reference{
			Range: t.Location.Range, Scope: mod, QualifiedName: []string{t.TargetModule}, ReferenceType: RefViewmod,
		})
		w.obj.Dependencies = append(w.obj.Dependencies, &Dependency{
			Range: t.Location.Range, Scope: mod, ModuleName: t.TargetModule,
			ModuleTypeHint: symbol.ModuleTypeModsig, Export: true,
		})
	}
	w.visitChildren(t, mod)
}

func nearestModuleSymbol(ctx *symbol.Symbol) *symbol.Symbol {
	for cur := ctx; cur != nil; cur = cur.Parent {
		if cur.Kind == symbol.KindModule || cur.Kind == symbol.KindBinding {
			return cur
		}
	}
	return nil
}

func (w *walker) compileDefi(t *parsetree.Tree, ctx *symbol.Symbol) {
	if ctx.Kind == symbol.KindModule && ctx.ModuleType == symbol.ModuleTypeModule {
		def := symbol.NewDef(t.Name, t.Location, symbol.DefTypeDef)
		if err := symbol.AddChild(ctx, def, false); err != nil {
			w.reportAddChildError(t.NameRange, err)
		}
		return
	}
	mod := nearestModuleSymbol(ctx)
	if mod == nil {
		w.obj.Diagnostics.CantInferRefModuleOutsideModule(t.NameRange)
		return
	}
	w.obj.References = append(w.obj.References, &Reference{
		Range: t.NameRange, Scope: ctx, QualifiedName: []string{mod.Name, t.Name}, ReferenceType: RefDef,
	})
}

func (w *walker) compileTrefi(t *parsetree.Tree, ctx *symbol.Symbol) {
	if t.Drefi {
		def := symbol.NewDef(t.Name, t.Location, symbol.DefTypeDref)
		if err := symbol.AddChild(ctx, def, true); err != nil {
			if ire, ok := err.(*symbol.InvalidRedefinitionError); ok {
				w.obj.Diagnostics.InvalidRedefinition(t.NameRange, ire.Other, ire.Info)
			}
		}
	}

	moduleName := ""
	symName := t.Name
	if t.Annotation != nil {
		if t.Annotation.Module != nil {
			moduleName = *t.Annotation.Module
		}
		if t.Annotation.Symbol != nil {
			symName = *t.Annotation.Symbol
		}
	}
	if moduleName == "" {
		if mod := nearestModuleSymbol(ctx); mod != nil {
			moduleName = mod.Name
		} else {
			w.obj.Diagnostics.CantInferRefModuleOutsideModule(t.NameRange)
		}
	}
	if moduleName != "" {
		w.obj.References = append(w.obj.References, &Reference{
			Range: t.NameRange, Scope: ctx, QualifiedName: []string{moduleName}, ReferenceType: RefModsig | RefModule,
		})
		w.obj.References = append(w.obj.References, &Reference{
			Range: t.NameRange, Scope: ctx, QualifiedName: []string{moduleName, symName}, ReferenceType: RefDef,
		})
	} else {
		w.obj.References = append(w.obj.References, &Reference{
			Range: t.NameRange, Scope: ctx, QualifiedName: []string{symName}, ReferenceType: RefDef,
		})
	}
}

func (w *walker) compileSymi(t *parsetree.Tree, ctx *symbol.Symbol) {
	def := symbol.NewDef(t.Name, t.Location, symbol.DefTypeSym)
	def.Noverbs = toNoverbSet(t.Noverbs)
	def.Noverb = len(def.Noverbs) > 0
	if err := symbol.AddChild(ctx, def, false); err != nil {
		w.reportAddChildError(t.NameRange, err)
	}
}

func (w *walker) compileSymdef(t *parsetree.Tree, ctx *symbol.Symbol) {
	def := symbol.NewDef(t.Name, t.Location, symbol.DefTypeSymdef)
	def.Noverbs = toNoverbSet(t.Noverbs)
	def.Noverb = len(def.Noverbs) > 0
	if err := symbol.AddChild(ctx, def, true); err != nil {
		if ire, ok := err.(*symbol.InvalidRedefinitionError); ok {
			w.obj.Diagnostics.InvalidRedefinition(t.NameRange, ire.Other, ire.Info)
		}
	}
}

func toNoverbSet(m map[string]struct{}) symbol.NoverbSet {
	out := make(symbol.NoverbSet, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func (w *walker) reportAddChildError(r loc.Range, err error) {
	switch e := err.(type) {
	case *symbol.DuplicateSymbolError:
		w.obj.Diagnostics.DuplicateSymbolDefinition(r, e.Name, e.Previous)
	case *symbol.InvalidRedefinitionError:
		w.obj.Diagnostics.InvalidRedefinition(r, e.Other, e.Info)
	default:
		w.obj.Diagnostics.Exception(r, err)
	}
}

// isDuplicateDependency reports whether new's module_name matches an
// existing dependency's, and new's scope is the existing one's scope or a
// descendant of it (SPEC_FULL.md §4.2 "Duplicate imports").
func isDuplicateDependency(existing, next *Dependency) bool {
	if existing.ModuleName != next.ModuleName {
		return false
	}
	for cur := next.Scope; cur != nil; cur = cur.Parent {
		if cur == existing.Scope {
			return true
		}
	}
	return false
}

func (w *walker) addDependency(dep *Dependency) {
	for _, existing := range w.obj.Dependencies {
		if isDuplicateDependency(existing, dep) {
			prev := loc.Location{File: w.file, Range: existing.Range}
			w.obj.Diagnostics.RedundantImport(dep.Range, dep.ModuleName, &prev)
			return
		}
	}
	w.obj.Dependencies = append(w.obj.Dependencies, dep)
}

func (w *walker) compileImportModule(t *parsetree.Tree, ctx *symbol.Symbol) {
	resolved := resolveImportModulePath(w.c.Root, w.file, t.MhRepos, t.Dir, t.Path, t.Load, t.Name)
	dep := &Dependency{
		Range: t.NameRange, Scope: ctx, ModuleName: t.Name,
		ModuleTypeHint: symbol.ModuleTypeModule, FileHint: resolved, Export: t.Export,
	}
	w.addDependency(dep)
	w.obj.References = append(w.obj.References, &Reference{
		Range: t.NameRange, Scope: ctx, QualifiedName: []string{t.Name}, ReferenceType: RefModule,
	})

	repo := currentRepo(w.c.Root, w.file)
	if t.MhRepos != "" && t.MhRepos == repo {
		w.obj.Diagnostics.IsCurrentDirCheck(t.NameRange, t.MhRepos)
	}
	if t.Path != "" && filepath.Clean(t.Path) == filepath.Clean(strings.TrimSuffix(w.file, ".tex")) {
		w.obj.Diagnostics.IsCurrentDirCheck(t.NameRange, t.Path)
	}
	if t.Dir != "" && filepath.Clean(t.Dir) == filepath.Clean(filepath.Dir(w.file)) {
		w.obj.Diagnostics.IsCurrentDirCheck(t.NameRange, t.Dir)
	}

	if depth := importPathDepth(w.c.Root, resolved); depth > 3 {
		w.obj.Diagnostics.ImportPathDepthExceeded(t.NameRange)
	}
}

func (w *walker) compileGImport(t *parsetree.Tree, ctx *symbol.Symbol) {
	resolved := resolveGImportPath(w.c.Root, w.file, t.Repo, t.Name)
	dep := &Dependency{
		Range: t.NameRange, Scope: ctx, ModuleName: t.Name,
		ModuleTypeHint: symbol.ModuleTypeModsig, FileHint: resolved, Export: t.Export,
	}
	w.addDependency(dep)
	w.obj.References = append(w.obj.References, &Reference{
		Range: t.NameRange, Scope: ctx, QualifiedName: []string{t.Name}, ReferenceType: RefModsig,
	})
	repo := currentRepo(w.c.Root, w.file)
	if t.Repo != "" && t.Repo == repo {
		w.obj.Diagnostics.IsCurrentDirCheck(t.NameRange, t.Repo)
	}
}

// currentRepo returns the first path component of file relative to root,
// i.e. the <repo> segment of the assumed root/<repo>/source/... layout.
func currentRepo(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// importPathDepth returns how many directories below root/<repo>/source the
// resolved path lies, or -1 if it cannot be expressed in that shape.
func importPathDepth(root, resolved string) int {
	rel, err := filepath.Rel(root, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return -1
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	// root/<repo>/source/<...>: depth 0 means directly in source/.
	const prefixLen = 2 // <repo>/source
	if len(parts) <= prefixLen {
		return 0
	}
	return len(parts) - prefixLen - 1
}

// ancestorDir returns the n-th ancestor directory of file (n=0 is file's own
// parent directory).
func ancestorDir(file string, n int) string {
	dir := filepath.Dir(file)
	for i := 0; i < n; i++ {
		dir = filepath.Dir(dir)
	}
	return dir
}

// resolveImportModulePath mirrors SPEC_FULL.md §4.1's path-resolution rules
// for \importmodule.
func resolveImportModulePath(root, currentFile, mhrepos, dir, path, load, module string) string {
	switch {
	case load != "":
		return filepath.Join(root, load, module+".tex")
	case mhrepos == "" && dir == "" && path == "":
		return currentFile
	case mhrepos != "" && (dir != "" || path != ""):
		if dir != "" {
			return filepath.Join(root, mhrepos, "source", dir, module+".tex")
		}
		return filepath.Join(root, mhrepos, "source", path+".tex")
	default: // dir/path without mhrepos: replace the repo with the fourth ancestor
		repoRoot := ancestorDir(currentFile, 3)
		if dir != "" {
			return filepath.Join(repoRoot, "source", dir, module+".tex")
		}
		return filepath.Join(repoRoot, "source", path+".tex")
	}
}

// resolveGImportPath mirrors SPEC_FULL.md §4.1's path-resolution rule for
// \gimport.
func resolveGImportPath(root, currentFile, repo, module string) string {
	if repo != "" {
		return filepath.Join(root, repo, "source", module+".tex")
	}
	return filepath.Join(filepath.Dir(currentFile), module+".tex")
}

// ObjectFilePath returns the on-disk cache path for file under outdir, per
// SPEC_FULL.md §4.2/§6: outdir/sha1(parent_dir)/filename.stexobj.
func ObjectFilePath(outdir, file string) string {
	h := sha1.Sum([]byte(filepath.Dir(file)))
	return filepath.Join(outdir, hex.EncodeToString(h[:]), filepath.Base(file)+".stexobj")
}
