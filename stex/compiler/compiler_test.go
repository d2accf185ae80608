package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slatex/stexls/stex/symbol"
)

func TestCompileModsigFileNameMatch(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/vectorspace.tex", `\begin{modsig}{vectorspace}\symi{vector}\end{modsig}`)
	if len(obj.Diagnostics.Items) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", obj.Diagnostics.Items)
	}
	mods := obj.SymbolTable.Children["vectorspace"]
	if len(mods) != 1 || mods[0].Kind != symbol.KindModule {
		t.Fatalf("expected a module symbol, got %+v", mods)
	}
	if syms := mods[0].Children["vector"]; len(syms) != 1 || syms[0].DefType != symbol.DefTypeSym {
		t.Fatalf("expected vector SYM symbol, got %+v", syms)
	}
}

func TestCompileModsigFileNameMismatchWarns(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/wrong.tex", `\begin{modsig}{vectorspace}\end{modsig}`)
	if len(obj.Diagnostics.Items) != 1 {
		t.Fatalf("expected one mismatch diagnostic, got %+v", obj.Diagnostics.Items)
	}
}

func TestCompileDefiOutsideModuleEmitsReferenceOnly(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/m.en.tex", `\begin{modnl}{m}{en}\defi{foo}\end{modnl}`)
	bindings := obj.SymbolTable.Children["m"]
	if len(bindings) != 1 || bindings[0].Kind != symbol.KindBinding {
		t.Fatalf("expected a binding symbol, got %+v", bindings)
	}
	if len(bindings[0].Children) != 0 {
		t.Fatalf("expected defi to not create a symbol inside a binding, got %+v", bindings[0].Children)
	}
	var found bool
	for _, r := range obj.References {
		if len(r.QualifiedName) == 2 && r.QualifiedName[0] == "m" && r.QualifiedName[1] == "foo" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a reference to m.foo, got %+v", obj.References)
	}
}

func TestCompileDefiOutsideAnyModuleEmitsDiagnostic(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/free.tex", `\defi{foo}`)
	if len(obj.Diagnostics.Items) != 1 {
		t.Fatalf("expected cant-infer-ref-module diagnostic, got %+v", obj.Diagnostics.Items)
	}
}

func TestCompileDrefiAlwaysProducesDrefDefinition(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/m.tex", `\begin{modsig}{m}\drefi{foo}\end{modsig}`)
	mod := obj.SymbolTable.Children["m"][0]
	defs := mod.Children["foo"]
	if len(defs) != 1 || defs[0].DefType != symbol.DefTypeDref {
		t.Fatalf("expected a DREF symbol for drefi, got %+v", defs)
	}
}

func TestCompileImportModuleRegistersDependency(t *testing.T) {
	c := New("/root")
	obj := c.Compile("/root/repo/source/m.tex", `\begin{modsig}{m}\importmodule[load=other]{other}\end{modsig}`)
	if len(obj.Dependencies) != 1 {
		t.Fatalf("expected one dependency, got %+v", obj.Dependencies)
	}
	dep := obj.Dependencies[0]
	if dep.ModuleName != "other" || !dep.Export {
		t.Fatalf("unexpected dependency: %+v", dep)
	}
}

func TestCompileRedundantImportWarns(t *testing.T) {
	c := New("/root")
	src := `\begin{modsig}{m}\importmodule[load=x]{x}\importmodule[load=x]{x}\end{modsig}`
	obj := c.Compile("/root/repo/source/m.tex", src)
	if len(obj.Dependencies) != 1 {
		t.Fatalf("expected only the first import kept, got %d", len(obj.Dependencies))
	}
	foundRedundant := false
	for _, d := range obj.Diagnostics.Items {
		if d.Code == "redundant-import-check" {
			foundRedundant = true
		}
	}
	if !foundRedundant {
		t.Fatalf("expected redundant-import-check diagnostic, got %+v", obj.Diagnostics.Items)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "m.tex")
	if err := os.WriteFile(srcFile, []byte(`\begin{modsig}{m}\symi{x}\end{modsig}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(dir)
	outdir := filepath.Join(dir, "out")
	obj, err := LoadOrCompile(c, outdir, srcFile, `\begin{modsig}{m}\symi{x}\end{modsig}`, true)
	if err != nil {
		t.Fatalf("unexpected error compiling+caching: %v", err)
	}
	if len(obj.SymbolTable.Children["m"]) != 1 {
		t.Fatalf("unexpected compiled object: %+v", obj)
	}

	cached, err := LoadOrCompile(c, outdir, srcFile, "", false)
	if err != nil {
		t.Fatalf("unexpected error loading from cache: %v", err)
	}
	if len(cached.SymbolTable.Children["m"]) != 1 {
		t.Fatalf("expected cached object to round-trip module m, got %+v", cached.SymbolTable.Children)
	}
	sym := cached.SymbolTable.Children["m"][0].Children["x"]
	if len(sym) != 1 || sym[0].DefType != symbol.DefTypeSym {
		t.Fatalf("expected cached x SYM symbol to round-trip, got %+v", sym)
	}
}

func TestObjectFilePathIsDeterministic(t *testing.T) {
	p1 := ObjectFilePath("/out", "/root/repo/source/m.tex")
	p2 := ObjectFilePath("/out", "/root/repo/source/m.tex")
	if p1 != p2 {
		t.Fatalf("expected deterministic cache path, got %q vs %q", p1, p2)
	}
	if filepath.Base(p1) != "m.tex.stexobj" {
		t.Fatalf("unexpected cache file name: %q", p1)
	}
}
