package linker

import (
	"testing"

	"github.com/slatex/stexls/stex/compiler"
	"github.com/slatex/stexls/stex/diagnostic"
)

func compileFile(t *testing.T, c *compiler.Compiler, file, src string) *compiler.StexObject {
	t.Helper()
	return c.Compile(file, src)
}

func TestBuildOrderDependencyBeforeDependent(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\symi{x}\end{modsig}`)
	b := compileFile(t, c, "/root/repo/source/b.tex", `\begin{modsig}{b}\importmodule[mhrepos=repo,path=a]{a}\end{modsig}`)

	modules := FileIndex{a.File: a, b.File: b}
	var diags diagnostic.Bag
	order := MakeBuildOrder(b, modules, &diags)
	if len(order) != 2 || order[0] != a || order[1] != b {
		t.Fatalf("expected build order [a, b], got %+v (diags=%+v)", order, diags.Items)
	}
}

func TestBuildOrderCyclicDependencyDiagnosed(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\importmodule[mhrepos=repo,path=b]{b}\end{modsig}`)
	b := compileFile(t, c, "/root/repo/source/b.tex", `\begin{modsig}{b}\importmodule[mhrepos=repo,path=a]{a}\end{modsig}`)

	modules := FileIndex{a.File: a, b.File: b}
	var diags diagnostic.Bag
	MakeBuildOrder(a, modules, &diags)

	found := false
	for _, d := range diags.Items {
		if d.Code == diagnostic.CodeCyclicDependency {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cyclic-dependency diagnostic, got %+v", diags.Items)
	}
}

func TestBuildOrderFileNotFoundDiagnosed(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\importmodule[load=missing]{missing}\end{modsig}`)
	modules := FileIndex{a.File: a}
	var diags diagnostic.Bag
	MakeBuildOrder(a, modules, &diags)
	found := false
	for _, d := range diags.Items {
		if d.Code == diagnostic.CodeFileNotFound {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected file-not-found diagnostic, got %+v", diags.Items)
	}
}

func TestLinkAndValidateUndefinedSymbolWithSuggestion(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\symi{vector}\end{modsig}`)
	b := compileFile(t, c, "/root/repo/source/b.tex",
		`\begin{modsig}{b}\importmodule[mhrepos=repo,path=a]{a}\begin{module}[id=b]\defi{vectr}\end{module}\end{modsig}`)

	// Force a reference to a near-miss symbol name to exercise fuzzy suggestions.
	b.References = append(b.References, &compiler.Reference{
		QualifiedName: []string{"a", "vectr"}, ReferenceType: compiler.RefDef,
	})

	modules := FileIndex{a.File: a, b.File: b}
	var diags diagnostic.Bag
	order := MakeBuildOrder(b, modules, &diags)
	linked := Link(order, b)
	ValidateReferences(linked)

	foundUndefined := false
	for _, d := range linked.Diagnostics.Items {
		if d.Code == diagnostic.CodeUndefinedSymbol {
			foundUndefined = true
			if !containsSuggestion(d.Message, "vector") {
				t.Fatalf("expected fuzzy suggestion for 'vector', got %q", d.Message)
			}
		}
	}
	if !foundUndefined {
		t.Fatalf("expected undefined-symbol diagnostic, got %+v", linked.Diagnostics.Items)
	}
}

func containsSuggestion(msg, name string) bool {
	return len(msg) > 0 && (stringContains(msg, name))
}

func stringContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestLinkMergesPublicSymbolsOnlyFromDependencies(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\symi{pub}\end{modsig}`)
	b := compileFile(t, c, "/root/repo/source/b.tex", `\begin{modsig}{b}\importmodule[mhrepos=repo,path=a]{a}\end{modsig}`)

	modules := FileIndex{a.File: a, b.File: b}
	var diags diagnostic.Bag
	order := MakeBuildOrder(b, modules, &diags)
	linked := Link(order, b)

	importedA := linked.SymbolTable.Children["a"]
	if len(importedA) != 1 {
		t.Fatalf("expected module a to be merged into linked object, got %+v", linked.SymbolTable.Children)
	}
	if _, ok := importedA[0].Children["pub"]; !ok {
		t.Fatalf("expected public symbol 'pub' to be present in linked object")
	}
	if _, ok := linked.SymbolTable.Children["b"]; !ok {
		t.Fatalf("expected current object's own module b to be present in linked object")
	}
}

func TestValidateReferencesNeverReferencedWarning(t *testing.T) {
	c := compiler.New("/root")
	a := compileFile(t, c, "/root/repo/source/a.tex", `\begin{modsig}{a}\symi{unused}\end{modsig}`)
	modules := FileIndex{a.File: a}
	var diags diagnostic.Bag
	order := MakeBuildOrder(a, modules, &diags)
	linked := Link(order, a)
	ValidateReferences(linked)

	found := false
	for _, d := range linked.Diagnostics.Items {
		if d.Code == diagnostic.CodeNeverReferenced {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected never-referenced diagnostic for unused symbol, got %+v", linked.Diagnostics.Items)
	}
}
