package parsetree

import (
	"testing"

	"github.com/slatex/stexls/latex"
)

func parse(t *testing.T, src string) *ParsedFile {
	t.Helper()
	root := latex.Parse("f.tex", src)
	pf := Recognize("f.tex", root)
	if len(pf.Errors) > 0 {
		t.Fatalf("unexpected recognizer errors: %+v", pf.Errors)
	}
	return pf
}

func TestRecognizeModsigAndSymi(t *testing.T) {
	pf := parse(t, `\begin{modsig}{vectorspace}\symi{vector}\symii{plus}{minus}\end{modsig}`)
	if len(pf.Roots) != 1 || pf.Roots[0].Kind != KindModsig {
		t.Fatalf("expected single modsig root, got %+v", pf.Roots)
	}
	mod := pf.Roots[0]
	if mod.Name != "vectorspace" {
		t.Fatalf("expected module name vectorspace, got %q", mod.Name)
	}
	if len(mod.Children) != 2 {
		t.Fatalf("expected 2 symi children, got %d", len(mod.Children))
	}
	if mod.Children[0].Kind != KindSymi || mod.Children[0].Arity != 1 || mod.Children[0].Name != "vector" {
		t.Fatalf("unexpected first symi: %+v", mod.Children[0])
	}
	if mod.Children[1].Arity != 2 {
		t.Fatalf("expected symii arity 2, got %d", mod.Children[1].Arity)
	}
}

func TestRecognizeModnlWithMhPrefix(t *testing.T) {
	pf := parse(t, `\begin{mhmodnl}{vectorspace}{en}\end{mhmodnl}`)
	n := pf.Roots[0]
	if n.Kind != KindModnl || !n.MhMode || n.Lang != "en" || n.Name != "vectorspace" {
		t.Fatalf("unexpected mhmodnl parse: %+v", n)
	}
}

func TestRecognizeDefiAndTrefiArity(t *testing.T) {
	pf := parse(t, `\begin{modsig}{m}\defi{foo}\trefii{foo}{bar}\end{modsig}`)
	mod := pf.Roots[0]
	if mod.Children[0].Kind != KindDefi || mod.Children[0].Name != "foo" {
		t.Fatalf("unexpected defi: %+v", mod.Children[0])
	}
	tr := mod.Children[1]
	if tr.Kind != KindTrefi || tr.Arity != 2 || tr.Name != "foo-bar" {
		t.Fatalf("unexpected trefi: %+v", tr)
	}
	if tr.Drefi {
		t.Fatalf("expected trefi (t-letter) to not be marked drefi: %+v", tr)
	}
}

func TestRecognizeDrefiIsMarkedDrefi(t *testing.T) {
	pf := parse(t, `\begin{modsig}{m}\drefi{foo}\end{modsig}`)
	mod := pf.Roots[0]
	tr := mod.Children[0]
	if tr.Kind != KindTrefi || !tr.Drefi {
		t.Fatalf("expected drefi (d-letter) to parse as Trefi with Drefi set: %+v", tr)
	}
}

func TestRecognizeDefiIsNotTrefi(t *testing.T) {
	pf := parse(t, `\begin{modsig}{m}\defii{foo}{bar}\end{modsig}`)
	mod := pf.Roots[0]
	if mod.Children[0].Kind != KindDefi || mod.Children[0].Arity != 2 {
		t.Fatalf("unexpected defii parse: %+v", mod.Children[0])
	}
}

func TestRecognizeTrefiArgumentCountMismatchIsError(t *testing.T) {
	root := latex.Parse("f.tex", `\begin{modsig}{m}\trefii{onlyone}\end{modsig}`)
	pf := Recognize("f.tex", root)
	if len(pf.Errors) == 0 {
		t.Fatalf("expected an arity-mismatch error for trefii with one argument")
	}
}

func TestRecognizeMtrefRequiresQuestionmarkAnnotation(t *testing.T) {
	root := latex.Parse("f.tex", `\begin{modsig}{m}\mtrefi{foo}\end{modsig}`)
	pf := Recognize("f.tex", root)
	if len(pf.Errors) == 0 {
		t.Fatalf("expected mtref without ?symbol annotation to be an error")
	}

	root = latex.Parse("f.tex", `\begin{modsig}{m}\mtrefi[?sym]{foo}\end{modsig}`)
	pf = Recognize("f.tex", root)
	if len(pf.Errors) != 0 {
		t.Fatalf("unexpected errors for valid mtref: %+v", pf.Errors)
	}
	tr := pf.Roots[0].Children[0]
	if tr.Annotation == nil || tr.Annotation.Symbol == nil || *tr.Annotation.Symbol != "sym" {
		t.Fatalf("expected parsed ?sym annotation, got %+v", tr.Annotation)
	}
}

func TestRecognizeImportModuleMhModeAndPlainMode(t *testing.T) {
	root := latex.Parse("f.tex", `\importmodule[mhrepos=MiKoMH/foo,path=bar]{mod}`)
	pf := Recognize("f.tex", root)
	if len(pf.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", pf.Errors)
	}
	imp := pf.Roots[0]
	if imp.Kind != KindImportModule || !imp.MhMode || imp.MhRepos != "MiKoMH/foo" || imp.Path != "bar" {
		t.Fatalf("unexpected mh-mode importmodule: %+v", imp)
	}

	root = latex.Parse("f.tex", `\importmodule[load=/abs/path]{mod}`)
	pf = Recognize("f.tex", root)
	if len(pf.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", pf.Errors)
	}
	if pf.Roots[0].Load != "/abs/path" {
		t.Fatalf("expected load path to be captured, got %+v", pf.Roots[0])
	}

	root = latex.Parse("f.tex", `\importmodule{mod}`)
	pf = Recognize("f.tex", root)
	if len(pf.Errors) == 0 {
		t.Fatalf("expected missing load outside mh mode to be an error")
	}
}

func TestRecognizeUseFlagMarksNonExporting(t *testing.T) {
	root := latex.Parse("f.tex", `\importmodule[use,load=/x]{mod}`)
	pf := Recognize("f.tex", root)
	if len(pf.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", pf.Errors)
	}
	if pf.Roots[0].Export {
		t.Fatalf("expected use flag to mark import as non-exporting")
	}
}

func TestRecognizeUnknownEnvironmentBecomesScope(t *testing.T) {
	pf := parse(t, `\begin{omtext}\begin{modsig}{m}\end{modsig}\end{omtext}`)
	if pf.Roots[0].Kind != KindScope || pf.Roots[0].Name != "omtext" {
		t.Fatalf("expected unrecognized environment to become a Scope, got %+v", pf.Roots[0])
	}
	if len(pf.Roots[0].Children) != 1 || pf.Roots[0].Children[0].Kind != KindModsig {
		t.Fatalf("expected nested modsig to still be recognized inside the scope")
	}
}

func TestFindParentModuleTree(t *testing.T) {
	pf := parse(t, `\begin{modsig}{m}\symi{x}\end{modsig}`)
	symi := pf.Roots[0].Children[0]
	p := symi.FindParentModuleTree()
	if p == nil || p.Kind != KindModsig || p.Name != "m" {
		t.Fatalf("expected FindParentModuleTree to find enclosing modsig, got %+v", p)
	}
}
