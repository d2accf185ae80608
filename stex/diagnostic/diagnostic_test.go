package diagnostic

import (
	"errors"
	"strings"
	"testing"

	"github.com/slatex/stexls/loc"
)

func TestUndefinedSymbolSuggestionFormatting(t *testing.T) {
	var b Bag
	r := loc.Range{}
	loc0 := loc.Location{File: "f.tex"}

	b.UndefinedSymbol(r, "fooo", []SimilarSymbol{{Name: "foo", Location: loc0}})
	if !strings.Contains(b.Items[0].Message, `Did you mean "foo"?`) {
		t.Fatalf("expected single suggestion message, got %q", b.Items[0].Message)
	}

	b = Bag{}
	b.UndefinedSymbol(r, "fooo", []SimilarSymbol{{Name: "foo", Location: loc0}, {Name: "fooz", Location: loc0}})
	if !strings.Contains(b.Items[0].Message, `"foo" or "fooz"`) {
		t.Fatalf("expected two-way or-joined suggestion, got %q", b.Items[0].Message)
	}

	b = Bag{}
	b.UndefinedSymbol(r, "fooo", []SimilarSymbol{{Name: "a", Location: loc0}, {Name: "b", Location: loc0}, {Name: "c", Location: loc0}})
	if !strings.Contains(b.Items[0].Message, `"a", "b" or "c"`) {
		t.Fatalf("expected comma-then-or suggestion list, got %q", b.Items[0].Message)
	}

	b = Bag{}
	b.UndefinedSymbol(r, "fooo", nil)
	if strings.Contains(b.Items[0].Message, "mean") {
		t.Fatalf("expected no suggestion clause when none given, got %q", b.Items[0].Message)
	}
	if b.Items[0].Code != CodeUndefinedSymbol || b.Items[0].Severity != Error {
		t.Fatalf("unexpected code/severity: %+v", b.Items[0])
	}
}

func TestDiagnosticCodesAndSeveritiesAndTags(t *testing.T) {
	var b Bag
	r := loc.Range{}
	l := loc.Location{File: "f.tex"}

	b.MtrefDeprecated(r)
	b.ReplaceReposWithMhrepos(r)
	b.IsCurrentDirCheck(r, "dir")
	b.RedundantImport(r, "M", nil)
	b.NeverReferenced(r, "x")

	for _, d := range b.Items {
		if d.Severity != Warning {
			t.Fatalf("expected Warning severity, got %v for code %v", d.Severity, d.Code)
		}
	}
	wantDeprecated := map[Code]bool{CodeMtrefDeprecation: true, CodeReposDeprecation: true}
	for _, d := range b.Items {
		hasDeprecated := false
		for _, tag := range d.Tags {
			if tag == Deprecated {
				hasDeprecated = true
			}
		}
		if wantDeprecated[d.Code] != hasDeprecated {
			t.Fatalf("code %v: expected Deprecated tag=%v, got tags=%v", d.Code, wantDeprecated[d.Code], d.Tags)
		}
	}

	if b.Items[4].Code != CodeNeverReferenced {
		t.Fatalf("expected NeverReferenced to use its own dedicated code, got %v", b.Items[4].Code)
	}

	b = Bag{}
	b.CyclicDependency(r, "M", l)
	if b.Items[0].Severity != Error || b.Items[0].Code != CodeCyclicDependency {
		t.Fatalf("unexpected cyclic dependency diagnostic: %+v", b.Items[0])
	}
	if len(b.Items[0].RelatedInformation) != 1 {
		t.Fatalf("expected one related-information entry")
	}
}

func TestParserExceptionAndExceptionWrapUnderlyingError(t *testing.T) {
	var b Bag
	err := errors.New("boom")
	b.ParserException(loc.Range{}, err)
	b.Exception(loc.Range{}, err)
	if b.Items[0].Code != CodeParserException || b.Items[1].Code != CodeGenericException {
		t.Fatalf("unexpected codes: %v %v", b.Items[0].Code, b.Items[1].Code)
	}
	if b.Items[0].Message != "boom" || b.Items[1].Message != "boom" {
		t.Fatalf("expected message to be underlying error text, got %q %q", b.Items[0].Message, b.Items[1].Message)
	}
}

func TestBagCopyIsIndependent(t *testing.T) {
	var b Bag
	b.FileNotFound(loc.Range{}, "x.tex")
	cp := b.Copy()
	cp.FileNotFound(loc.Range{}, "y.tex")
	if len(b.Items) != 1 {
		t.Fatalf("expected original bag untouched by copy mutation, got %d items", len(b.Items))
	}
	if len(cp.Items) != 2 {
		t.Fatalf("expected copy to have 2 items, got %d", len(cp.Items))
	}
}
