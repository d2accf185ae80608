package symbol

import (
	"testing"

	"github.com/slatex/stexls/loc"
)

func loc0(file string) loc.Location {
	return loc.Location{File: file, Range: loc.Range{}}
}

func TestAddChildParentChildConsistency(t *testing.T) {
	root := NewRoot("f.tex")
	mod := NewModule("M", loc0("f.tex"), ModuleTypeModsig)
	if err := AddChild(root, mod, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	children := root.Children["M"]
	if len(children) != 1 || children[0] != mod {
		t.Fatalf("expected root.children[M] to contain mod")
	}
	if mod.Parent != root {
		t.Fatalf("expected mod.Parent == root")
	}
}

func TestAddChildDuplicateRejected(t *testing.T) {
	root := NewRoot("f.tex")
	a := NewDef("x", loc0("f.tex"), DefTypeSym)
	b := NewDef("x", loc0("f.tex"), DefTypeSym)
	if err := AddChild(root, a, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := AddChild(root, b, false)
	if err == nil {
		t.Fatalf("expected duplicate-symbol error")
	}
	if _, ok := err.(*DuplicateSymbolError); !ok {
		t.Fatalf("expected *DuplicateSymbolError, got %T", err)
	}
}

func TestAddChildAlternativeRequiresMatchingSignature(t *testing.T) {
	root := NewRoot("f.tex")
	a := NewDef("x", loc0("f.tex"), DefTypeSym)
	a.Noverbs = NewNoverbSet("en")
	if err := AddChild(root, a, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Matching signature: allowed as alternative.
	b := NewDef("x", loc0("f.tex"), DefTypeSym)
	b.Noverbs = NewNoverbSet("en")
	if err := AddChild(root, b, true); err != nil {
		t.Fatalf("expected matching-signature alternative to succeed, got %v", err)
	}

	// Mismatched noverb signature: rejected even as alternative.
	c := NewDef("x", loc0("f.tex"), DefTypeSym)
	c.Noverbs = NewNoverbSet("de")
	err := AddChild(root, c, true)
	if err == nil {
		t.Fatalf("expected invalid-redefinition error")
	}
	if _, ok := err.(*InvalidRedefinitionError); !ok {
		t.Fatalf("expected *InvalidRedefinitionError, got %T", err)
	}
}

func TestLookupStopsAtModuleBarrier(t *testing.T) {
	root := NewRoot("f.tex")
	modA := NewModule("A", loc0("f.tex"), ModuleTypeModsig)
	_ = AddChild(root, modA, false)

	modB := NewModule("B", loc0("f.tex"), ModuleTypeModsig)
	_ = AddChild(root, modB, false)
	x := NewDef("x", loc0("f.tex"), DefTypeSym)
	_ = AddChild(modB, x, false)

	// Looking up ["B","x"] from inside A must not find B by escaping
	// upward past A (A is not B's parent; root is). Lookup from inside A
	// should fail because A does not contain B, and A is a barrier so it
	// cannot ask root for help either.
	got := Lookup(modA, []string{"B", "x"})
	if len(got) != 0 {
		t.Fatalf("expected lookup from inside module A to not see module B, got %v", got)
	}

	// But lookup from root succeeds.
	got = Lookup(root, []string{"B", "x"})
	if len(got) != 1 || got[0] != x {
		t.Fatalf("expected lookup from root to resolve B.x, got %v", got)
	}
}

func TestLookupSelfRelativeFallback(t *testing.T) {
	root := NewRoot("f.tex")
	mod := NewModule("M", loc0("f.tex"), ModuleTypeModsig)
	_ = AddChild(root, mod, false)
	x := NewDef("x", loc0("f.tex"), DefTypeSym)
	_ = AddChild(mod, x, false)

	// From inside mod, an unqualified reference to "x" resolves directly.
	got := Lookup(mod, []string{"x"})
	if len(got) != 1 || got[0] != x {
		t.Fatalf("expected direct child lookup to succeed, got %v", got)
	}

	// The self-relative fallback does not apply from inside M itself: a
	// module is a lookup barrier, so ["M","x"] from M does not resolve.
	got = Lookup(mod, []string{"M", "x"})
	if len(got) != 0 {
		t.Fatalf("expected no self-relative fallback from inside barrier M, got %v", got)
	}

	// A non-barrier start whose own name matches the first path element
	// resolves the rest of the path against itself.
	scope := NewScope("S", loc0("f.tex"))
	y := NewDef("y", loc0("f.tex"), DefTypeSym)
	_ = AddChild(scope, y, false)
	got = Lookup(scope, []string{"S", "y"})
	if len(got) != 1 || got[0] != y {
		t.Fatalf("expected self-relative fallback to resolve S.y from inside S, got %v", got)
	}
}

func TestImportFromCopiesOnlyPublicDescendants(t *testing.T) {
	srcRoot := NewRoot("src.tex")
	mod := NewModule("M", loc0("src.tex"), ModuleTypeModsig)
	_ = AddChild(srcRoot, mod, false)

	pub := NewDef("pub", loc0("src.tex"), DefTypeSym)
	pub.Access = AccessPublic
	_ = AddChild(mod, pub, false)

	priv := NewDef("priv", loc0("src.tex"), DefTypeSym)
	priv.Access = AccessPrivate
	_ = AddChild(mod, priv, false)

	dstRoot := NewRoot("dst.tex")
	ImportFrom(dstRoot, srcRoot)

	importedMod := dstRoot.Children["M"]
	if len(importedMod) != 1 {
		t.Fatalf("expected module M to be imported, got %d entries", len(importedMod))
	}
	if _, ok := importedMod[0].Children["pub"]; !ok {
		t.Fatalf("expected public symbol pub to be imported")
	}
	if _, ok := importedMod[0].Children["priv"]; ok {
		t.Fatalf("did not expect private symbol priv to be imported")
	}
}

func TestNoverbSetEqualityIsUnordered(t *testing.T) {
	a := NewNoverbSet("en", "de")
	b := NewNoverbSet("de", "en")
	if !a.Equal(b) {
		t.Fatalf("expected unordered equality between noverb sets")
	}
}
