package loc

import "testing"

func TestPositionCompareAntisymmetricTransitive(t *testing.T) {
	a := Position{Line: 1, Character: 2}
	b := Position{Line: 3, Character: 0}
	c := Position{Line: 5, Character: 0}

	if a.CompareTo(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.CompareTo(a) <= 0 {
		t.Fatalf("expected antisymmetry: b.CompareTo(a) should be positive")
	}
	if a.CompareTo(b) < 0 && b.CompareTo(c) < 0 && !(a.CompareTo(c) < 0) {
		t.Fatalf("expected transitivity: a < b < c implies a < c")
	}
}

func TestRangeSplitBoundary(t *testing.T) {
	r := Range{Start: Position{Line: 0, Character: 0}, End: Position{Line: 0, Character: 10}}

	left, right := r.Split(0)
	if !left.Empty() || left.Start != r.Start {
		t.Fatalf("split(0) left should be empty at start, got %v", left)
	}
	if right != r {
		t.Fatalf("split(0) right should equal original, got %v", right)
	}

	left, right = r.Split(100)
	if left != r {
		t.Fatalf("split(past end) left should equal original, got %v", left)
	}
	if !right.Empty() || right.Start != r.End {
		t.Fatalf("split(past end) right should be empty at end, got %v", right)
	}

	left, right = r.Split(4)
	if left.End.Character != 4 || right.Start.Character != 4 {
		t.Fatalf("split(4) should divide at character 4, got left=%v right=%v", left, right)
	}
}

func TestRangeSplitMultiLine(t *testing.T) {
	r := Range{Start: Position{Line: 5, Character: 5}, End: Position{Line: 6, Character: 10}}

	left, right := r.Split(10)
	wantMid := Position{Line: 5, Character: 15}
	if left.Start != r.Start || left.End != wantMid {
		t.Fatalf("split(10) left should be (5,5)-(5,15), got %v", left)
	}
	if right.Start != wantMid || right.End != r.End {
		t.Fatalf("split(10) right should be (5,15)-(6,10), got %v", right)
	}

	// A large split index still lands on r.Start's line (5:1005), which
	// orders before End on line 6, so the range is split there rather than
	// returned whole.
	left, right = r.Split(1000)
	bigMid := Position{Line: 5, Character: 1005}
	if left.Start != r.Start || left.End != bigMid {
		t.Fatalf("split(1000) left should be (5,5)-(5,1005), got %v", left)
	}
	if right.Start != bigMid || right.End != r.End {
		t.Fatalf("split(1000) right should be (5,1005)-(6,10), got %v", right)
	}
}

func TestBigUnionEmptyAndSingleton(t *testing.T) {
	if _, ok := BigUnion(nil); ok {
		t.Fatalf("big union of empty slice should report ok=false")
	}
	single := Range{Start: Position{Line: 1}, End: Position{Line: 2}}
	got, ok := BigUnion([]Range{single})
	if !ok || got != single {
		t.Fatalf("big union of singleton should equal the element, got %v", got)
	}
}

func TestBigUnionMultiple(t *testing.T) {
	a := Range{Start: Position{Line: 2, Character: 0}, End: Position{Line: 2, Character: 5}}
	b := Range{Start: Position{Line: 0, Character: 1}, End: Position{Line: 1, Character: 0}}
	c := Range{Start: Position{Line: 3, Character: 0}, End: Position{Line: 3, Character: 1}}

	got, ok := BigUnion([]Range{a, b, c})
	if !ok {
		t.Fatalf("expected ok")
	}
	want := Range{Start: Position{Line: 0, Character: 1}, End: Position{Line: 3, Character: 1}}
	if got != want {
		t.Fatalf("big union mismatch: got %v want %v", got, want)
	}
}

func TestRangeContains(t *testing.T) {
	outer := Range{Start: Position{Line: 0, Character: 0}, End: Position{Line: 10, Character: 0}}
	inner := Range{Start: Position{Line: 2, Character: 0}, End: Position{Line: 3, Character: 0}}
	if !outer.ContainsRange(inner) {
		t.Fatalf("expected outer to contain inner")
	}
	if inner.ContainsRange(outer) {
		t.Fatalf("did not expect inner to contain outer")
	}
}
