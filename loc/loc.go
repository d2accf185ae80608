// Package loc implements the position/range/location primitives shared by
// every later stage of the pipeline: the intermediate parser, the object
// compiler, the linker and the language server all exchange Locations.
package loc

import "fmt"

// Position is a zero-indexed (line, character) pair, totally ordered
// lexicographically.
type Position struct {
	Line      uint32 `msgpack:"line"`
	Character uint32 `msgpack:"character"`
}

// CompareTo returns the raw signed delta used to order two positions: not
// normalized to {-1,0,1}, callers compare against zero.
func (p Position) CompareTo(other Position) int64 {
	if p.Line != other.Line {
		return int64(p.Line) - int64(other.Line)
	}
	return int64(p.Character) - int64(other.Character)
}

func (p Position) Less(other Position) bool    { return p.CompareTo(other) < 0 }
func (p Position) Equal(other Position) bool   { return p.CompareTo(other) == 0 }
func (p Position) Translate(dLine, dChar int32) Position {
	return Position{
		Line:      uint32(int64(p.Line) + int64(dLine)),
		Character: uint32(int64(p.Character) + int64(dChar)),
	}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is an ordered pair of positions, Start <= End.
type Range struct {
	Start Position `msgpack:"start"`
	End   Position `msgpack:"end"`
}

// Empty reports whether the range spans zero characters.
func (r Range) Empty() bool { return r.Start.Equal(r.End) }

// ContainsPosition reports whether p lies within [Start, End], inclusive.
func (r Range) ContainsPosition(p Position) bool {
	return !p.Less(r.Start) && !r.End.Less(p)
}

// ContainsRange reports whether other is wholly within r.
func (r Range) ContainsRange(other Range) bool {
	return r.ContainsPosition(other.Start) && r.ContainsPosition(other.End)
}

// Translate shifts both endpoints by the same delta.
func (r Range) Translate(dLine, dChar int32) Range {
	return Range{Start: r.Start.Translate(dLine, dChar), End: r.End.Translate(dLine, dChar)}
}

// Union returns the smallest range containing both inputs.
func Union(a, b Range) Range {
	start := a.Start
	if b.Start.Less(start) {
		start = b.Start
	}
	end := a.End
	if end.Less(b.End) {
		end = b.End
	}
	return Range{Start: start, End: end}
}

// Split divides r at the position idx characters after r.Start on r.Start's
// line (the split point's line is always r.Start.Line, regardless of
// whether r itself spans multiple lines). If that split point falls at or
// past r.End, the split point lies outside the range: the first result is
// the original range and the second is empty, anchored at End. idx<=0 takes
// the symmetric shortcut directly, since the general formula agrees with it
// whenever r.Start != r.End.
func (r Range) Split(idx int) (Range, Range) {
	if idx <= 0 {
		return Range{Start: r.Start, End: r.Start}, r
	}
	mid := Position{Line: r.Start.Line, Character: r.Start.Character + uint32(idx)}
	if r.End.Less(mid) {
		return r, Range{Start: r.End, End: r.End}
	}
	return Range{Start: r.Start, End: mid}, Range{Start: mid, End: r.End}
}

// BigUnion returns the smallest range containing every input range, or the
// zero Range with ok=false when xs is empty.
func BigUnion(xs []Range) (Range, bool) {
	if len(xs) == 0 {
		return Range{}, false
	}
	result := xs[0]
	for _, r := range xs[1:] {
		result = Union(result, r)
	}
	return result, true
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Location pairs a file path with a range within it.
type Location struct {
	File  string `msgpack:"file"`
	Range Range  `msgpack:"range"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%s", l.File, l.Range)
}

// WholeFile synthesizes a location spanning an entire (unparsed) file, used
// when a diagnostic has no more precise range to attach to.
func WholeFile(file string) Location {
	return Location{File: file, Range: Range{Start: Position{}, End: Position{Line: ^uint32(0) >> 1}}}
}
