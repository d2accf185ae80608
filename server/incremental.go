package server

import (
	"fmt"
	"unicode/utf8"

	"github.com/slatex/stexls/transport"
)

// ApplyIncrementalChange and the offset/position helpers below are
// encoding-agnostic line/offset math, independent of any particular
// document domain.
func ApplyIncrementalChange(r transport.Range, newContent string, content string, encoding transport.PositionEncodingKind) string {
	start, _ := PositionToOffset(r.Start, content, encoding)
	end, _ := PositionToOffset(r.End, content, encoding)
	return content[:start] + newContent + content[end:]
}

func PositionToOffset(pos transport.Position, s string, encoding transport.PositionEncodingKind) (uint, error) {
	if len(s) == 0 {
		return 0, nil
	}
	indices := GetLineIndices(s)
	if pos.Line > uint32(len(indices)) {
		return 0, fmt.Errorf("invalid line number")
	} else if pos.Line == uint32(len(indices)) {
		return uint(len(s)), nil
	}
	currChar := indices[pos.Line]
	for i := 0; i < int(pos.Character); i++ {
		if int(currChar) >= len(s) {
			break
		}
		r, w := utf8.DecodeRuneInString(s[currChar:])
		if w == 0 {
			break
		}
		currChar += uint(w)
		if encoding == transport.UTF16 {
			if r >= 0x10000 {
				i++
				if i == int(pos.Character) {
					break
				}
			}
		}
	}
	return currChar, nil
}

func OffsetToPosition(offset uint, s string, encoding transport.PositionEncodingKind) (transport.Position, error) {
	if len(s) == 0 || offset == 0 {
		return transport.Position{Line: 0, Character: 0}, nil
	}
	line := uint32(0)
	char := uint32(0)
	str := []byte(s)

	for i := uint(0); i < offset && i < uint(len(str)); {
		r, w := utf8.DecodeRune(str[i:])
		if w == 0 {
			break
		}
		if r == '\n' {
			line++
			char = 0
		} else {
			char++
			if r >= 0x10000 && encoding == transport.UTF16 {
				char++
			}
		}
		i += uint(w)
	}

	return transport.Position{Line: line, Character: char}, nil
}

func GetLineIndices(s string) []uint {
	lines := []uint{0}
	i := 0
	for w := 0; i < len(s); i += w {
		runeValue, width := utf8.DecodeRuneInString(s[i:])
		if runeValue == '\n' {
			lines = append(lines, uint(i)+1)
		}
		w = width
	}
	return lines
}

