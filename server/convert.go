package server

import (
	"github.com/slatex/stexls/loc"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
)

// transportPosition/transportRange/transportLocation convert between the
// compiler/linker's loc package and the LSP wire types. Both sides use
// zero-indexed (line, character) pairs, so the conversion is a direct field
// copy, never an offset computation.
func transportPosition(p loc.Position) transport.Position {
	return transport.Position{Line: p.Line, Character: p.Character}
}

func transportRange(r loc.Range) transport.Range {
	return transport.Range{Start: transportPosition(r.Start), End: transportPosition(r.End)}
}

func transportLocation(l loc.Location) transport.Location {
	return transport.Location{
		URI:   transport.DocumentURI(util.Path2URI(l.File)),
		Range: transportRange(l.Range),
	}
}

func tagsToLSP(tags []diagnostic.Tag) []int {
	if len(tags) == 0 {
		return nil
	}
	out := make([]int, len(tags))
	for i, t := range tags {
		out[i] = int(t)
	}
	return out
}

func toTransportDiagnostic(d diagnostic.Diagnostic) transport.Diagnostic {
	var related []transport.DiagnosticRelatedInformation
	for _, ri := range d.RelatedInformation {
		related = append(related, transport.DiagnosticRelatedInformation{
			Location: transportLocation(ri.Location),
			Message:  ri.Message,
		})
	}
	return transport.Diagnostic{
		Range:              transportRange(d.Range),
		Severity:           int(d.Severity),
		Code:               string(d.Code),
		Source:             "stexls",
		Message:            d.Message,
		Tags:               tagsToLSP(d.Tags),
		RelatedInformation: related,
	}
}
