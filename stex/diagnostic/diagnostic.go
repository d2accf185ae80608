// Package diagnostic implements the uniform diagnostic taxonomy emitted by
// the intermediate parser, the object compiler and the linker (SPEC_FULL.md
// §4.6), ported one-to-one from
// original_source/stexls/stex/diagnostics.py's DiagnosticCodeName and
// Diagnostics constructor methods.
package diagnostic

import (
	"fmt"

	"github.com/slatex/stexls/loc"
)

// Severity mirrors the LSP DiagnosticSeverity enum.
type Severity int

const (
	Error Severity = 1
	Warning Severity = 2
	Information Severity = 3
	Hint Severity = 4
)

// Tag mirrors the LSP DiagnosticTag enum.
type Tag int

const (
	Unnecessary Tag = 1
	Deprecated  Tag = 2
)

// Code is a stable short identifier, one per taxonomy entry.
type Code string

const (
	CodeCantInferRefModuleOutsideModule Code = "cannot-infer-referenced-module-outside-module"
	CodeDuplicateSymbol                 Code = "duplicate-symbol-check"
	CodeParserException                 Code = "parser-exception"
	CodeModuleFileNameMismatch          Code = "filename-mismatch-check"
	CodeSemanticLocationCheck           Code = "location-check"
	CodeMtrefDeprecation                Code = "mtref-deprecation-check"
	CodeMtrefQuestionmark               Code = "mtref-questionmark-check"
	CodeInvalidRedefinition              Code = "invalid-redefinition"
	CodeReposDeprecation                Code = "repos-deprecation-check"
	CodeIsCurrentDir                     Code = "is-current-dir-check"
	CodeUniqueDependencyName             Code = "unique-dependency-name-check"
	CodeUndefinedModuleNotExported       Code = "undefined-module-not-exported"
	CodeCyclicDependency                 Code = "cyclic-dependency-check"
	CodeFileNotFound                     Code = "file-not-found"
	CodeUndefinedSymbol                  Code = "undefined-symbol"
	CodeReferenceTypeCheck               Code = "reference-type-check"
	CodeRedundantImport                  Code = "redundant-import-check"
	CodeTrefierTagHint                   Code = "generic-trefier-tag-hint"
	CodeReferencedNoverb                 Code = "referenced-noverb-symbol"
	CodeSymbolAccessCheck                Code = "symbol-access-check"
	CodeGenericException                 Code = "generic-exception"
	CodeNeverReferenced                  Code = "never-referenced"
)

// RelatedInformation is a secondary location attached to a Diagnostic, e.g.
// pointing at a previous definition or an imported-at site.
type RelatedInformation struct {
	Location loc.Location
	Message  string
}

// Diagnostic is the uniform issue type produced by every compile/link stage.
type Diagnostic struct {
	Range               loc.Range
	Message             string
	Severity            Severity
	Code                Code
	Tags                []Tag
	RelatedInformation  []RelatedInformation
}

// Bag accumulates diagnostics for one file or one link pass.
type Bag struct {
	Items []Diagnostic
}

func (b *Bag) add(d Diagnostic) {
	b.Items = append(b.Items, d)
}

func (b *Bag) Copy() *Bag {
	cp := &Bag{Items: make([]Diagnostic, len(b.Items))}
	copy(cp.Items, b.Items)
	return cp
}

func (b *Bag) CantInferRefModuleOutsideModule(r loc.Range) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeCantInferRefModuleOutsideModule,
		Message: "Cannot infer what module is referenced outside of any module",
	})
}

func (b *Bag) ModuleNotFoundSemanticLocationCheck(r loc.Range, envName string) {
	b.semanticLocationCheck(r, envName, "Parent module info not found")
}

func (b *Bag) ParentMustBeRootSemanticLocationCheck(r loc.Range, envName string) {
	b.semanticLocationCheck(r, envName, "Parent must be root")
}

func (b *Bag) semanticLocationCheck(r loc.Range, envName, extra string) {
	msg := fmt.Sprintf("Invalid location for %s", envName)
	if extra != "" {
		msg = fmt.Sprintf("Invalid location for %s: %s", envName, extra)
	}
	b.add(Diagnostic{Range: r, Severity: Error, Code: CodeSemanticLocationCheck, Message: msg})
}

func (b *Bag) ImportPathDepthExceeded(r loc.Range) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeSemanticLocationCheck,
		Message: "Import path depth exceeds MathHub convention (root/<repo>/source/...)",
	})
}

func (b *Bag) IsCurrentDirCheck(r loc.Range, dir string) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeIsCurrentDir,
		Message: fmt.Sprintf("Already located inside directory %q", dir),
		Tags:    []Tag{Unnecessary},
	})
}

func (b *Bag) ReplaceReposWithMhrepos(r loc.Range) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeReposDeprecation,
		Message: `Argument "repos" is deprecated and should be replaced with "mhrepos".`,
		Tags:    []Tag{Deprecated},
	})
}

func (b *Bag) InvalidRedefinition(r loc.Range, other loc.Location, info string) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeInvalidRedefinition, Message: info,
		RelatedInformation: []RelatedInformation{{Location: other, Message: "Previous definition"}},
	})
}

func (b *Bag) MtrefDeprecated(r loc.Range) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeMtrefDeprecation,
		Message: `"mtref" environments are deprecated`,
		Tags:    []Tag{Deprecated},
	})
}

func (b *Bag) MtrefQuestionmarkSyntax(r loc.Range) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeMtrefQuestionmark,
		Message: `Invalid "mtref" environment: Target symbol must be clarified by using "?<symbol>" syntax.`,
	})
}

func (b *Bag) FileNameMismatch(r loc.Range, expected, actual string) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeModuleFileNameMismatch,
		Message: fmt.Sprintf("Expected the this file name %q, but found %q", expected, actual),
	})
}

func (b *Bag) DuplicateSymbolDefinition(r loc.Range, name string, previous loc.Location) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeDuplicateSymbol,
		Message: fmt.Sprintf("Symbol %q previously defined at %q", name, previous),
	})
}

func (b *Bag) ParserException(r loc.Range, err error) {
	b.add(Diagnostic{Range: r, Severity: Error, Code: CodeParserException, Message: err.Error()})
}

func (b *Bag) Exception(r loc.Range, err error) {
	b.add(Diagnostic{Range: r, Severity: Error, Code: CodeGenericException, Message: err.Error()})
}

func (b *Bag) UnableToLinkNonUniqueModule(r loc.Range, moduleName, file string) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeUniqueDependencyName,
		Message: fmt.Sprintf("Module %q not unique in %q", moduleName, file),
	})
}

// SimilarSymbol is a fuzzy-match suggestion attached to an undefined-symbol
// diagnostic.
type SimilarSymbol struct {
	Name     string
	Location loc.Location
}

func (b *Bag) UndefinedSymbol(r loc.Range, name string, similar []SimilarSymbol) {
	msg := fmt.Sprintf("Undefined symbol %q", name)
	if len(similar) > 0 {
		msg += ": Did you mean " + formatSuggestions(similar) + "?"
	}
	var related []RelatedInformation
	for _, s := range similar {
		related = append(related, RelatedInformation{Location: s.Location, Message: "Related symbol: " + s.Name})
	}
	b.add(Diagnostic{Range: r, Severity: Error, Code: CodeUndefinedSymbol, Message: msg, RelatedInformation: related})
}

func formatSuggestions(similar []SimilarSymbol) string {
	out := ""
	for i, s := range similar {
		if i > 0 {
			if i == len(similar)-1 {
				out += " or "
			} else {
				out += ", "
			}
		}
		out += fmt.Sprintf("%q", s.Name)
	}
	return out
}

func (b *Bag) UndefinedModuleNotExported(r loc.Range, moduleName, file string) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeUndefinedModuleNotExported,
		Message: fmt.Sprintf("Undefined module %q symbol not exported from file: %q", moduleName, file),
	})
}

func (b *Bag) AttemptAccessPrivateSymbol(r loc.Range, name string) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeSymbolAccessCheck,
		Message: fmt.Sprintf("Accessed symbol %q is marked as private", name),
	})
}

func (b *Bag) CyclicDependency(r loc.Range, moduleName string, importedAt loc.Location) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeCyclicDependency,
		Message: fmt.Sprintf("Cyclic dependency created at import of %q", moduleName),
		RelatedInformation: []RelatedInformation{{Location: importedAt, Message: "Imported at"}},
	})
}

func (b *Bag) FileNotFound(r loc.Range, file string) {
	b.add(Diagnostic{Range: r, Severity: Error, Code: CodeFileNotFound, Message: fmt.Sprintf("File not found: %q", file)})
}

func (b *Bag) ReferenceTypeCheck(r loc.Range, expected, actual string) {
	b.add(Diagnostic{
		Range: r, Severity: Error, Code: CodeReferenceTypeCheck,
		Message: fmt.Sprintf("Expected symbol type is %q but the resolved symbol is of type %q", expected, actual),
	})
}

func (b *Bag) SymbolIsNoverb(r loc.Range, name, lang string, related *loc.Location) {
	msg := fmt.Sprintf("Symbol %q is marked as noverb", name)
	if lang != "" {
		msg = fmt.Sprintf("Symbol %q is marked as noverb for the language %q", name, lang)
	}
	var rel []RelatedInformation
	if related != nil {
		rel = append(rel, RelatedInformation{Location: *related, Message: "Referenced symbol"})
	}
	b.add(Diagnostic{Range: r, Severity: Warning, Code: CodeReferencedNoverb, Message: msg, RelatedInformation: rel})
}

func (b *Bag) RedundantImport(r loc.Range, moduleName string, previouslyAt *loc.Location) {
	var rel []RelatedInformation
	if previouslyAt != nil {
		rel = append(rel, RelatedInformation{Location: *previouslyAt, Message: "Previously located here"})
	}
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeRedundantImport,
		Message: fmt.Sprintf("Redundant import of module %q", moduleName),
		Tags:    []Tag{Unnecessary},
		RelatedInformation: rel,
	})
}

func (b *Bag) NeverReferenced(r loc.Range, name string) {
	b.add(Diagnostic{
		Range: r, Severity: Warning, Code: CodeNeverReferenced,
		Message: fmt.Sprintf("Symbol %q is never referenced", name),
		Tags:    []Tag{Unnecessary},
	})
}

func (b *Bag) TrefierTagHint(r loc.Range, message string) {
	b.add(Diagnostic{Range: r, Severity: Information, Code: CodeTrefierTagHint, Message: message})
}
