package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/slatex/stexls/loc"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/stex/symbol"
)

// cacheSchemaVersion is stamped as the first field of every on-disk object
// cache envelope (SPEC_FULL.md §6); bump it whenever the wire shape changes
// so stale caches are rejected instead of misread.
const cacheSchemaVersion = 1

// envelope is the versioned on-disk representation of a StexObject. The
// in-memory symbol tree carries Parent back-references that msgpack cannot
// round-trip directly, so symbols are flattened to wireSymbol (no Parent
// pointer) and reattached to their parent after decoding.
type envelope struct {
	Version      int            `msgpack:"version"`
	File         string         `msgpack:"file"`
	SymbolTable  *wireSymbol    `msgpack:"symbol_table"`
	Dependencies []wireDep      `msgpack:"dependencies"`
	References   []wireRef      `msgpack:"references"`
	Diagnostics  []wireDiag     `msgpack:"diagnostics"`
}

type wireSymbol struct {
	Kind       symbol.Kind            `msgpack:"kind"`
	Name       string                 `msgpack:"name"`
	Location   loc.Location           `msgpack:"location"`
	Access     symbol.Access          `msgpack:"access"`
	ModuleType symbol.ModuleType      `msgpack:"module_type"`
	Lang       string                 `msgpack:"lang"`
	DefType    symbol.DefType         `msgpack:"def_type"`
	Noverb     bool                   `msgpack:"noverb"`
	Noverbs    []string               `msgpack:"noverbs"`
	Children   map[string][]*wireSymbol `msgpack:"children"`
}

func toWireSymbol(s *symbol.Symbol) *wireSymbol {
	w := &wireSymbol{
		Kind: s.Kind, Name: s.Name, Location: s.Location, Access: s.Access,
		ModuleType: s.ModuleType, Lang: s.Lang, DefType: s.DefType, Noverb: s.Noverb,
		Children: make(map[string][]*wireSymbol, len(s.Children)),
	}
	for lang := range s.Noverbs {
		w.Noverbs = append(w.Noverbs, lang)
	}
	for name, siblings := range s.Children {
		for _, c := range siblings {
			w.Children[name] = append(w.Children[name], toWireSymbol(c))
		}
	}
	return w
}

func fromWireSymbol(w *wireSymbol, parent *symbol.Symbol) *symbol.Symbol {
	s := &symbol.Symbol{
		Kind: w.Kind, Name: w.Name, Location: w.Location, Access: w.Access,
		ModuleType: w.ModuleType, Lang: w.Lang, DefType: w.DefType, Noverb: w.Noverb,
		Parent:   parent,
		Children: make(map[string][]*symbol.Symbol, len(w.Children)),
	}
	if w.Noverbs != nil {
		s.Noverbs = symbol.NewNoverbSet(w.Noverbs...)
	}
	for name, siblings := range w.Children {
		for _, c := range siblings {
			s.Children[name] = append(s.Children[name], fromWireSymbol(c, s))
		}
	}
	return s
}

type wireDep struct {
	Range          loc.Range         `msgpack:"range"`
	ScopePath      []string          `msgpack:"scope_path"`
	ModuleName     string            `msgpack:"module_name"`
	ModuleTypeHint symbol.ModuleType `msgpack:"module_type_hint"`
	FileHint       string            `msgpack:"file_hint"`
	Export         bool              `msgpack:"export"`
}

type wireRef struct {
	Range         loc.Range `msgpack:"range"`
	ScopePath     []string  `msgpack:"scope_path"`
	QualifiedName []string  `msgpack:"qualified_name"`
	ReferenceType ReferenceType `msgpack:"reference_type"`
}

type wireDiag struct {
	Range              loc.Range                    `msgpack:"range"`
	Message            string                       `msgpack:"message"`
	Severity           diagnostic.Severity          `msgpack:"severity"`
	Code               diagnostic.Code              `msgpack:"code"`
	Tags               []diagnostic.Tag             `msgpack:"tags"`
	RelatedInformation []diagnostic.RelatedInformation `msgpack:"related_information"`
}

// scopePath returns the chain of symbol names from root to s, used as a
// stable, serializable stand-in for a live *symbol.Symbol pointer.
func scopePath(s *symbol.Symbol) []string {
	var path []string
	for cur := s; cur != nil && cur.Kind != symbol.KindRoot; cur = cur.Parent {
		path = append([]string{cur.Name}, path...)
	}
	return path
}

func resolveScopePath(root *symbol.Symbol, path []string) *symbol.Symbol {
	cur := root
	for _, name := range path {
		children := cur.Children[name]
		if len(children) == 0 {
			return root
		}
		cur = children[0]
	}
	return cur
}

// Marshal serializes obj into the versioned MessagePack cache envelope.
func Marshal(obj *StexObject) ([]byte, error) {
	env := &envelope{Version: cacheSchemaVersion, File: obj.File, SymbolTable: toWireSymbol(obj.SymbolTable)}
	for _, d := range obj.Dependencies {
		env.Dependencies = append(env.Dependencies, wireDep{
			Range: d.Range, ScopePath: scopePath(d.Scope), ModuleName: d.ModuleName,
			ModuleTypeHint: d.ModuleTypeHint, FileHint: d.FileHint, Export: d.Export,
		})
	}
	for _, r := range obj.References {
		env.References = append(env.References, wireRef{
			Range: r.Range, ScopePath: scopePath(r.Scope), QualifiedName: r.QualifiedName, ReferenceType: r.ReferenceType,
		})
	}
	if obj.Diagnostics != nil {
		for _, d := range obj.Diagnostics.Items {
			env.Diagnostics = append(env.Diagnostics, wireDiag{
				Range: d.Range, Message: d.Message, Severity: d.Severity, Code: d.Code,
				Tags: d.Tags, RelatedInformation: d.RelatedInformation,
			})
		}
	}
	return msgpack.Marshal(env)
}

// Unmarshal deserializes a cache envelope, rejecting any payload whose
// schema version does not match cacheSchemaVersion so a format change
// invalidates old caches instead of silently misreading them.
func Unmarshal(data []byte) (*StexObject, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Version != cacheSchemaVersion {
		return nil, fmt.Errorf("stexobj cache schema mismatch: got %d, want %d", env.Version, cacheSchemaVersion)
	}
	root := fromWireSymbol(env.SymbolTable, nil)
	obj := &StexObject{File: env.File, SymbolTable: root, Diagnostics: &diagnostic.Bag{}}
	for _, d := range env.Dependencies {
		obj.Dependencies = append(obj.Dependencies, &Dependency{
			Range: d.Range, Scope: resolveScopePath(root, d.ScopePath), ModuleName: d.ModuleName,
			ModuleTypeHint: d.ModuleTypeHint, FileHint: d.FileHint, Export: d.Export,
		})
	}
	for _, r := range env.References {
		obj.References = append(obj.References, &Reference{
			Range: r.Range, Scope: resolveScopePath(root, r.ScopePath), QualifiedName: r.QualifiedName, ReferenceType: r.ReferenceType,
		})
	}
	for _, d := range env.Diagnostics {
		obj.Diagnostics.Items = append(obj.Diagnostics.Items, diagnostic.Diagnostic{
			Range: d.Range, Message: d.Message, Severity: d.Severity, Code: d.Code,
			Tags: d.Tags, RelatedInformation: d.RelatedInformation,
		})
	}
	return obj, nil
}

// LoadOrCompile implements SPEC_FULL.md §4.2's two-attempt cache-read-or-
// recompile contract: try the cache, and on any read/deserialize error or a
// stale mtime, delete the cache entry and recompile exactly once.
func LoadOrCompile(c *Compiler, outdir, file, content string, forceRecompile bool) (*StexObject, error) {
	cachePath := ObjectFilePath(outdir, file)
	if !forceRecompile {
		if obj, err := tryLoadCache(cachePath, file); err == nil {
			return obj, nil
		}
		os.Remove(cachePath)
	}
	obj := c.Compile(file, content)
	if err := writeCache(cachePath, obj); err != nil {
		return obj, fmt.Errorf("compiled %s but failed to write cache: %w", file, err)
	}
	return obj, nil
}

func tryLoadCache(cachePath, sourceFile string) (*StexObject, error) {
	srcInfo, err := os.Stat(sourceFile)
	if err != nil {
		return nil, err
	}
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, err
	}
	if srcInfo.ModTime().After(cacheInfo.ModTime()) {
		return nil, fmt.Errorf("cache for %s is stale", sourceFile)
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func writeCache(cachePath string, obj *StexObject) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return err
	}
	data, err := Marshal(obj)
	if err != nil {
		return err
	}
	tmp := cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, cachePath)
}
