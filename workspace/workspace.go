// Package workspace enumerates and tracks a tree of .tex files, serving as
// the single source of truth the server and the batch linter both compile
// and link against.
//
// Grounded on original_source/stexls/util/workspace.py for file-filter
// semantics; open-buffer bookkeeping follows a locking file-store idiom
// (sha256 content hashing, a package-level mutex plus a per-file mutex).
// See DESIGN.md.
package workspace

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/slatex/stexls/loc"
)

// Config carries everything that would otherwise be process-global state:
// include/ignore filters, the object-cache directory and the worker count
// for parallel compilation.
type Config struct {
	Root    string
	Include []string
	Ignore  []string
	OutDir  string
	Jobs    int
}

func (c Config) objectCacheDir() string {
	if c.OutDir != "" {
		return c.OutDir
	}
	return filepath.Join(c.Root, ".stexls-cache")
}

type buffer struct {
	mu      sync.RWMutex
	content string
	hash    [sha256.Size]byte
}

// Workspace owns the set of open editor buffers and the include/ignore
// filters used for file enumeration. It does not itself compile or link --
// that is the driver's job (driver.go) -- keeping "what files exist / are
// open" separate from "what does the compiled state look like".
type Workspace struct {
	Config Config

	include []*regexp.Regexp
	ignore  []*regexp.Regexp

	mu      sync.Mutex
	buffers map[string]*buffer
}

func New(cfg Config) (*Workspace, error) {
	w := &Workspace{Config: cfg, buffers: make(map[string]*buffer)}
	for _, pat := range cfg.Include {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pat, err)
		}
		w.include = append(w.include, re)
	}
	for _, pat := range cfg.Ignore {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pat, err)
		}
		w.ignore = append(w.ignore, re)
	}
	return w, nil
}

// ObjectCacheDir exposes Config.objectCacheDir to callers outside the
// package (the batch linter, which compiles without a Driver).
func (w *Workspace) ObjectCacheDir() string {
	return w.Config.objectCacheDir()
}

func (w *Workspace) matches(path string) bool {
	if filepath.Ext(path) != ".tex" {
		return false
	}
	if len(w.include) > 0 {
		ok := false
		for _, re := range w.include {
			if re.MatchString(path) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, re := range w.ignore {
		if re.MatchString(path) {
			return false
		}
	}
	return true
}

// Files enumerates every .tex file under Root passing the include (logical
// OR) then ignore (logical AND of non-matches) filters.
func (w *Workspace) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.Config.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if w.matches(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenFile registers an editor-owned buffer, taking precedence over disk
// content for every subsequent ReadFile/compile until CloseFile.
func (w *Workspace) OpenFile(path, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffers[path] = &buffer{content: text, hash: sha256.Sum256([]byte(text))}
}

// UpdateFileIncremental replaces an open buffer's content. Full-document
// sync only (SPEC_FULL.md's capabilities advertise change: Full); the
// caller is expected to have already resolved any incremental range edit
// into the full new text via server.ApplyIncrementalChange.
func (w *Workspace) UpdateFileIncremental(path, newFullText string) {
	w.mu.Lock()
	b, ok := w.buffers[path]
	if !ok {
		b = &buffer{}
		w.buffers[path] = b
	}
	w.mu.Unlock()

	b.mu.Lock()
	b.content = newFullText
	b.hash = sha256.Sum256([]byte(newFullText))
	b.mu.Unlock()
}

func (w *Workspace) CloseFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.buffers, path)
}

// ReadFile returns the open buffer's content when present, else disk
// content.
func (w *Workspace) ReadFile(path string) (string, error) {
	w.mu.Lock()
	b, ok := w.buffers[path]
	w.mu.Unlock()
	if ok {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// IsOpen reports whether path has an editor-owned buffer, which forces
// recompilation regardless of on-disk cache freshness (SPEC_FULL.md §4.2).
func (w *Workspace) IsOpen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.buffers[path]
	return ok
}

// ReadLocation returns the exact substring spanned by r within file, reading
// through the open buffer when present. loc.Range positions are
// (line, character) pairs, so the content is scanned line-by-line to find
// the corresponding byte offsets rather than treated as raw byte indices.
func (w *Workspace) ReadLocation(file string, r loc.Range) (string, error) {
	content, err := w.ReadFile(file)
	if err != nil {
		return "", err
	}
	start, err := lineCharToByteOffset(content, r.Start)
	if err != nil {
		return "", fmt.Errorf("location %s out of range for %s: %w", r, file, err)
	}
	end, err := lineCharToByteOffset(content, r.End)
	if err != nil {
		return "", fmt.Errorf("location %s out of range for %s: %w", r, file, err)
	}
	if start > end || end > len(content) {
		return "", fmt.Errorf("location %s out of range for %s (len %d)", r, file, len(content))
	}
	return content[start:end], nil
}

// LogValue gives slog a structured view of the workspace without dumping
// buffer contents.
func (w *Workspace) LogValue() slog.Value {
	w.mu.Lock()
	openCount := len(w.buffers)
	w.mu.Unlock()
	return slog.GroupValue(
		slog.String("root", w.Config.Root),
		slog.Int("openFiles", openCount),
	)
}

func lineCharToByteOffset(content string, p loc.Position) (int, error) {
	line, char := 0, uint32(0)
	for i := 0; i < len(content); i++ {
		if uint32(line) == p.Line && char == p.Character {
			return i, nil
		}
		if content[i] == '\n' {
			line++
			char = 0
		} else {
			char++
		}
	}
	if uint32(line) == p.Line && char == p.Character {
		return len(content), nil
	}
	return 0, fmt.Errorf("position %s not found", p)
}

