package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slatex/stexls/loc"
)

func TestFilesAppliesIncludeThenIgnore(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.tex"), "")
	mustWrite(t, filepath.Join(dir, "b.tex"), "")
	mustWrite(t, filepath.Join(dir, "b.en.tex"), "")
	mustWrite(t, filepath.Join(dir, "ignore.txt"), "")

	ws, err := New(Config{Root: dir, Include: []string{`.*\.tex$`}, Ignore: []string{`\.en\.tex$`}})
	if err != nil {
		t.Fatal(err)
	}
	files, err := ws.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files after include+ignore filtering, got %+v", files)
	}
}

func TestOpenFileShadowsDiskContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.tex")
	mustWrite(t, path, "disk content")

	ws, err := New(Config{Root: dir})
	if err != nil {
		t.Fatal(err)
	}
	ws.OpenFile(path, "buffer content")
	content, err := ws.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if content != "buffer content" {
		t.Fatalf("expected open buffer to shadow disk, got %q", content)
	}
	if !ws.IsOpen(path) {
		t.Fatalf("expected IsOpen to be true")
	}

	ws.CloseFile(path)
	content, err = ws.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if content != "disk content" {
		t.Fatalf("expected disk content after close, got %q", content)
	}
	if ws.IsOpen(path) {
		t.Fatalf("expected IsOpen to be false after close")
	}
}

func TestReadLocationReturnsExactSubstring(t *testing.T) {
	dir := t.TempDir()
	ws, err := New(Config{Root: dir})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "m.tex")
	ws.OpenFile(path, "hello world")
	got, err := ws.ReadLocation(path, loc.Range{Start: loc.Position{Line: 0, Character: 6}, End: loc.Position{Line: 0, Character: 11}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "world" {
		t.Fatalf("expected %q, got %q", "world", got)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
