package workspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/slatex/stexls/logging"
)

// Watch roots an fsnotify watcher at ws.Config.Root and enqueues a relink
// request on d for every Write/Create/Remove/Rename event touching a .tex
// file, so edits made outside the editor (disk saves, `git checkout`, a
// collaborator's save) converge to the same diagnostics a didChange
// notification would produce.
//
// Built around fsnotify.NewWatcher and a select over Events/Errors/
// ctx.Done(), watching every subdirectory rather than just the root --
// a workspace root has an arbitrary MathHub repo/source tree beneath it,
// so every directory discovered during the initial file walk is added
// too (see DESIGN.md).
func Watch(ctx context.Context, ws *Workspace, d *Driver) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := addDirs(watcher, ws.Config.Root); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				handleEvent(watcher, ws, d, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Logger.Printf("filesystem watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func statIsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func handleEvent(watcher *fsnotify.Watcher, ws *Workspace, d *Driver, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if fi, err := statIsDir(event.Name); err == nil && fi {
			watcher.Add(event.Name)
		}
	}
	if filepath.Ext(event.Name) != ".tex" {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if !ws.IsOpen(event.Name) {
			d.RequestRelink(event.Name)
		}
	}
}
