package workspace

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slatex/stexls/logging"
	"github.com/slatex/stexls/stex/compiler"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/stex/linker"
)

// LinkResult is what the driver publishes once a file has been recompiled,
// relinked and had its references validated.
type LinkResult struct {
	File        string
	Diagnostics *diagnostic.Bag
}

// Driver is the incremental compile+link loop described in SPEC_FULL.md
// §4.5: a debounced set of "needs relinking" requests, drained by a
// periodic task, feeding a bounded worker pool for the CPU-bound half of
// the work, then relinked and validated one file at a time.
type Driver struct {
	ws       *Workspace
	compiler *compiler.Compiler
	debounce time.Duration
	jobs     int

	mu      sync.Mutex
	pending map[string]struct{}
	modules linker.FileIndex
	linked  map[string]*linker.LinkedObject

	Publish func(LinkResult)
}

func NewDriver(ws *Workspace, debounce time.Duration, publish func(LinkResult)) *Driver {
	jobs := ws.Config.Jobs
	if jobs <= 0 {
		jobs = 4
	}
	return &Driver{
		ws:       ws,
		compiler: compiler.New(ws.Config.Root),
		debounce: debounce,
		jobs:     jobs,
		pending:  make(map[string]struct{}),
		modules:  make(linker.FileIndex),
		linked:   make(map[string]*linker.LinkedObject),
		Publish:  publish,
	}
}

// RequestRelink enqueues path for the next debounce drain. Safe to call
// from any goroutine (the LSP handler, a didChange notification, or the
// fsnotify watcher).
func (d *Driver) RequestRelink(path string) {
	d.mu.Lock()
	d.pending[path] = struct{}{}
	d.mu.Unlock()
}

// Run blocks, draining the pending set every time it has been quiescent for
// the debounce period, until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.debounce)
	defer ticker.Stop()
	var lastSize int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			size := len(d.pending)
			d.mu.Unlock()
			if size == 0 || size != lastSize {
				lastSize = size
				continue
			}
			d.drain(ctx)
			lastSize = 0
		}
	}
}

func (d *Driver) drain(ctx context.Context) {
	d.mu.Lock()
	files := make([]string, 0, len(d.pending))
	for f := range d.pending {
		files = append(files, f)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	if len(files) == 0 {
		return
	}
	if err := d.recompileAll(ctx); err != nil {
		logging.Logger.Printf("workspace recompile failed: %v", err)
		return
	}
	for _, f := range files {
		obj, ok := d.modules[f]
		if !ok {
			continue
		}
		var diags diagnostic.Bag
		order := linker.MakeBuildOrder(obj, d.modules, &diags)
		linked := linker.Link(order, obj)
		linker.ValidateReferences(linked)
		linked.Diagnostics.Items = append(linked.Diagnostics.Items, diags.Items...)

		d.mu.Lock()
		d.linked[f] = linked
		d.mu.Unlock()

		if d.Publish != nil {
			d.Publish(LinkResult{File: f, Diagnostics: linked.Diagnostics})
		}
	}
}

// Linked returns the most recent LinkedObject computed for file, if any.
func (d *Driver) Linked(file string) (*linker.LinkedObject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.linked[file]
	return l, ok
}

// AllLinked returns a snapshot of every file's most recent LinkedObject, for
// workspace-wide queries like textDocument/references.
func (d *Driver) AllLinked() map[string]*linker.LinkedObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*linker.LinkedObject, len(d.linked))
	for k, v := range d.linked {
		out[k] = v
	}
	return out
}

// recompileAll (re)compiles every workspace file through the bounded
// errgroup worker pool, refreshing the module index used for linking.
// Grounded on golang.org/x/sync/errgroup's fan-out-then-join idiom
// (SPEC_FULL.md §5); each task is pure except for the disk read and the
// atomic cache write performed inside compiler.LoadOrCompile.
func (d *Driver) recompileAll(ctx context.Context) error {
	files, err := d.ws.Files()
	if err != nil {
		return err
	}
	results := make([]*compiler.StexObject, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			content, err := d.ws.ReadFile(f)
			if err != nil {
				logging.Logger.Printf("skipping unreadable file %s: %v", f, err)
				return nil
			}
			obj, err := compiler.LoadOrCompile(d.compiler, d.ws.Config.objectCacheDir(), f, content, d.ws.IsOpen(f))
			if err != nil {
				logging.Logger.Printf("compile error for %s: %v", f, err)
			}
			results[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	modules := make(linker.FileIndex, len(files))
	for _, obj := range results {
		if obj != nil {
			modules[obj.File] = obj
		}
	}
	d.mu.Lock()
	d.modules = modules
	d.mu.Unlock()
	return nil
}

// Modules returns a snapshot of the current module index, for read-only use
// by the server's completion/definition/references handlers.
func (d *Driver) Modules() linker.FileIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(linker.FileIndex, len(d.modules))
	for k, v := range d.modules {
		out[k] = v
	}
	return out
}
