// Command stexlint batch-compiles and links an sTeX workspace and reports
// every diagnostic through a configurable message-format template. The
// command-tree/flag style is grounded on cue-lang-cue's cmd/cue cobra
// structure.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/otiai10/copy"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slatex/stexls/stex/compiler"
	"github.com/slatex/stexls/stex/diagnostic"
	"github.com/slatex/stexls/stex/linker"
	"github.com/slatex/stexls/util"
	"github.com/slatex/stexls/workspace"
)

const defaultFormat = "{relative_file}:{line}:{column} {severity} [{code}] {message}"

func main() {
	var (
		root    string
		include []string
		ignore  []string
		format  string
		outDir  string
		jobs    int
		archive string
	)

	cmd := &cobra.Command{
		Use:   "stexlint",
		Short: "Batch-compile and link an sTeX workspace, reporting diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(root, include, ignore, format, outDir, jobs, archive)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&root, "root", ".", "workspace root directory")
	flags.StringSliceVar(&include, "include", nil, "regex patterns a file path must match at least one of")
	flags.StringSliceVar(&ignore, "ignore", nil, "regex patterns that exclude a matching file path")
	flags.StringVar(&format, "format", defaultFormat, "message template for each reported diagnostic")
	flags.StringVar(&outDir, "outdir", "", "object-file cache directory (default <root>/.stexls-cache)")
	flags.IntVar(&jobs, "jobs", 4, "number of parallel compile workers")
	flags.StringVar(&archive, "archive", "", "snapshot the linted workspace plus its diagnostics report into this directory")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(root string, include, ignore []string, format, outDir string, jobs int, archive string) error {
	ws, err := workspace.New(workspace.Config{
		Root:    root,
		Include: include,
		Ignore:  ignore,
		OutDir:  outDir,
		Jobs:    jobs,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	files, err := ws.Files()
	if err != nil {
		return fmt.Errorf("failed to enumerate workspace files: %w", err)
	}

	modules, err := compileAll(ws, files, jobs)
	if err != nil {
		return err
	}

	var report strings.Builder
	hasError := false
	for _, f := range files {
		obj, ok := modules[f]
		if !ok {
			continue
		}
		var diags diagnostic.Bag
		order := linker.MakeBuildOrder(obj, modules, &diags)
		linked := linker.Link(order, obj)
		linker.ValidateReferences(linked)
		linked.Diagnostics.Items = append(linked.Diagnostics.Items, diags.Items...)

		for _, d := range linked.Diagnostics.Items {
			if d.Severity == diagnostic.Error {
				hasError = true
			}
			line := formatDiagnostic(format, root, f, d)
			fmt.Println(line)
			report.WriteString(line)
			report.WriteByte('\n')
		}
	}

	if archive != "" {
		if err := archiveWorkspace(root, archive, report.String()); err != nil {
			return fmt.Errorf("failed to archive workspace: %w", err)
		}
	}

	if hasError {
		os.Exit(1)
	}
	return nil
}

// compileAll runs the same bounded errgroup worker pool the incremental
// driver uses (workspace/driver.go's recompileAll), but once over the full
// file set rather than under a debounce loop.
func compileAll(ws *workspace.Workspace, files []string, jobs int) (linker.FileIndex, error) {
	c := compiler.New(ws.Config.Root)
	results := make([]*compiler.StexObject, len(files))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(jobs)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			content, err := ws.ReadFile(f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping unreadable file %s: %v\n", f, err)
				return nil
			}
			obj, err := compiler.LoadOrCompile(c, ws.ObjectCacheDir(), f, content, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "compile error for %s: %v\n", f, err)
			}
			results[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	modules := make(linker.FileIndex, len(files))
	for _, obj := range results {
		if obj != nil {
			modules[obj.File] = obj
		}
	}
	return modules, nil
}

func formatDiagnostic(format, root, file string, d diagnostic.Diagnostic) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	r := strings.NewReplacer(
		"{uri}", util.Path2URI(file),
		"{file}", file,
		"{filename}", filepath.Base(file),
		"{relative_file}", rel,
		"{line}", strconv.Itoa(int(d.Range.Start.Line)+1),
		"{column}", strconv.Itoa(int(d.Range.Start.Character)+1),
		"{severity}", severityName(d.Severity),
		"{code}", string(d.Code),
		"{message}", d.Message,
	)
	return r.Replace(format)
}

func severityName(s diagnostic.Severity) string {
	switch s {
	case diagnostic.Error:
		return "error"
	case diagnostic.Warning:
		return "warning"
	case diagnostic.Information:
		return "information"
	case diagnostic.Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// archiveWorkspace snapshots root plus a diagnostics report into dest via
// otiai10/copy.
func archiveWorkspace(root, dest, report string) error {
	if err := copy.Copy(root, filepath.Join(dest, "workspace")); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "diagnostics.txt"), []byte(report), 0644)
}
