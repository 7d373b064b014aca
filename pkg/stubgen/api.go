// Package stubgen is the stable public API for generating Python type stubs
// from Cap'n Proto schemas.
//
// The input is a CodeGeneratorRequest dump (JSON or YAML) as produced by the
// schema compiler:
//
//	capnp compile -o- addressbook.capnp | \
//	    capnp convert binary:json schema.capnp CodeGeneratorRequest
//
// For each requested schema file the generator produces three artifacts: a
// .pyi declarations file describing every class pycapnp manufactures at
// runtime, a .py loader module binding those names for import, and a py.typed
// marker so type checkers trust the package.
//
// Typical programmatic use:
//
//	mods, _ := schema.LoadFile("addressbook.json")
//	files, _ := stubgen.Generate(mods, &stubgen.Options{OutputDir: "stubs"})
//	stubgen.Write(files)
//
// The stubgen CLI wraps this package; use it directly from build tooling when
// you want stub generation inside a larger pipeline.
package stubgen

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/capnpy/stubgen/internal/gen"
	"github.com/capnpy/stubgen/pkg/schema"
)

// Options holds generation options shared by every file of a run.
type Options struct {
	// OutputDir receives the generated files. Empty means the current
	// directory.
	OutputDir string

	// NamePrefix overrides the output base name derived from the schema
	// source path. Only meaningful for single-file runs; the "_capnp"
	// suffix is always appended.
	NamePrefix string

	// ImportPaths are extra schema search directories the generated
	// loader passes to capnp.load.
	ImportPaths []string

	// IncludeImported also generates stubs for files that were only
	// pulled in as imports of the requested files.
	IncludeImported bool

	// Logger receives generation diagnostics. Nil disables logging.
	Logger *zap.SugaredLogger
}

// File is one generated artifact, ready to be written to disk.
type File struct {
	// Path is relative to the working directory (it already includes
	// Options.OutputDir).
	Path    string
	Content []byte
}

// Generate produces stub, loader and marker files for the given modules.
// All modules share one generation session, so cross-file references resolve
// into import statements rather than duplicate declarations.
//
// Files are processed in the order given; within a run every module must come
// from the same compiler invocation (they share a node table).
func Generate(mods []*schema.Module, opts *Options) ([]File, error) {
	if opts == nil {
		opts = &Options{}
	}
	if len(mods) == 0 {
		return nil, errors.New("stubgen: no modules to generate")
	}

	reg := schema.NewRegistry()
	for _, m := range mods {
		reg.Add(m, m.Path)
	}

	g := gen.New(reg, opts.Logger)
	root := commonRoot(mods)

	var files []File
	markers := map[string]bool{}
	for _, m := range mods {
		if !m.Requested && !opts.IncludeImported {
			continue
		}
		prefix := ""
		if len(mods) == 1 {
			prefix = opts.NamePrefix
		}
		out, err := g.GenerateFile(m, gen.Options{
			OutputDir:   outputDirFor(opts.OutputDir, root, m.Path),
			NamePrefix:  prefix,
			ImportPaths: opts.ImportPaths,
		})
		if err != nil {
			return nil, err
		}
		files = append(files,
			File{Path: out.StubPath, Content: out.StubContent},
			File{Path: out.LoaderPath, Content: out.LoaderContent},
		)
		markers[out.MarkerPath] = true
	}
	if len(files) == 0 {
		return nil, errors.New("stubgen: no requested modules in set")
	}

	// One marker per output directory, regardless of file count.
	markerPaths := make([]string, 0, len(markers))
	for p := range markers {
		markerPaths = append(markerPaths, p)
	}
	sort.Strings(markerPaths)
	for _, p := range markerPaths {
		files = append(files, File{Path: p, Content: []byte{}})
	}
	return files, nil
}

// commonRoot finds the deepest directory containing every module's source
// file. Output placement mirrors the source layout below this root, which
// keeps the relative imports between generated modules valid.
func commonRoot(mods []*schema.Module) string {
	root := filepath.Dir(mods[0].Path)
	for _, m := range mods[1:] {
		dir := filepath.Dir(m.Path)
		for root != dir && !strings.HasPrefix(dir+string(filepath.Separator), root+string(filepath.Separator)) {
			parent := filepath.Dir(root)
			if parent == root {
				return root
			}
			root = parent
		}
	}
	return root
}

func outputDirFor(base, root, sourcePath string) string {
	rel, err := filepath.Rel(root, filepath.Dir(sourcePath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return base
	}
	return filepath.Join(base, rel)
}

// Write persists generated files, creating parent directories as needed.
// Each file lands via a temp-name rename, so an interrupted run never leaves
// a truncated stub behind. Existing files are overwritten; stub output is
// deterministic, so repeated runs over an unchanged schema are idempotent.
func Write(files []File) error {
	for _, f := range files {
		if dir := filepath.Dir(f.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "stubgen: creating %s", dir)
			}
		}
		if err := writeAtomic(f.Path, f.Content); err != nil {
			return errors.Wrapf(err, "stubgen: writing %s", f.Path)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
