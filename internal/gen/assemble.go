package gen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// Output is the pair of artifacts produced for one schema file, plus the
// marker telling downstream packaging that the directory's declarations are
// authoritative.
type Output struct {
	StubPath      string
	StubContent   []byte
	LoaderPath    string
	LoaderContent []byte
	MarkerPath    string
}

// Options tunes one file's generation.
type Options struct {
	// OutputDir receives the generated files; empty means alongside the
	// conceptual source (paths stay relative).
	OutputDir string
	// NamePrefix overrides the output base name derived from the source
	// path; the trailing "_capnp" is always appended.
	NamePrefix string
	// ImportPaths are extra search directories the loader passes to
	// capnp.load.
	ImportPaths []string
}

// GenerateFile translates one schema file into its declarations file, loader
// file and marker. A fatal error leaves no partial output; recoverable
// degradations are logged and generation completes with reduced precision.
func (g *Generator) GenerateFile(m *schema.Module, opts Options) (*Output, error) {
	g.beginFile(m, opts.NamePrefix)

	for _, child := range m.NestedOf(m.Root) {
		if err := g.genNode(child); err != nil {
			return nil, errors.Wrapf(err, "translating %s", m.Path)
		}
	}
	if len(g.stack) != 1 {
		panic("stubgen: unbalanced scope stack after file translation")
	}

	base := g.outputBase()
	out := &Output{
		StubPath:      filepath.Join(opts.OutputDir, base+".pyi"),
		LoaderPath:    filepath.Join(opts.OutputDir, base+".py"),
		MarkerPath:    filepath.Join(opts.OutputDir, "py.typed"),
		StubContent:   []byte(g.renderStub()),
		LoaderContent: []byte(g.renderLoader(opts.ImportPaths)),
	}
	return out, nil
}

func (g *Generator) outputBase() string {
	if g.namePrefix != "" {
		return g.namePrefix + "_capnp"
	}
	return pyModuleName(g.module.Path)
}

// renderStub assembles the declarations file: header, imports, type
// variables, the declaration tree, the capability-cast overloads and the
// trailing top-level alias block.
func (g *Generator) renderStub() string {
	// The cast overload block contributes a typing import, so it renders
	// before the import lines are written.
	caster := g.renderCapabilityCaster()

	var sb strings.Builder

	fmt.Fprintf(&sb, "# This is an automatically generated stub for `%s`.\n", filepath.Base(g.module.Path))
	sb.WriteString("from __future__ import annotations\n\n")

	wroteImports := false
	if names := g.needs.collectionsNames(); len(names) > 0 {
		fmt.Fprintf(&sb, "from collections.abc import %s\n", joinParams(names))
		wroteImports = true
	}
	if names := g.needs.typingNames(); len(names) > 0 {
		fmt.Fprintf(&sb, "from typing import %s\n", joinParams(names))
		wroteImports = true
	}
	if g.needs.capnpBase {
		sb.WriteString("from capnp.lib.capnp import _DynamicCapabilityClient, _DynamicCapabilityServer\n")
		wroteImports = true
	}
	for _, line := range g.imports.all() {
		sb.WriteString(line)
		sb.WriteString("\n")
		wroteImports = true
	}
	if wroteImports {
		sb.WriteString("\n")
	}

	for _, tv := range g.typeVars {
		fmt.Fprintf(&sb, "%s = TypeVar(%q)\n", tv, tv)
	}
	if len(g.typeVars) > 0 {
		sb.WriteString("\n")
	}

	g.root.Block.RenderRoot(&sb)

	if caster != "" {
		sb.WriteString("\n")
		sb.WriteString(caster)
	}

	if len(g.aliases) > 0 {
		sb.WriteString("\n")
		for _, a := range g.aliases {
			fmt.Fprintf(&sb, "%s = %s\n", a.Alias, a.Target)
		}
	}
	return sb.String()
}

// renderCapabilityCaster emits the overload set narrowing an opaque
// capability to a specific client type, ordered most-derived-first so the
// type checker picks the tightest match.
func (g *Generator) renderCapabilityCaster() string {
	book := g.sortedCapBook()
	if len(book) == 0 {
		return ""
	}
	block := &Block{Header: "class _CapabilityCaster:"}
	if len(book) == 1 {
		block.AddLine(fmt.Sprintf("def cast_as(self, schema: type[%s]) -> %s: ...", book[0].Name, book[0].ClientPath))
	} else {
		g.needs.typing("overload")
		for _, entry := range book {
			block.AddLine("@overload")
			block.AddLine(fmt.Sprintf("def cast_as(self, schema: type[%s]) -> %s: ...", entry.Name, entry.ClientPath))
		}
	}
	var sb strings.Builder
	block.Render(&sb, 0)
	return sb.String()
}

// renderLoader assembles the thin runtime module binding pycapnp's
// dynamically produced names to the declared stub names, plus NamedTuple
// registrations for structured positional server returns.
func (g *Generator) renderLoader(importPaths []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# This is an automatically generated loader for `%s`.\n", filepath.Base(g.module.Path))

	if len(g.tupleRegs) > 0 {
		sb.WriteString("import collections\n")
	}
	sb.WriteString("import os\n\nimport capnp\n\n")
	sb.WriteString("capnp.remove_import_hook()\n")
	sb.WriteString("here = os.path.dirname(os.path.abspath(__file__))\n")
	fmt.Fprintf(&sb, "module_file = os.path.join(here, %q)\n", filepath.Base(g.module.Path))

	modVar := g.outputBase()
	quoted := make([]string, 0, len(importPaths))
	for _, p := range importPaths {
		quoted = append(quoted, fmt.Sprintf("%q", p))
	}
	fmt.Fprintf(&sb, "%s = capnp.load(module_file, imports=[%s])\n", modVar, joinParams(quoted))

	for _, e := range g.rootOrder {
		fmt.Fprintf(&sb, "%s = %s.%s\n", e.Name, modVar, e.Name)
	}

	if len(g.tupleRegs) > 0 {
		sb.WriteString("\n")
		for _, reg := range g.tupleRegs {
			fields := make([]string, 0, len(reg.Fields))
			for _, f := range reg.Fields {
				fields = append(fields, fmt.Sprintf("%q", f))
			}
			fmt.Fprintf(&sb, "%s.%s = collections.namedtuple(%q, [%s])\n",
				reg.OwnerPath, reg.TupleName, reg.TupleName, joinParams(fields))
		}
	}
	return sb.String()
}

// Module returns the module currently (or last) under translation. Exposed
// for the public API layer's bookkeeping.
func (g *Generator) Module() *schema.Module {
	return g.module
}
