// Package gen implements the schema-to-type-declaration translator: it walks
// a parsed Cap'n Proto schema tree and emits Python type-stub declarations
// for every class the pycapnp runtime manufactures at execution time.
//
// The walk is single-threaded and depth-first. "Resolve this referenced type"
// recursively triggers generation of the referenced record/enum/interface if
// it has not been seen yet, with the entity registry's lookup acting as the
// memoization gate against re-entry; no separate dependency-ordering pass
// exists.
package gen

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/capnpy/stubgen/pkg/schema"
)

// Generator is the translator session. One instance serves a whole
// multi-file run, so entities registered while translating file A resolve as
// imports while translating file B; it is discarded when the run ends.
type Generator struct {
	log      *zap.SugaredLogger
	registry *schema.Registry

	// Run-scoped entity registry (ids are globally unique).
	entities map[uint64]*Entity

	// Per-file state, reset by beginFile.
	module      *schema.Module
	namePrefix  string
	root        *Scope
	scopes      map[uint64]*Scope
	stack       []*Scope
	imports     *importSet
	needs       *typingNeeds
	typeVars    []string
	typeVarSeen map[string]bool
	listMemo    map[string]listAlias
	aliases     []aliasEntry
	capBook     []capEntry
	tupleRegs   []tupleReg
	rootOrder   []*Entity
}

type aliasEntry struct {
	Alias  string
	Target string
}

// capEntry is the per-interface bookkeeping feeding the capability-cast
// overload block.
type capEntry struct {
	Name       string
	ClientPath string
	Depth      int
}

// tupleReg is one NamedTuple registration the loader file must perform.
type tupleReg struct {
	OwnerPath string // e.g. "Calc.Server"
	TupleName string // e.g. "AddResultTuple"
	Fields    []string
}

// New returns a translator session over the given module registry.
func New(reg *schema.Registry, log *zap.SugaredLogger) *Generator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Generator{
		log:      log,
		registry: reg,
		entities: map[uint64]*Entity{},
	}
}

// beginFile resets all per-file accumulation and opens the file's root scope.
func (g *Generator) beginFile(m *schema.Module, namePrefix string) {
	g.module = m
	g.namePrefix = namePrefix
	g.root = &Scope{Name: "", ID: uint64(m.Root.ID), Block: &Block{}, isRoot: true}
	g.scopes = map[uint64]*Scope{uint64(m.Root.ID): g.root}
	g.stack = []*Scope{g.root}
	g.imports = newImportSet()
	g.needs = newTypingNeeds()
	g.typeVars = nil
	g.typeVarSeen = map[string]bool{}
	g.listMemo = map[string]listAlias{}
	g.aliases = nil
	g.capBook = nil
	g.tupleRegs = nil
	g.rootOrder = nil
}

// moduleName returns the file-path qualifier that display names of the
// current file carry, used to decide local-vs-imported.
func (g *Generator) moduleName() string {
	return g.module.Root.DisplayName
}

// pyModuleName derives the Python module name for a schema source path:
// "schemas/addr-book.capnp" -> "addr_book_capnp".
func pyModuleName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var sb strings.Builder
	for _, r := range base {
		if r == '-' || r == '.' || r == ' ' {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String() + "_capnp"
}

// addAlias records one trailing top-level alias (PersonReader = Person.Reader).
func (g *Generator) addAlias(alias, target string) {
	for _, a := range g.aliases {
		if a.Alias == alias {
			return
		}
	}
	g.aliases = append(g.aliases, aliasEntry{Alias: alias, Target: target})
}

// nodeByID resolves an id against the current module's shared node table,
// then against every other registered module. The compiler's node table is
// normally complete, so the fallback only matters for registries assembled
// from independent loads.
func (g *Generator) nodeByID(id uint64) (*schema.Node, *schema.Module, bool) {
	if n, err := g.module.Node(id); err == nil {
		return n, g.module, true
	}
	for _, entry := range g.registry.Modules() {
		if entry.Module == g.module {
			continue
		}
		if n, err := entry.Module.Node(id); err == nil {
			return n, entry.Module, true
		}
	}
	return nil, nil, false
}
