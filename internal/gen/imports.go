package gen

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// importIfForeign checks whether a node originates in a different schema
// file than the one under translation. Foreign nodes are registered as
// imports instead of being generated locally, reported through
// ErrAlreadyImported alongside the entity; the caller must not emit a body.
// A nil error means the node is local.
func (g *Generator) importIfForeign(node *schema.Node) (*Entity, error) {
	mod := node.ModuleName()
	if mod == "" || mod == g.moduleName() {
		return nil, nil
	}
	e, err := g.registerImport(node)
	if err != nil {
		return nil, err
	}
	return e, errors.Wrap(ErrAlreadyImported, node.DisplayName)
}

// registerImport computes the relative import bringing a foreign entity's
// generated names into the current output module, and registers the entity
// locally so downstream resolution treats it exactly like a locally
// generated one.
func (g *Generator) registerImport(node *schema.Node) (*Entity, error) {
	if e, err := g.lookup(uint64(node.ID)); err == nil {
		return e, nil
	}

	owner, err := g.findOwningModule(node)
	if err != nil {
		return nil, err
	}

	local := node.LocalName()
	root := local
	if i := strings.Index(local, "."); i >= 0 {
		// Nested definition: import only the outermost name and navigate
		// attributes from there.
		root = local[:i]
	}

	names := map[string]bool{sanitizeIdent(root): true}
	if root == local {
		switch node.Which() {
		case schema.KindStruct:
			names[flatViewName(root, affixReader)] = true
			names[flatViewName(root, affixBuilder)] = true
		case schema.KindInterface:
			names[flatViewName(root, affixClient)] = true
		}
	}

	stmt := "from " + relativeModule(g.module.Path, owner.Path) + " import " + joinParams(sortedKeys(names))
	g.imports.add(stmt)

	e := g.register(uint64(node.ID), node, sanitizeIdent(local), g.root)
	e.Imported = true
	g.log.Debugw("registered import", "entity", node.DisplayName, "from", owner.Path)
	return e, nil
}

// findOwningModule locates the file a foreign node was declared in: first by
// matching the node's module qualifier against every registered module's
// file node, then by a structural search of each module's tree for the id.
// Every cross-file reference must resolve to some file the caller supplied;
// failing both searches is fatal.
func (g *Generator) findOwningModule(node *schema.Node) (schema.Entry, error) {
	mod := node.ModuleName()
	for _, entry := range g.registry.Modules() {
		if entry.Module.Root.DisplayName == mod || entry.Path == mod {
			return entry, nil
		}
	}
	for _, entry := range g.registry.Modules() {
		if _, ok := entry.Module.FindNode(entry.Module.Root, uint64(node.ID)); ok {
			return entry, nil
		}
	}
	return schema.Entry{}, errors.Newf("stubgen: no registered module owns %q", node.DisplayName)
}

// relativeModule computes the Python relative-import spelling of the output
// module generated for toPath, as seen from the output module generated for
// fromPath. Output directories mirror the source layout, so the relation
// between source paths carries over: one leading dot per level up plus the
// package path down to the sibling.
func relativeModule(fromPath, toPath string) string {
	rel, err := filepath.Rel(filepath.Dir(fromPath), filepath.Dir(toPath))
	if err != nil {
		rel = "."
	}
	ups := 0
	var downs []string
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case ".", "":
		case "..":
			ups++
		default:
			downs = append(downs, part)
		}
	}
	dots := strings.Repeat(".", 1+ups)
	return dots + strings.Join(append(downs, pyModuleName(toPath)), ".")
}
