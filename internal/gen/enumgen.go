package gen

import (
	"fmt"

	"github.com/capnpy/stubgen/pkg/schema"
)

// genEnum emits the declaration for an enum node: one integer-typed member
// per enumerant (enumerants are integers at runtime, not strings). Fields of
// this enum type additionally accept the string-literal spellings of the
// enumerant names; that widening happens at the field site via
// enumLiterals.
func (g *Generator) genEnum(node *schema.Node) (*Entity, error) {
	if e, err := g.importIfForeign(node); err != nil {
		if IsAlreadyImportedErr(err) {
			return e, nil
		}
		return nil, err
	}
	if e, err := g.lookup(uint64(node.ID)); err == nil {
		return e, nil
	}

	name := sanitizeIdent(node.ShortName())
	scope, err := g.pushScopeFor(name, uint64(node.ID), uint64(node.ScopeID), classHeader(name))
	if err != nil {
		if !IsNoParentScopeErr(err) {
			return nil, err
		}
		// Enclosing declaration was skipped; declare at the file root.
		g.log.Debugw("enum scope fell back to root", "enum", node.DisplayName)
		scope = g.pushChild(g.root, name, classHeader(name))
		g.scopes[uint64(node.ID)] = scope
	}
	e := g.register(uint64(node.ID), node, name, scope.Parent)

	for _, en := range node.Enum.Enumerants {
		scope.Block.AddLine(fmt.Sprintf("%s: int", sanitizeIdent(en.Name)))
	}
	g.popScope(scope)

	if !scope.Parent.isRoot {
		g.addAlias(flatViewName(e.Path(), ""), e.Path())
	} else {
		g.rootOrder = append(g.rootOrder, e)
	}
	return e, nil
}

// enumLiterals returns the closed set of enumerant names for an enum entity,
// used to widen fields of the enum's type to accept literal spellings.
func enumLiterals(e *Entity) []string {
	if e.Node == nil || e.Node.Enum == nil {
		return nil
	}
	out := make([]string, 0, len(e.Node.Enum.Enumerants))
	for _, en := range e.Node.Enum.Enumerants {
		out = append(out, en.Name)
	}
	return out
}
