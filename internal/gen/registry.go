package gen

import (
	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// Entity is the registration record for one distinct schema node id: the
// declaration name chosen for it, the node it came from, and the lexical
// scope it lives in. Created the first time an id is encountered; the only
// later mutation is re-registration, where the last registration wins (a
// provisional name laid down during cyclic resolution may be replaced by the
// final one, and an import in a later file replaces a local registration
// from an earlier, already-rendered file).
type Entity struct {
	ID    uint64
	Name  string
	Node  *schema.Node
	Scope *Scope

	// File is the source path of the translation unit this registration
	// belongs to; lookups only see entities of the file under translation.
	File string
	// Imported marks entities brought in from another output module.
	Imported bool
	// GenericParams holds the TypeVar names of a parametric record, attached
	// immediately after creation.
	GenericParams []string
}

// Path returns the entity's fully qualified dotted path from the file root.
func (e *Entity) Path() string {
	if e.Scope == nil || e.Scope.isRoot {
		return e.Name
	}
	return e.Scope.DottedPath() + "." + e.Name
}

// ScopePath returns the ordered non-root scope names qualifying the entity.
func (e *Entity) ScopePath() []string {
	if e.Scope == nil {
		return nil
	}
	return e.Scope.pathNames()
}

// descriptor returns a TypeDescriptor naming the entity, optionally with
// bound generic arguments ("Box[int]").
func (e *Entity) descriptor(genericArgs []string) TypeDescriptor {
	name := e.Name
	if len(genericArgs) > 0 {
		name += "[" + joinParams(genericArgs) + "]"
	}
	return TypeDescriptor{Name: name, ScopePath: e.ScopePath()}
}

// Scope is one node of the lexical scope tree, mirroring the nesting of the
// declarations being generated. Its Block accumulates the textual statements
// emitted while the scope is active.
type Scope struct {
	Name   string
	ID     uint64
	Parent *Scope
	Block  *Block
	isRoot bool
}

// DottedPath returns the scope's full dotted path from the root ("" for the
// root itself).
func (s *Scope) DottedPath() string {
	names := s.pathNames()
	if len(names) == 0 {
		return ""
	}
	return joinDotted(names)
}

func (s *Scope) pathNames() []string {
	if s == nil || s.isRoot {
		return nil
	}
	return append(s.Parent.pathNames(), s.Name)
}

func joinDotted(names []string) string {
	out := names[0]
	for _, n := range names[1:] {
		out += "." + n
	}
	return out
}

// register creates (or overwrites) the registration for a node id.
func (g *Generator) register(id uint64, node *schema.Node, name string, scope *Scope) *Entity {
	e := &Entity{ID: id, Name: name, Node: node, Scope: scope, File: g.module.Path}
	g.entities[id] = e
	return e
}

// isKnown reports whether an id is registered for the file under translation.
func (g *Generator) isKnown(id uint64) bool {
	e, ok := g.entities[id]
	return ok && e.File == g.module.Path
}

// lookup returns the entity registered for an id in the current file.
// Callers seeing ErrNotFound must attempt cross-module generation or import
// before giving up.
func (g *Generator) lookup(id uint64) (*Entity, error) {
	e, ok := g.entities[id]
	if !ok || e.File != g.module.Path {
		return nil, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	return e, nil
}

// pushScopeFor opens a scope for a node id, nesting it under the scope
// previously opened for parentID. Fails with ErrNoParentScope when the
// enclosing declaration was skipped; callers fall back to the root scope.
func (g *Generator) pushScopeFor(name string, id, parentID uint64, header string) (*Scope, error) {
	parent, ok := g.scopes[parentID]
	if !ok {
		return nil, errors.Wrapf(ErrNoParentScope, "parent id %d for %q", parentID, name)
	}
	s := g.pushChild(parent, name, header)
	s.ID = id
	g.scopes[id] = s
	return s, nil
}

// pushChild opens a purely structural scope (Reader/Builder/Client/Server
// views and other synthetic declarations) under an explicit parent.
func (g *Generator) pushChild(parent *Scope, name, header string) *Scope {
	s := &Scope{
		Name:   name,
		Parent: parent,
		Block:  parent.Block.AddChild(header),
	}
	g.stack = append(g.stack, s)
	return s
}

// top returns the innermost open scope.
func (g *Generator) top() *Scope {
	return g.stack[len(g.stack)-1]
}

// popScope closes the innermost open scope. Closing the root, or closing out
// of order, is a programming-contract violation, not a recoverable runtime
// condition.
func (g *Generator) popScope(s *Scope) {
	if len(g.stack) <= 1 {
		panic("stubgen: popScope on root scope")
	}
	topScope := g.top()
	if topScope != s {
		panic("stubgen: popScope out of LIFO order: closing " + s.Name + " while " + topScope.Name + " is open")
	}
	if topScope.Parent == nil {
		panic("stubgen: popScope on scope without parent")
	}
	g.stack = g.stack[:len(g.stack)-1]
}
