package schema

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Module is one parsed schema file: its root file node plus the node table it
// shares with every other file of the same compiler invocation.
type Module struct {
	// Path is the source .capnp path as the compiler reported it.
	Path string
	// Root is the file node.
	Root *Node
	// Requested is true when the file was explicitly requested, false when
	// it was only pulled in as an import of a requested file.
	Requested bool

	nodes map[uint64]*Node
}

// Node resolves an id in the module's node table.
func (m *Module) Node(id uint64) (*Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "id %d", id)
	}
	return n, nil
}

// HasNode reports whether the id resolves in the module's node table.
func (m *Module) HasNode(id uint64) bool {
	_, ok := m.nodes[id]
	return ok
}

// NestedNode finds the child of parent declared with the given name. This is
// the explicit navigation operation the generator uses instead of probing
// runtime attributes; a miss is ErrNoNested, not a failure.
func (m *Module) NestedNode(parent *Node, name string) (*Node, error) {
	for _, nn := range parent.NestedNodes {
		if nn.Name == name {
			return m.Node(uint64(nn.ID))
		}
	}
	return nil, errors.Wrapf(ErrNoNested, "%q under %q", name, parent.DisplayName)
}

// NestedOf resolves every nested node of parent, in declaration order.
// Unresolvable children are skipped; the generator treats them as a
// recoverable degradation.
func (m *Module) NestedOf(parent *Node) []*Node {
	out := make([]*Node, 0, len(parent.NestedNodes))
	for _, nn := range parent.NestedNodes {
		if n, err := m.Node(uint64(nn.ID)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// FindNode searches the whole subtree under parent (depth first, declaration
// order) for a node with the given id, descending through nested nodes and
// group fields. Used as the fallback when a referenced id is not a direct
// child of anything already generated.
func (m *Module) FindNode(parent *Node, id uint64) (*Node, bool) {
	return m.findNode(parent, id, map[uint64]bool{})
}

func (m *Module) findNode(parent *Node, id uint64, seen map[uint64]bool) (*Node, bool) {
	if seen[uint64(parent.ID)] {
		return nil, false
	}
	seen[uint64(parent.ID)] = true
	if uint64(parent.ID) == id {
		return parent, true
	}
	for _, child := range m.NestedOf(parent) {
		if n, ok := m.findNode(child, id, seen); ok {
			return n, true
		}
	}
	if parent.Struct != nil {
		for i := range parent.Struct.Fields {
			f := &parent.Struct.Fields[i]
			if f.Group == nil {
				continue
			}
			g, err := m.Node(uint64(f.Group.TypeID))
			if err != nil {
				continue
			}
			if n, ok := m.findNode(g, id, seen); ok {
				return n, true
			}
		}
	}
	return nil, false
}

// Registry maps every known module's root node id to its file path and
// parsed module. The import resolver uses it to locate sibling files.
type Registry struct {
	entries map[uint64]Entry
	order   []uint64
}

// Entry is one registered module.
type Entry struct {
	Path   string
	Module *Module
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[uint64]Entry{}}
}

// Add registers a module under its root node id. Re-adding the same id
// replaces the entry.
func (r *Registry) Add(m *Module, path string) {
	id := uint64(m.Root.ID)
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = Entry{Path: path, Module: m}
}

// Lookup returns the entry registered under a root node id.
func (r *Registry) Lookup(id uint64) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Modules returns all entries in registration order.
func (r *Registry) Modules() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// codeGeneratorRequest is the JSON shape of the compiler's output.
type codeGeneratorRequest struct {
	Nodes          []*Node         `json:"nodes"`
	RequestedFiles []requestedFile `json:"requestedFiles"`
}

type requestedFile struct {
	ID       Uint64       `json:"id"`
	Filename string       `json:"filename"`
	Imports  []fileImport `json:"imports,omitempty"`
}

type fileImport struct {
	ID   Uint64 `json:"id"`
	Name string `json:"name"`
}

func modulesFromRequest(req *codeGeneratorRequest) ([]*Module, error) {
	nodes := make(map[uint64]*Node, len(req.Nodes))
	for _, n := range req.Nodes {
		nodes[uint64(n.ID)] = n
	}

	// Every file node becomes a module, not only the requested ones:
	// imported-but-not-requested files must still resolve for the import
	// resolver.
	requested := map[uint64]string{}
	for _, rf := range req.RequestedFiles {
		requested[uint64(rf.ID)] = rf.Filename
	}

	var mods []*Module
	for _, n := range req.Nodes {
		if n.Which() != KindFile {
			continue
		}
		path, isRequested := requested[uint64(n.ID)]
		if path == "" {
			path = n.DisplayName
		}
		mods = append(mods, &Module{Path: path, Root: n, nodes: nodes, Requested: isRequested})
	}
	if len(mods) == 0 {
		return nil, errors.New("schema: request contains no file nodes")
	}

	// Requested files first; within each group, ordered by path for
	// determinism.
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].Requested != mods[j].Requested {
			return mods[i].Requested
		}
		return mods[i].Path < mods[j].Path
	})
	return mods, nil
}
