package gen

import "sort"

// typingNeeds tracks which names the emitted file must import, split into
// the collections.abc group and the typing group. Stubs import only what
// they reference.
type typingNeeds struct {
	coll map[string]bool
	typ  map[string]bool
	// capnpBase is set when interfaces exist and the pycapnp base
	// capability classes are referenced.
	capnpBase bool
}

func newTypingNeeds() *typingNeeds {
	return &typingNeeds{coll: map[string]bool{}, typ: map[string]bool{}}
}

func (n *typingNeeds) collections(name string) { n.coll[name] = true }
func (n *typingNeeds) typing(name string)      { n.typ[name] = true }

func (n *typingNeeds) collectionsNames() []string { return sortedKeys(n.coll) }
func (n *typingNeeds) typingNames() []string      { return sortedKeys(n.typ) }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// importSet accumulates cross-file import statements, deduplicated and
// insertion-ordered.
type importSet struct {
	seen  map[string]bool
	lines []string
}

func newImportSet() *importSet {
	return &importSet{seen: map[string]bool{}}
}

func (s *importSet) add(line string) {
	if s.seen[line] {
		return
	}
	s.seen[line] = true
	s.lines = append(s.lines, line)
}

func (s *importSet) all() []string {
	return s.lines
}
