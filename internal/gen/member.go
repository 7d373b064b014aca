package gen

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
)

// TypeDescriptor is a fully resolved textual type, optionally qualified by
// the view it represents. Descriptors reference entities by rendered name
// only; mutually recursive records therefore never form an ownership cycle.
type TypeDescriptor struct {
	// Name is the rendered base name, e.g. "Person", "int" or "Box[T]".
	Name string
	// ScopePath qualifies Name with the dotted path of its owning scope,
	// root-first. Empty for built-ins.
	ScopePath []string
	// Affix selects a view ("Reader", "Builder", "Client") or is empty for
	// the base name.
	Affix string
}

// Render returns the full dotted spelling of the descriptor.
func (d TypeDescriptor) Render() string {
	name := d.Name
	if d.Affix != "" {
		name = nestedViewName(name, d.Affix)
	}
	if len(d.ScopePath) == 0 {
		return name
	}
	return strings.Join(d.ScopePath, ".") + "." + name
}

// WithAffix returns a copy of the descriptor qualified by a view affix.
func (d TypeDescriptor) WithAffix(affix string) TypeDescriptor {
	d.Affix = affix
	return d
}

// builtin returns a descriptor for a built-in or already fully spelled name.
func builtin(name string) TypeDescriptor {
	return TypeDescriptor{Name: name}
}

// Candidate is one alternative type a member may accept, at most one of
// which is primary.
type Candidate struct {
	Desc    TypeDescriptor
	Primary bool
}

// TypedMember represents one field or parameter as it will be rendered:
// a name, a set of candidate types with exactly one primary, an optional
// default-value text and a sequence-wrapping depth.
type TypedMember struct {
	Name        string
	DefaultText string
	SeqDepth    int

	candidates []Candidate
}

// NewTypedMember builds a member from explicit candidates. Exactly one
// candidate must be marked primary; anything else is a contract violation
// and is rejected immediately.
func NewTypedMember(name string, candidates []Candidate) (*TypedMember, error) {
	primaries := 0
	for _, c := range candidates {
		if c.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		return nil, errors.Newf("stubgen: member %q has %d primary candidate types, want exactly 1", name, primaries)
	}
	return &TypedMember{Name: name, candidates: candidates}, nil
}

// member is the common construction path: one primary plus alternates.
func member(name string, primary TypeDescriptor, alts ...TypeDescriptor) *TypedMember {
	cands := make([]Candidate, 0, len(alts)+1)
	cands = append(cands, Candidate{Desc: primary, Primary: true})
	for _, a := range alts {
		cands = append(cands, Candidate{Desc: a})
	}
	m, err := NewTypedMember(name, cands)
	if err != nil {
		// Unreachable: exactly one primary by construction.
		panic(err)
	}
	return m
}

// AddHint appends a non-primary candidate. Duplicates and second primaries
// are contract violations.
func (m *TypedMember) AddHint(c Candidate) error {
	if c.Primary {
		return errors.Newf("stubgen: member %q already has a primary candidate", m.Name)
	}
	for _, existing := range m.candidates {
		if reflect.DeepEqual(existing.Desc, c.Desc) {
			return errors.Newf("stubgen: member %q already has candidate %s", m.Name, c.Desc.Render())
		}
	}
	m.candidates = append(m.candidates, c)
	return nil
}

// Primary returns the member's primary type descriptor.
func (m *TypedMember) Primary() TypeDescriptor {
	for _, c := range m.candidates {
		if c.Primary {
			return c.Desc
		}
	}
	// Unreachable: construction guarantees one primary.
	panic("stubgen: member without primary candidate")
}

// Candidates returns all candidate descriptors, primary first.
func (m *TypedMember) Candidates() []TypeDescriptor {
	out := make([]TypeDescriptor, 0, len(m.candidates))
	out = append(out, m.Primary())
	for _, c := range m.candidates {
		if !c.Primary {
			out = append(out, c.Desc)
		}
	}
	return out
}

// UnionText renders the member's accepted types as a union, applying the
// sequence-wrapping depth to each alternative.
func (m *TypedMember) UnionText() string {
	names := make([]string, 0, len(m.candidates))
	for _, d := range m.Candidates() {
		names = append(names, m.wrap(d.Render()))
	}
	return unionOf(names...)
}

// PrimaryText renders only the primary type, sequence-wrapped.
func (m *TypedMember) PrimaryText() string {
	return m.wrap(m.Primary().Render())
}

func (m *TypedMember) wrap(name string) string {
	for i := 0; i < m.SeqDepth; i++ {
		name = "Sequence[" + name + "]"
	}
	return name
}
