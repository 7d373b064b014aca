package gen

import (
	"fmt"
	"strings"
	"unicode"
)

// pythonKeywords are identifiers the generated stubs must never declare
// verbatim. Sanitization appends an underscore, mirroring what pycapnp does
// for schema names that collide with Python syntax.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// sanitizeIdent makes a schema name safe to declare in Python.
func sanitizeIdent(name string) string {
	if pythonKeywords[name] {
		return name + "_"
	}
	return name
}

// View affixes for the generated views of a record or interface.
const (
	affixReader  = "Reader"
	affixBuilder = "Builder"
	affixClient  = "Client"
	affixServer  = "Server"
)

// splitGenericSuffix splits "Box[T, U]" into ("Box", "[T, U]"). Names
// without a bracketed suffix return the empty suffix.
func splitGenericSuffix(name string) (base, suffix string) {
	if i := strings.Index(name, "["); i >= 0 && strings.HasSuffix(name, "]") {
		return name[:i], name[i:]
	}
	return name, ""
}

// flatViewName derives the flat-concatenation view name used for top-level
// aliases and import lists: ("Person", "Reader") -> "PersonReader". Any
// generic suffix is dropped; aliases bind the class object, not a
// parameterized form.
func flatViewName(name, affix string) string {
	base, _ := splitGenericSuffix(name)
	return strings.ReplaceAll(base, ".", "") + affix
}

// nestedViewName derives the nested-member view name used at type positions:
// ("Person", "Reader") -> "Person.Reader"; ("Box[T]", "Builder") ->
// "Box.Builder[T]".
func nestedViewName(name, affix string) string {
	base, suffix := splitGenericSuffix(name)
	return base + "." + affix + suffix
}

// stripViewSegment removes a trailing view segment added by nestedViewName,
// returning the base name unchanged (generic suffix included). Names without
// a view segment are returned as-is.
func stripViewSegment(name string) string {
	base, suffix := splitGenericSuffix(name)
	for _, affix := range []string{affixReader, affixBuilder, affixClient, affixServer} {
		if strings.HasSuffix(base, "."+affix) {
			return strings.TrimSuffix(base, "."+affix) + suffix
		}
	}
	return name
}

// titleCase upcases the first rune, the synthetic-name convention for groups
// and per-method result types.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// joinParams renders a comma-joined parameter list.
func joinParams(params []string) string {
	return strings.Join(params, ", ")
}

// defLine renders a method signature stub: the params list should not
// include self; pass selfless=true for @staticmethod bodies.
func defLine(name string, params []string, ret string, selfless bool) string {
	all := params
	if !selfless {
		all = append([]string{"self"}, params...)
	}
	return fmt.Sprintf("def %s(%s) -> %s: ...", name, joinParams(all), ret)
}

// classHeader renders "class Name(Base1, Base2):", or "class Name:" with no
// bases.
func classHeader(name string, bases ...string) string {
	if len(bases) == 0 {
		return fmt.Sprintf("class %s:", name)
	}
	return fmt.Sprintf("class %s(%s):", name, joinParams(bases))
}

// propertyLines renders a read/write member as a property pair. getType and
// setType differ whenever setters accept a wider union than getters return.
func propertyLines(name, getType, setType string) []string {
	return []string{
		"@property",
		fmt.Sprintf("def %s(self) -> %s: ...", name, getType),
		fmt.Sprintf("@%s.setter", name),
		fmt.Sprintf("def %s(self, value: %s) -> None: ...", name, setType),
	}
}

// literalUnion renders Literal["a", "b", "c"] for a closed string set.
func literalUnion(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf("Literal[%s]", joinParams(quoted))
}

// unionOf joins type names with "A | B", dropping duplicates while keeping
// first-seen order.
func unionOf(types ...string) string {
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, " | ")
}
