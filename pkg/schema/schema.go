// Package schema models the parsed Cap'n Proto schema tree consumed by the
// stub generator.
//
// The model mirrors the JSON rendering of the compiler's CodeGeneratorRequest
// (capnp compile -o- ... | capnp convert binary:json schema.capnp
// CodeGeneratorRequest). The generator never parses .capnp syntax itself; it
// navigates the node graph the compiler already resolved.
//
// Node identity is the compiler-assigned 64-bit id. Two Node handles with the
// same id denote the same logical entity, even across separately loaded files.
package schema

import (
	"strings"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// NodeKind tags the variant of a schema node.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindStruct
	KindEnum
	KindInterface
	KindConst
	KindAnnotation
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindInterface:
		return "interface"
	case KindConst:
		return "const"
	case KindAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Node is one entry of the compiler's node table. Exactly one of the variant
// members (File, Struct, Enum, Interface, Const, Annotation) is populated;
// Which reports the active variant.
type Node struct {
	ID                      Uint64       `json:"id"`
	DisplayName             string       `json:"displayName"`
	DisplayNamePrefixLength uint32       `json:"displayNamePrefixLength"`
	ScopeID                 Uint64       `json:"scopeId"`
	Parameters              []Parameter  `json:"parameters,omitempty"`
	IsGeneric               bool         `json:"isGeneric,omitempty"`
	NestedNodes             []NestedNode `json:"nestedNodes,omitempty"`

	File       json.RawMessage `json:"file,omitempty"`
	Struct     *StructNode     `json:"struct,omitempty"`
	Enum       *EnumNode       `json:"enum,omitempty"`
	Interface  *InterfaceNode  `json:"interface,omitempty"`
	Const      json.RawMessage `json:"const,omitempty"`
	Annotation json.RawMessage `json:"annotation,omitempty"`
}

// Which reports the node's variant. A node with no variant member at all is
// treated as a file node; hand-written test dumps lean on that.
func (n *Node) Which() NodeKind {
	switch {
	case n.Struct != nil:
		return KindStruct
	case n.Enum != nil:
		return KindEnum
	case n.Interface != nil:
		return KindInterface
	case len(n.Const) > 0:
		return KindConst
	case len(n.Annotation) > 0:
		return KindAnnotation
	default:
		return KindFile
	}
}

// LocalName returns the display name with its module qualification stripped,
// e.g. "addressbook.capnp:Person.Employment" -> "Person.Employment".
func (n *Node) LocalName() string {
	if int(n.DisplayNamePrefixLength) <= len(n.DisplayName) {
		return n.DisplayName[n.DisplayNamePrefixLength:]
	}
	return n.DisplayName
}

// ShortName returns the last dotted segment of the local name, the name the
// node was declared with.
func (n *Node) ShortName() string {
	local := n.LocalName()
	if i := strings.LastIndex(local, "."); i >= 0 {
		return local[i+1:]
	}
	return local
}

// ModuleName returns the module-qualification part of the display name, e.g.
// "addressbook.capnp:Person" -> "addressbook.capnp". Empty when the display
// name carries no qualifier.
func (n *Node) ModuleName() string {
	if i := strings.Index(n.DisplayName, ":"); i >= 0 {
		return n.DisplayName[:i]
	}
	return ""
}

// Parameter is one generic type parameter declared on a node.
type Parameter struct {
	Name string `json:"name"`
}

// NestedNode names one node declared directly inside another.
type NestedNode struct {
	Name string `json:"name"`
	ID   Uint64 `json:"id"`
}

// StructNode is the struct variant payload.
type StructNode struct {
	DataWordCount      uint16  `json:"dataWordCount,omitempty"`
	PointerCount       uint16  `json:"pointerCount,omitempty"`
	IsGroup            bool    `json:"isGroup,omitempty"`
	DiscriminantCount  uint16  `json:"discriminantCount,omitempty"`
	DiscriminantOffset uint32  `json:"discriminantOffset,omitempty"`
	Fields             []Field `json:"fields,omitempty"`
}

// NoDiscriminant marks a field that is not a union member.
const NoDiscriminant = 0xffff

// Field is one struct field: either a slot (plain typed field) or a group
// (anonymous nested struct, e.g. an inline union arm).
type Field struct {
	Name      string  `json:"name"`
	CodeOrder uint16  `json:"codeOrder,omitempty"`
	Slot      *Slot   `json:"slot,omitempty"`
	Group     *Group  `json:"group,omitempty"`
	Disc      *uint16 `json:"discriminantValue,omitempty"`
}

// Discriminant returns the field's union discriminant, or NoDiscriminant when
// the field is not part of a union. The compiler encodes "no discriminant" as
// 0xffff; dumps that omit the member mean the same thing.
func (f *Field) Discriminant() uint16 {
	if f.Disc == nil {
		return NoDiscriminant
	}
	return *f.Disc
}

// InUnion reports whether the field is a member of its struct's union.
func (f *Field) InUnion() bool {
	return f.Discriminant() != NoDiscriminant
}

// Slot is the plain-field variant of a Field.
type Slot struct {
	Offset             uint32          `json:"offset,omitempty"`
	Type               *Type           `json:"type"`
	DefaultValue       json.RawMessage `json:"defaultValue,omitempty"`
	HadExplicitDefault bool            `json:"hadExplicitDefault,omitempty"`
}

// Group is the group variant of a Field; TypeID names the group's own struct
// node.
type Group struct {
	TypeID Uint64 `json:"typeId"`
}

// EnumNode is the enum variant payload.
type EnumNode struct {
	Enumerants []Enumerant `json:"enumerants,omitempty"`
}

// Enumerant is one enum member; enumerants are integers at runtime, the name
// is what stubs expose.
type Enumerant struct {
	Name      string `json:"name"`
	CodeOrder uint16 `json:"codeOrder,omitempty"`
}

// InterfaceNode is the interface variant payload.
type InterfaceNode struct {
	Methods      []Method     `json:"methods,omitempty"`
	Superclasses []Superclass `json:"superclasses,omitempty"`
}

// Method is one RPC method; parameter and result shapes are struct nodes
// referenced by id.
type Method struct {
	Name               string      `json:"name"`
	CodeOrder          uint16      `json:"codeOrder,omitempty"`
	ParamStructType    Uint64      `json:"paramStructType"`
	ResultStructType   Uint64      `json:"resultStructType"`
	ParamBrand         *Brand      `json:"paramBrand,omitempty"`
	ResultBrand        *Brand      `json:"resultBrand,omitempty"`
	ImplicitParameters []Parameter `json:"implicitParameters,omitempty"`
}

// Superclass references one inherited interface.
type Superclass struct {
	ID    Uint64 `json:"id"`
	Brand *Brand `json:"brand,omitempty"`
}

// Brand carries generic-argument bindings for a reference to a parameterized
// node.
type Brand struct {
	Scopes []BrandScope `json:"scopes,omitempty"`
}

// BrandScope binds (or inherits) the generic parameters of one ancestor
// scope. Exactly one of Bind/Inherit is set.
type BrandScope struct {
	ScopeID Uint64          `json:"scopeId"`
	Bind    []Binding       `json:"bind,omitempty"`
	Inherit json.RawMessage `json:"inherit,omitempty"`
}

// Inherits reports whether the scope inherits the enclosing scope's bindings.
func (s *BrandScope) Inherits() bool {
	return len(s.Inherit) > 0
}

// Binding is one bound generic argument.
type Binding struct {
	Unbound json.RawMessage `json:"unbound,omitempty"`
	Type    *Type           `json:"type,omitempty"`
}

// ErrUnknownNode is returned when a node id cannot be resolved in a module's
// node table.
var ErrUnknownNode = errors.New("schema: unknown node id")

// ErrNoNested is returned by NestedNode lookups that find no child with the
// requested name. Callers use it to fall through to wider searches.
var ErrNoNested = errors.New("schema: no nested node with that name")
