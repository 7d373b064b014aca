package schema

import (
	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// TypeKind tags the variant of a type descriptor.
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeText
	TypeData
	TypeList
	TypeEnum
	TypeStruct
	TypeInterface
	TypeAnyPointer
	typeUnknown
)

var typeKindNames = map[string]TypeKind{
	"void":       TypeVoid,
	"bool":       TypeBool,
	"int8":       TypeInt8,
	"int16":      TypeInt16,
	"int32":      TypeInt32,
	"int64":      TypeInt64,
	"uint8":      TypeUint8,
	"uint16":     TypeUint16,
	"uint32":     TypeUint32,
	"uint64":     TypeUint64,
	"float32":    TypeFloat32,
	"float64":    TypeFloat64,
	"text":       TypeText,
	"data":       TypeData,
	"list":       TypeList,
	"enum":       TypeEnum,
	"struct":     TypeStruct,
	"interface":  TypeInterface,
	"anyPointer": TypeAnyPointer,
}

func (k TypeKind) String() string {
	for name, kind := range typeKindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Type is a declared type descriptor as it appears on slots, list elements
// and brand bindings. The JSON form spells the active union member as the
// sole object key; UnmarshalJSON folds that into Kind plus the matching
// payload pointer.
type Type struct {
	Kind TypeKind

	// List is set when Kind == TypeList.
	List *ListType
	// Struct, Enum, Interface reference a node by id, with optional brand.
	Struct    *TypeRef
	Enum      *TypeRef
	Interface *TypeRef
	// AnyPointer is set when Kind == TypeAnyPointer.
	AnyPointer *AnyPointerType
}

// ListType is the payload of a list type descriptor.
type ListType struct {
	ElementType *Type `json:"elementType"`
}

// TypeRef references a struct/enum/interface node, optionally branded with
// generic arguments.
type TypeRef struct {
	TypeID Uint64 `json:"typeId"`
	Brand  *Brand `json:"brand,omitempty"`
}

// AnyPointerKind tags the anyPointer sub-variants.
type AnyPointerKind int

const (
	AnyPointerUnconstrained AnyPointerKind = iota
	AnyPointerParameter
	AnyPointerImplicitMethodParameter
)

// AnyPointerType is the payload of an anyPointer type descriptor. Parameter
// is set only for the parameter variant.
type AnyPointerType struct {
	Kind      AnyPointerKind
	Parameter *ParameterRef
}

// ParameterRef points at one generic parameter of an enclosing scope.
type ParameterRef struct {
	ScopeID        Uint64 `json:"scopeId"`
	ParameterIndex uint16 `json:"parameterIndex,omitempty"`
}

// UnmarshalJSON decodes the union-as-object-key JSON form.
func (t *Type) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return errors.Wrap(err, "schema: decoding type descriptor")
	}

	t.Kind = typeUnknown
	for name, payload := range members {
		kind, ok := typeKindNames[name]
		if !ok {
			continue
		}
		t.Kind = kind
		switch kind {
		case TypeList:
			t.List = &ListType{}
			if err := json.Unmarshal(payload, t.List); err != nil {
				return errors.Wrap(err, "schema: decoding list type")
			}
		case TypeStruct:
			t.Struct = &TypeRef{}
			if err := json.Unmarshal(payload, t.Struct); err != nil {
				return errors.Wrap(err, "schema: decoding struct type")
			}
		case TypeEnum:
			t.Enum = &TypeRef{}
			if err := json.Unmarshal(payload, t.Enum); err != nil {
				return errors.Wrap(err, "schema: decoding enum type")
			}
		case TypeInterface:
			t.Interface = &TypeRef{}
			if err := json.Unmarshal(payload, t.Interface); err != nil {
				return errors.Wrap(err, "schema: decoding interface type")
			}
		case TypeAnyPointer:
			t.AnyPointer = &AnyPointerType{}
			if err := t.AnyPointer.unmarshal(payload); err != nil {
				return err
			}
		}
		return nil
	}
	if t.Kind == typeUnknown {
		return errors.Newf("schema: type descriptor with no recognized variant: %s", string(data))
	}
	return nil
}

// MarshalJSON re-emits the union-as-object-key form, so dumps round-trip.
func (t Type) MarshalJSON() ([]byte, error) {
	name := t.Kind.String()
	var payload any
	switch t.Kind {
	case TypeList:
		payload = t.List
	case TypeStruct:
		payload = t.Struct
	case TypeEnum:
		payload = t.Enum
	case TypeInterface:
		payload = t.Interface
	case TypeAnyPointer:
		payload = t.AnyPointer.marshalPayload()
	default:
		payload = nil
	}
	return json.Marshal(map[string]any{name: payload})
}

func (a *AnyPointerType) unmarshal(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return errors.Wrap(err, "schema: decoding anyPointer type")
	}
	if payload, ok := members["parameter"]; ok {
		a.Kind = AnyPointerParameter
		a.Parameter = &ParameterRef{}
		if err := json.Unmarshal(payload, a.Parameter); err != nil {
			return errors.Wrap(err, "schema: decoding anyPointer parameter")
		}
		return nil
	}
	if _, ok := members["implicitMethodParameter"]; ok {
		a.Kind = AnyPointerImplicitMethodParameter
		return nil
	}
	a.Kind = AnyPointerUnconstrained
	return nil
}

func (a *AnyPointerType) marshalPayload() map[string]any {
	switch a.Kind {
	case AnyPointerParameter:
		return map[string]any{"parameter": a.Parameter}
	case AnyPointerImplicitMethodParameter:
		return map[string]any{"implicitMethodParameter": map[string]any{}}
	default:
		return map[string]any{"unconstrained": map[string]any{}}
	}
}
