package gen

import (
	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// primitiveNames maps primitive schema kinds to Python built-in type names.
// All integer widths collapse to int, both float widths to float; width
// checking happens at the capnp layer, not in the stubs.
var primitiveNames = map[schema.TypeKind]string{
	schema.TypeVoid:    "None",
	schema.TypeBool:    "bool",
	schema.TypeInt8:    "int",
	schema.TypeInt16:   "int",
	schema.TypeInt32:   "int",
	schema.TypeInt64:   "int",
	schema.TypeUint8:   "int",
	schema.TypeUint16:  "int",
	schema.TypeUint32:  "int",
	schema.TypeUint64:  "int",
	schema.TypeFloat32: "float",
	schema.TypeFloat64: "float",
	schema.TypeText:    "str",
	schema.TypeData:    "bytes",
}

// resolveType returns the textual type to use for a declared type
// descriptor. Resolving a struct, enum or interface reference generates the
// referenced entity on demand if it has not been seen; that recursion is how
// forward references across the schema tree resolve without a dependency
// pre-pass.
func (g *Generator) resolveType(t *schema.Type) (TypeDescriptor, error) {
	if t == nil {
		return TypeDescriptor{}, errors.Wrap(ErrUnknownFieldKind, "nil type descriptor")
	}
	if name, ok := primitiveNames[t.Kind]; ok {
		return builtin(name), nil
	}

	switch t.Kind {
	case schema.TypeList:
		elem, err := g.resolveType(t.List.ElementType)
		if err != nil {
			return TypeDescriptor{}, err
		}
		g.needs.collections("Sequence")
		return builtin("Sequence[" + elem.Render() + "]"), nil

	case schema.TypeStruct:
		return g.resolveStructRef(t.Struct)

	case schema.TypeEnum:
		e, err := g.ensureEntity(uint64(t.Enum.TypeID))
		if err != nil {
			return TypeDescriptor{}, err
		}
		return e.descriptor(nil), nil

	case schema.TypeInterface:
		// The interface's declaration name; Client/Server narrowing happens
		// at the use site.
		e, err := g.ensureEntity(uint64(t.Interface.TypeID))
		if err != nil {
			return TypeDescriptor{}, err
		}
		return e.descriptor(nil), nil

	case schema.TypeAnyPointer:
		return g.resolveAnyPointer(t.AnyPointer), nil

	default:
		return TypeDescriptor{}, errors.Wrapf(ErrUnknownFieldKind, "type kind %d", int(t.Kind))
	}
}

// resolveStructRef resolves a struct reference, applying any generic-binding
// substitution described by its brand.
func (g *Generator) resolveStructRef(ref *schema.TypeRef) (TypeDescriptor, error) {
	e, err := g.ensureEntity(uint64(ref.TypeID))
	if err != nil {
		return TypeDescriptor{}, err
	}
	args, err := g.brandArgs(e, ref.Brand)
	if err != nil {
		return TypeDescriptor{}, err
	}
	return e.descriptor(args), nil
}

// brandArgs computes the generic-argument names bound by a brand for the
// referenced entity: inherit keeps the enclosing parameter names, bind
// resolves each bound type. A missing brand (or a non-generic target) binds
// nothing and yields the bare name.
func (g *Generator) brandArgs(e *Entity, brand *schema.Brand) ([]string, error) {
	if brand == nil || e.Node == nil || !e.Node.IsGeneric {
		return nil, nil
	}
	for _, sc := range brand.Scopes {
		if uint64(sc.ScopeID) != e.ID {
			continue
		}
		if sc.Inherits() {
			return e.GenericParams, nil
		}
		args := make([]string, 0, len(sc.Bind))
		for _, b := range sc.Bind {
			if b.Type == nil {
				g.needs.typing("Any")
				args = append(args, "Any")
				continue
			}
			d, err := g.resolveType(b.Type)
			if err != nil {
				return nil, err
			}
			args = append(args, d.Render())
		}
		return args, nil
	}
	return nil, nil
}

// resolveAnyPointer maps an opaque-pointer type to a bound generic parameter
// name when one applies, and to the unconstrained Any otherwise.
func (g *Generator) resolveAnyPointer(ap *schema.AnyPointerType) TypeDescriptor {
	if ap != nil && ap.Kind == schema.AnyPointerParameter && ap.Parameter != nil {
		if node, _, ok := g.nodeByID(uint64(ap.Parameter.ScopeID)); ok {
			idx := int(ap.Parameter.ParameterIndex)
			if idx < len(node.Parameters) {
				name := sanitizeIdent(node.Parameters[idx].Name)
				g.addTypeVar(name)
				return builtin(name)
			}
		}
		g.log.Debugw("generic parameter did not resolve, widening to Any",
			"scope", ap.Parameter.ScopeID, "index", ap.Parameter.ParameterIndex)
	}
	g.needs.typing("Any")
	return builtin("Any")
}

// ensureEntity returns the registered entity for an id, generating the
// record/enum/interface on demand when the id is unseen in the current file.
func (g *Generator) ensureEntity(id uint64) (*Entity, error) {
	e, err := g.lookup(id)
	if err == nil {
		return e, nil
	}
	if !IsNotFoundErr(err) {
		return nil, err
	}
	node, _, ok := g.nodeByID(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %d not present in any registered module", id)
	}
	switch node.Which() {
	case schema.KindStruct:
		return g.genStruct(node, "")
	case schema.KindEnum:
		return g.genEnum(node)
	case schema.KindInterface:
		return g.genInterface(node)
	default:
		return nil, errors.Wrapf(ErrUnknownFieldKind, "cannot generate %s node %q", node.Which(), node.DisplayName)
	}
}

// addTypeVar records a TypeVar declaration needed by the emitted file.
func (g *Generator) addTypeVar(name string) {
	if g.typeVarSeen[name] {
		return
	}
	g.typeVarSeen[name] = true
	g.typeVars = append(g.typeVars, name)
	g.needs.typing("TypeVar")
}
