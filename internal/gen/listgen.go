package gen

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// listAlias names the paired reading/building view classes generated for one
// distinct list element type.
type listAlias struct {
	Reader  string
	Builder string
}

// listElementClass emits (or reuses) the reading/building view pair for the
// element type of listType. Memoization is keyed by the derived element base
// name, so repeated list-of-X fields share one emitted class pair.
func (g *Generator) listElementClass(listType *schema.Type) (listAlias, error) {
	if listType == nil || listType.Kind != schema.TypeList {
		return listAlias{}, errors.Wrap(ErrUnknownFieldKind, "list element class for non-list type")
	}
	elem := listType.List.ElementType
	base, err := g.listBaseName(elem)
	if err != nil {
		return listAlias{}, err
	}
	if alias, ok := g.listMemo[base]; ok {
		return alias, nil
	}

	alias := listAlias{
		Reader:  "_" + base + "ListReader",
		Builder: "_" + base + "ListBuilder",
	}
	// Reserve the memo entry before resolving element views: a struct
	// element holding a list of itself must find the alias already present.
	g.listMemo[base] = alias

	readElem, buildElem, setElem, initable, err := g.listElementViews(elem)
	if err != nil {
		delete(g.listMemo, base)
		return listAlias{}, err
	}

	g.needs.collections("Iterator")

	reader := g.pushChild(g.root, alias.Reader, classHeader(alias.Reader))
	reader.Block.AddLine(fmt.Sprintf("def __getitem__(self, index: int) -> %s: ...", readElem))
	reader.Block.AddLine(fmt.Sprintf("def __iter__(self) -> Iterator[%s]: ...", readElem))
	reader.Block.AddLine("def __len__(self) -> int: ...")
	g.popScope(reader)

	builder := g.pushChild(g.root, alias.Builder, classHeader(alias.Builder))
	builder.Block.AddLine(fmt.Sprintf("def __getitem__(self, index: int) -> %s: ...", buildElem))
	builder.Block.AddLine(fmt.Sprintf("def __setitem__(self, index: int, value: %s) -> None: ...", setElem))
	builder.Block.AddLine(fmt.Sprintf("def __iter__(self) -> Iterator[%s]: ...", buildElem))
	builder.Block.AddLine("def __len__(self) -> int: ...")
	if initable {
		builder.Block.AddLine(fmt.Sprintf("def init(self, index: int, size: int | None = ...) -> %s: ...", buildElem))
	}
	g.popScope(builder)

	return alias, nil
}

// listBaseName derives the memoization key and class-name stem for a list's
// element type. Nested lists recurse, re-wrapping the inner name with a
// "List" affix at each level.
func (g *Generator) listBaseName(elem *schema.Type) (string, error) {
	if elem == nil {
		return "", errors.Wrap(ErrUnknownFieldKind, "nil list element type")
	}
	switch elem.Kind {
	case schema.TypeStruct:
		e, err := g.ensureEntity(uint64(elem.Struct.TypeID))
		if err != nil {
			return "", err
		}
		return flatViewName(e.Path(), ""), nil
	case schema.TypeEnum:
		e, err := g.ensureEntity(uint64(elem.Enum.TypeID))
		if err != nil {
			return "", err
		}
		return flatViewName(e.Path(), ""), nil
	case schema.TypeInterface:
		e, err := g.ensureEntity(uint64(elem.Interface.TypeID))
		if err != nil {
			return "", err
		}
		return flatViewName(e.Path(), ""), nil
	case schema.TypeList:
		inner, err := g.listBaseName(elem.List.ElementType)
		if err != nil {
			return "", err
		}
		return inner + "List", nil
	case schema.TypeAnyPointer:
		return "AnyPointer", nil
	default:
		if _, ok := primitiveNames[elem.Kind]; ok {
			return titleCase(elem.Kind.String()), nil
		}
		return "", errors.Wrapf(ErrUnknownFieldKind, "list element kind %d", int(elem.Kind))
	}
}

// listElementViews resolves the reading type, building type, assignment
// union and init-ability of a list element.
func (g *Generator) listElementViews(elem *schema.Type) (read, build, set string, initable bool, err error) {
	switch elem.Kind {
	case schema.TypeStruct:
		d, rerr := g.resolveStructRef(elem.Struct)
		if rerr != nil {
			return "", "", "", false, rerr
		}
		g.needs.collections("Mapping")
		read = d.WithAffix(affixReader).Render()
		build = d.WithAffix(affixBuilder).Render()
		set = unionOf(build, read, "Mapping")
		return read, build, set, true, nil

	case schema.TypeList:
		inner, rerr := g.listElementClass(elem)
		if rerr != nil {
			return "", "", "", false, rerr
		}
		innerElem, rerr := g.resolveType(elem)
		if rerr != nil {
			return "", "", "", false, rerr
		}
		return inner.Reader, inner.Builder, unionOf(inner.Builder, inner.Reader, innerElem.Render()), true, nil

	case schema.TypeEnum:
		e, rerr := g.ensureEntity(uint64(elem.Enum.TypeID))
		if rerr != nil {
			return "", "", "", false, rerr
		}
		g.needs.typing("Literal")
		name := e.descriptor(nil).Render()
		set = unionOf(name, literalUnion(enumLiterals(e)))
		return name, name, set, false, nil

	case schema.TypeInterface:
		e, rerr := g.ensureEntity(uint64(elem.Interface.TypeID))
		if rerr != nil {
			return "", "", "", false, rerr
		}
		client := e.descriptor(nil).WithAffix(affixClient).Render()
		server := e.descriptor(nil).WithAffix(affixServer).Render()
		return client, client, unionOf(client, server), false, nil

	case schema.TypeAnyPointer:
		d := g.resolveAnyPointer(elem.AnyPointer)
		return d.Render(), d.Render(), d.Render(), false, nil

	default:
		if name, ok := primitiveNames[elem.Kind]; ok {
			return name, name, name, false, nil
		}
		return "", "", "", false, errors.Wrapf(ErrUnknownFieldKind, "list element kind %d", int(elem.Kind))
	}
}
