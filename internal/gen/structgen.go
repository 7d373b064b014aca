package gen

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/capnpy/stubgen/pkg/schema"
)

// fieldInfo is one resolved field or parameter. The member's primary
// candidate is the building-view getter type and its full candidate set is
// the value union setters and calls accept; that union never contains the
// bare base declaration name, since the base class is not itself a value.
// Views that read through a different type than the primary carry an
// override.
type fieldInfo struct {
	field *schema.Field
	name  string

	member *TypedMember

	readerOverride string // reading view, when it differs from the primary
	getterOverride string // building-view getter, when it differs from the primary
	initRet        string // init() return type; empty when not initable

	inUnion bool
}

func (fi *fieldInfo) readerType() string {
	if fi.readerOverride != "" {
		return fi.readerOverride
	}
	return fi.member.PrimaryText()
}

func (fi *fieldInfo) builderGet() string {
	if fi.getterOverride != "" {
		return fi.getterOverride
	}
	return fi.member.PrimaryText()
}

func (fi *fieldInfo) builderSet() string {
	return fi.member.UnionText()
}

func (fi *fieldInfo) clientCall() string {
	return fi.member.UnionText()
}

// resolveField resolves one struct field into a fieldInfo. A group field is
// generated as an ordinary nested record first (named by upcasing the first
// letter of the field name) and then treated as a record-typed field. An
// unresolvable field kind is fatal: it indicates malformed schema input.
func (g *Generator) resolveField(f *schema.Field) (*fieldInfo, error) {
	name := sanitizeIdent(f.Name)

	if f.Group != nil {
		groupNode, _, ok := g.nodeByID(uint64(f.Group.TypeID))
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "group node for field %q", f.Name)
		}
		groupEntity, err := g.genStruct(groupNode, titleCase(f.Name))
		if err != nil {
			return nil, err
		}
		fi := g.structFieldInfo(name, groupEntity.descriptor(nil))
		fi.field = f
		fi.inUnion = f.InUnion()
		return fi, nil
	}

	if f.Slot == nil || f.Slot.Type == nil {
		return nil, errors.Wrapf(ErrUnknownFieldKind, "field %q has neither slot nor group", f.Name)
	}
	fi, err := g.slotFieldInfo(name, f.Slot.Type)
	if err != nil {
		return nil, err
	}
	fi.field = f
	fi.inUnion = f.InUnion()
	return fi, nil
}

// slotFieldInfo resolves a plain typed field.
func (g *Generator) slotFieldInfo(name string, t *schema.Type) (*fieldInfo, error) {
	if prim, ok := primitiveNames[t.Kind]; ok {
		return &fieldInfo{name: name, member: member(name, builtin(prim))}, nil
	}

	switch t.Kind {
	case schema.TypeStruct:
		d, err := g.resolveStructRef(t.Struct)
		if err != nil {
			return nil, err
		}
		return g.structFieldInfo(name, d), nil

	case schema.TypeEnum:
		e, err := g.ensureEntity(uint64(t.Enum.TypeID))
		if err != nil {
			return nil, err
		}
		g.needs.typing("Literal")
		m := member(name, e.descriptor(nil))
		if err := m.AddHint(Candidate{Desc: builtin(literalUnion(enumLiterals(e)))}); err != nil {
			return nil, err
		}
		return &fieldInfo{name: name, member: m}, nil

	case schema.TypeInterface:
		e, err := g.ensureEntity(uint64(t.Interface.TypeID))
		if err != nil {
			return nil, err
		}
		d := e.descriptor(nil)
		m := member(name, d.WithAffix(affixClient))
		if err := m.AddHint(Candidate{Desc: d.WithAffix(affixServer)}); err != nil {
			return nil, err
		}
		return &fieldInfo{name: name, member: m}, nil

	case schema.TypeList:
		return g.listFieldInfo(name, t)

	case schema.TypeAnyPointer:
		d := g.resolveAnyPointer(t.AnyPointer)
		return &fieldInfo{name: name, member: member(name, d)}, nil

	default:
		return nil, errors.Wrapf(ErrUnknownFieldKind, "field %q kind %d", name, int(t.Kind))
	}
}

// structFieldInfo builds the info for a record-typed field: the building view
// is primary, the reading view and a plain mapping are the extra accepted
// forms, and reads in reader context go through the reading view.
func (g *Generator) structFieldInfo(name string, d TypeDescriptor) *fieldInfo {
	g.needs.collections("Mapping")
	m := member(name, d.WithAffix(affixBuilder), d.WithAffix(affixReader), builtin("Mapping"))
	return &fieldInfo{
		name:           name,
		member:         m,
		readerOverride: d.WithAffix(affixReader).Render(),
		initRet:        d.WithAffix(affixBuilder).Render(),
	}
}

// listFieldInfo resolves a list-typed field. Record and nested-list elements
// narrow to the generated list view classes; other elements render as plain
// (mutable) sequences.
func (g *Generator) listFieldInfo(name string, t *schema.Type) (*fieldInfo, error) {
	elem := t.List.ElementType
	if elem == nil {
		return nil, errors.Wrapf(ErrUnknownFieldKind, "list field %q without element type", name)
	}

	switch elem.Kind {
	case schema.TypeStruct, schema.TypeList:
		alias, err := g.listElementClass(t)
		if err != nil {
			return nil, err
		}
		_, _, setElem, _, err := g.listElementViews(elem)
		if err != nil {
			return nil, err
		}
		g.needs.collections("Sequence")
		m := member(name, builtin(alias.Builder), builtin(alias.Reader), builtin("Sequence["+setElem+"]"))
		return &fieldInfo{
			name:           name,
			member:         m,
			readerOverride: alias.Reader,
			initRet:        alias.Builder,
		}, nil

	default:
		elemD, err := g.resolveType(elem)
		if err != nil {
			return nil, err
		}
		g.needs.collections("Sequence")
		g.needs.collections("MutableSequence")
		m := member(name, elemD)
		m.SeqDepth = 1
		mutable := "MutableSequence[" + elemD.Render() + "]"
		return &fieldInfo{
			name:           name,
			member:         m,
			getterOverride: mutable,
			initRet:        mutable,
		}, nil
	}
}

// genStruct generates the three linked declarations for a record node: the
// base declaration (static constructors and serializers), the reading view
// and the building view, all sharing one scope. nameOverride is set when
// generating an anonymous group.
func (g *Generator) genStruct(node *schema.Node, nameOverride string) (*Entity, error) {
	if e, err := g.importIfForeign(node); err != nil {
		if IsAlreadyImportedErr(err) {
			return e, nil
		}
		return nil, err
	}
	if e, err := g.lookup(uint64(node.ID)); err == nil {
		return e, nil
	}

	name := nameOverride
	if name == "" {
		name = sanitizeIdent(node.ShortName())
	}

	var params []string
	for _, p := range node.Parameters {
		pn := sanitizeIdent(p.Name)
		params = append(params, pn)
		g.addTypeVar(pn)
	}
	header := classHeader(name)
	if len(params) > 0 {
		g.needs.typing("Generic")
		header = classHeader(name, "Generic["+joinParams(params)+"]")
	}

	scope, err := g.pushScopeFor(name, uint64(node.ID), uint64(node.ScopeID), header)
	if err != nil {
		if !IsNoParentScopeErr(err) {
			return nil, err
		}
		g.log.Debugw("record scope fell back to root", "record", node.DisplayName)
		scope = g.pushChild(g.root, name, header)
		g.scopes[uint64(node.ID)] = scope
	}
	e := g.register(uint64(node.ID), node, name, scope.Parent)
	e.GenericParams = params

	// Nested types first: a field may reference a nested sibling, so the
	// sibling must be registered before fields resolve.
	for _, child := range g.module.NestedOf(node) {
		if err := g.genNode(child); err != nil {
			g.log.Debugw("skipping nested node", "node", child.DisplayName, "error", err)
		}
	}

	infos := make([]*fieldInfo, 0, len(node.Struct.Fields))
	for i := range node.Struct.Fields {
		fi, err := g.resolveField(&node.Struct.Fields[i])
		if err != nil {
			g.popScope(scope)
			return nil, errors.Wrapf(err, "record %s field %q", node.DisplayName, node.Struct.Fields[i].Name)
		}
		infos = append(infos, fi)
	}

	selfPath := e.Path()
	unionNames := unionFieldNames(infos)
	hasUnion := node.Struct.DiscriminantCount > 0 && len(unionNames) > 0

	g.emitStructReader(scope, selfPath, infos, unionNames, hasUnion)
	g.emitStructBuilder(scope, selfPath, infos, unionNames, hasUnion)
	g.emitStructBase(scope, selfPath, infos, unionNames, hasUnion)

	g.popScope(scope)

	g.addAlias(flatViewName(selfPath, affixReader), selfPath+"."+affixReader)
	g.addAlias(flatViewName(selfPath, affixBuilder), selfPath+"."+affixBuilder)
	if scope.Parent.isRoot {
		g.rootOrder = append(g.rootOrder, e)
	}
	return e, nil
}

func unionFieldNames(infos []*fieldInfo) []string {
	var out []string
	for _, fi := range infos {
		if fi.inUnion {
			out = append(out, fi.field.Name)
		}
	}
	return out
}

func (g *Generator) emitStructReader(scope *Scope, selfPath string, infos []*fieldInfo, unionNames []string, hasUnion bool) {
	reader := g.pushChild(scope, affixReader, classHeader(affixReader))
	for _, fi := range infos {
		reader.Block.AddLine(fmt.Sprintf("%s: %s", fi.name, fi.readerType()))
	}
	if hasUnion {
		g.needs.typing("Literal")
		reader.Block.AddLine(fmt.Sprintf("def which(self) -> %s: ...", literalUnion(unionNames)))
	}
	reader.Block.AddLine(fmt.Sprintf("def as_builder(self) -> %s.Builder: ...", selfPath))
	g.popScope(reader)
}

func (g *Generator) emitStructBuilder(scope *Scope, selfPath string, infos []*fieldInfo, unionNames []string, hasUnion bool) {
	builder := g.pushChild(scope, affixBuilder, classHeader(affixBuilder))
	for _, fi := range infos {
		if fi.builderGet() == fi.builderSet() {
			builder.Block.AddLine(fmt.Sprintf("%s: %s", fi.name, fi.builderGet()))
			continue
		}
		builder.Block.AddLines(propertyLines(fi.name, fi.builderGet(), fi.builderSet())...)
	}
	if hasUnion {
		g.needs.typing("Literal")
		builder.Block.AddLine(fmt.Sprintf("def which(self) -> %s: ...", literalUnion(unionNames)))
	}
	g.emitInitOverloads(builder.Block, infos)
	g.needs.collections("Mapping")
	builder.Block.AddLine("@staticmethod")
	builder.Block.AddLine(fmt.Sprintf("def from_dict(dictionary: Mapping) -> %s.Builder: ...", selfPath))
	builder.Block.AddLine(fmt.Sprintf("def as_reader(self) -> %s.Reader: ...", selfPath))
	g.popScope(builder)
}

func (g *Generator) emitStructBase(scope *Scope, selfPath string, infos []*fieldInfo, unionNames []string, hasUnion bool) {
	b := scope.Block
	b.AddLine("@staticmethod")
	b.AddLine(fmt.Sprintf("def from_bytes(data: bytes, traversal_limit_in_words: int | None = ..., nesting_limit: int | None = ...) -> %s.Reader: ...", selfPath))
	b.AddLine("@staticmethod")
	b.AddLine(fmt.Sprintf("def from_bytes_packed(data: bytes, traversal_limit_in_words: int | None = ..., nesting_limit: int | None = ...) -> %s.Reader: ...", selfPath))
	b.AddLine("@staticmethod")
	b.AddLine(fmt.Sprintf("def new_message(**kwargs) -> %s.Builder: ...", selfPath))
	b.AddLine("def to_bytes(self) -> bytes: ...")
	b.AddLine("def to_bytes_packed(self) -> bytes: ...")
	b.AddLine("def to_segments(self) -> list[bytes]: ...")
	if hasUnion {
		g.needs.typing("Literal")
		b.AddLine(fmt.Sprintf("def which(self) -> %s: ...", literalUnion(unionNames)))
	}
	g.emitInitOverloads(b, infos)
}

// emitInitOverloads renders init() for every group/record/list member. One
// candidate renders as a single signature; several render as @overload
// alternatives plus a catch-all accepting any field name.
func (g *Generator) emitInitOverloads(b *Block, infos []*fieldInfo) {
	var initable []*fieldInfo
	for _, fi := range infos {
		if fi.initRet != "" {
			initable = append(initable, fi)
		}
	}
	if len(initable) == 0 {
		return
	}
	g.needs.typing("Literal")
	if len(initable) == 1 {
		b.AddLine(initSignature(initable[0]))
		return
	}
	g.needs.typing("overload")
	g.needs.typing("Any")
	for _, fi := range initable {
		b.AddLine("@overload")
		b.AddLine(initSignature(fi))
	}
	b.AddLine("def init(self, name: str, size: int = ...) -> Any: ...")
}

func initSignature(fi *fieldInfo) string {
	if fi.initRet != "" && fi.field != nil && fi.field.Slot != nil && fi.field.Slot.Type != nil && fi.field.Slot.Type.Kind == schema.TypeList {
		return fmt.Sprintf("def init(self, name: Literal[%q], size: int) -> %s: ...", fi.field.Name, fi.initRet)
	}
	return fmt.Sprintf("def init(self, name: Literal[%q]) -> %s: ...", fi.field.Name, fi.initRet)
}

// genNode dispatches generation for one nested node. Const and annotation
// nodes produce no stub declarations.
func (g *Generator) genNode(node *schema.Node) error {
	switch node.Which() {
	case schema.KindStruct:
		if node.Struct.IsGroup {
			// Groups are generated from the field that embeds them.
			return nil
		}
		_, err := g.genStruct(node, "")
		return err
	case schema.KindEnum:
		_, err := g.genEnum(node)
		return err
	case schema.KindInterface:
		_, err := g.genInterface(node)
		return err
	default:
		return nil
	}
}
