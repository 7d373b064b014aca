package schema

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64Unmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{`123`, 123},
		{`"123"`, 123},
		{`"0x7b"`, 123},
		{`"13688829037717245569"`, 13688829037717245569},
		{`null`, 0},
	}
	for _, tc := range cases {
		var u Uint64
		require.NoError(t, u.UnmarshalJSON([]byte(tc.in)), tc.in)
		assert.Equal(t, tc.want, uint64(u), tc.in)
	}

	var u Uint64
	require.Error(t, u.UnmarshalJSON([]byte(`"not-a-number"`)))
}

func TestUint64MarshalQuoted(t *testing.T) {
	out, err := json.Marshal(Uint64(13688829037717245569))
	require.NoError(t, err)
	assert.Equal(t, `"13688829037717245569"`, string(out))
}

func TestTypeUnmarshalFoldsUnionKey(t *testing.T) {
	var prim Type
	require.NoError(t, json.Unmarshal([]byte(`{"int32": {}}`), &prim))
	assert.Equal(t, TypeInt32, prim.Kind)

	var list Type
	require.NoError(t, json.Unmarshal([]byte(`{"list": {"elementType": {"text": {}}}}`), &list))
	assert.Equal(t, TypeList, list.Kind)
	require.NotNil(t, list.List)
	require.NotNil(t, list.List.ElementType)
	assert.Equal(t, TypeText, list.List.ElementType.Kind)

	var ref Type
	require.NoError(t, json.Unmarshal([]byte(`{"struct": {"typeId": "42"}}`), &ref))
	assert.Equal(t, TypeStruct, ref.Kind)
	require.NotNil(t, ref.Struct)
	assert.Equal(t, uint64(42), uint64(ref.Struct.TypeID))

	var param Type
	require.NoError(t, json.Unmarshal(
		[]byte(`{"anyPointer": {"parameter": {"scopeId": "7", "parameterIndex": 1}}}`), &param))
	assert.Equal(t, TypeAnyPointer, param.Kind)
	require.NotNil(t, param.AnyPointer)
	assert.Equal(t, AnyPointerParameter, param.AnyPointer.Kind)
	assert.Equal(t, uint16(1), param.AnyPointer.Parameter.ParameterIndex)

	var bad Type
	require.Error(t, json.Unmarshal([]byte(`{"frobnicate": {}}`), &bad))
}

func TestTypeRoundTrip(t *testing.T) {
	in := `{"list": {"elementType": {"struct": {"typeId": "42"}}}}`
	var typ Type
	require.NoError(t, json.Unmarshal([]byte(in), &typ))

	out, err := json.Marshal(typ)
	require.NoError(t, err)

	var again Type
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, TypeList, again.Kind)
	assert.Equal(t, uint64(42), uint64(again.List.ElementType.Struct.TypeID))
}

func TestNodeNames(t *testing.T) {
	n := &Node{
		DisplayName:             "addressbook.capnp:Person.Employment",
		DisplayNamePrefixLength: 18,
	}
	assert.Equal(t, "Person.Employment", n.LocalName())
	assert.Equal(t, "Employment", n.ShortName())
	assert.Equal(t, "addressbook.capnp", n.ModuleName())

	file := &Node{DisplayName: "addressbook.capnp"}
	assert.Empty(t, file.ModuleName())
	assert.Equal(t, KindFile, file.Which())
}

func TestFieldDiscriminantDefault(t *testing.T) {
	var f Field
	require.NoError(t, json.Unmarshal([]byte(`{"name": "plain"}`), &f))
	assert.Equal(t, uint16(NoDiscriminant), f.Discriminant())
	assert.False(t, f.InUnion())

	require.NoError(t, json.Unmarshal([]byte(`{"name": "arm", "discriminantValue": 0}`), &f))
	assert.Equal(t, uint16(0), f.Discriminant())
	assert.True(t, f.InUnion())
}

const loadDump = `{
  "nodes": [
    {"id": "1", "displayName": "a.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Outer", "id": "2"}], "file": {}},
    {"id": "2", "displayName": "a.capnp:Outer", "displayNamePrefixLength": 8, "scopeId": "1",
     "nestedNodes": [{"name": "Inner", "id": "3"}],
     "struct": {"fields": [{"name": "g", "group": {"typeId": "4"}}]}},
    {"id": "3", "displayName": "a.capnp:Outer.Inner", "displayNamePrefixLength": 8, "scopeId": "2",
     "struct": {"fields": []}},
    {"id": "4", "displayName": "a.capnp:Outer.g", "displayNamePrefixLength": 8, "scopeId": "2",
     "struct": {"isGroup": true, "fields": []}},
    {"id": "5", "displayName": "b.capnp", "displayNamePrefixLength": 0, "scopeId": "0", "file": {}}
  ],
  "requestedFiles": [{"id": "1", "filename": "a.capnp"}]
}`

func TestLoadRequestedFirst(t *testing.T) {
	mods, err := Load([]byte(loadDump))
	require.NoError(t, err)
	require.Len(t, mods, 2)

	// The requested file leads; the imported-only file follows.
	assert.Equal(t, "a.capnp", mods[0].Path)
	assert.True(t, mods[0].Requested)
	assert.Equal(t, "b.capnp", mods[1].Path)
	assert.False(t, mods[1].Requested)

	// Both modules share the node table.
	assert.True(t, mods[1].HasNode(2))
}

func TestLoadOrdersByPathWithinGroups(t *testing.T) {
	// Node-table order is deliberately the reverse of path order in both
	// groups.
	dump := `{
  "nodes": [
    {"id": "1", "displayName": "zoo.capnp", "displayNamePrefixLength": 0, "scopeId": "0", "file": {}},
    {"id": "2", "displayName": "bar.capnp", "displayNamePrefixLength": 0, "scopeId": "0", "file": {}},
    {"id": "3", "displayName": "z-import.capnp", "displayNamePrefixLength": 0, "scopeId": "0", "file": {}},
    {"id": "4", "displayName": "a-import.capnp", "displayNamePrefixLength": 0, "scopeId": "0", "file": {}}
  ],
  "requestedFiles": [
    {"id": "1", "filename": "zoo.capnp"},
    {"id": "2", "filename": "bar.capnp"}
  ]
}`
	mods, err := Load([]byte(dump))
	require.NoError(t, err)
	require.Len(t, mods, 4)

	paths := make([]string, 0, len(mods))
	for _, m := range mods {
		paths = append(paths, m.Path)
	}
	assert.Equal(t, []string{"bar.capnp", "zoo.capnp", "a-import.capnp", "z-import.capnp"}, paths)
}

func TestLoadYAML(t *testing.T) {
	dump := `
nodes:
  - id: "1"
    displayName: a.capnp
    displayNamePrefixLength: 0
    scopeId: "0"
    file: {}
requestedFiles:
  - id: "1"
    filename: a.capnp
`
	mods, err := Load([]byte(dump))
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "a.capnp", mods[0].Path)
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load([]byte("   \n"))
	require.Error(t, err)
}

func TestModuleNestedLookup(t *testing.T) {
	mods, err := Load([]byte(loadDump))
	require.NoError(t, err)
	m := mods[0]

	outer, err := m.NestedNode(m.Root, "Outer")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), uint64(outer.ID))

	_, err = m.NestedNode(m.Root, "Missing")
	require.ErrorIs(t, err, ErrNoNested)

	_, err = m.Node(999)
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestFindNodeDescendsGroups(t *testing.T) {
	mods, err := Load([]byte(loadDump))
	require.NoError(t, err)
	m := mods[0]

	// Nested declaration.
	n, ok := m.FindNode(m.Root, 3)
	require.True(t, ok)
	assert.Equal(t, "Inner", n.ShortName())

	// Group node reachable only through the embedding field.
	n, ok = m.FindNode(m.Root, 4)
	require.True(t, ok)
	assert.True(t, n.Struct.IsGroup)

	_, ok = m.FindNode(m.Root, 999)
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	mods, err := Load([]byte(loadDump))
	require.NoError(t, err)

	reg := NewRegistry()
	for _, m := range mods {
		reg.Add(m, m.Path)
	}

	entry, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "a.capnp", entry.Path)

	all := reg.Modules()
	require.Len(t, all, 2)
	assert.Equal(t, "a.capnp", all[0].Path)
}
