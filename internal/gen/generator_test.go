package gen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capnpy/stubgen/pkg/schema"
)

// generateOne loads a request dump, generates the first (requested) file and
// returns the rendered stub and loader texts.
func generateOne(t *testing.T, dump string) (stub, loader string) {
	t.Helper()
	mods, err := schema.Load([]byte(dump))
	require.NoError(t, err)

	reg := schema.NewRegistry()
	for _, m := range mods {
		reg.Add(m, m.Path)
	}
	g := New(reg, nil)
	out, err := g.GenerateFile(mods[0], Options{})
	require.NoError(t, err)
	return string(out.StubContent), string(out.LoaderContent)
}

const addressBookDump = `{
  "nodes": [
    {"id": "1", "displayName": "addressbook.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Person", "id": "2"}, {"name": "PhoneType", "id": "3"}],
     "file": {}},
    {"id": "2", "displayName": "addressbook.capnp:Person", "displayNamePrefixLength": 18, "scopeId": "1",
     "struct": {"fields": [
       {"name": "name", "slot": {"type": {"text": {}}}},
       {"name": "type", "slot": {"type": {"enum": {"typeId": "3"}}}},
       {"name": "scores", "slot": {"type": {"list": {"elementType": {"int32": {}}}}}},
       {"name": "friends", "slot": {"type": {"list": {"elementType": {"struct": {"typeId": "2"}}}}}}
     ]}},
    {"id": "3", "displayName": "addressbook.capnp:PhoneType", "displayNamePrefixLength": 18, "scopeId": "1",
     "enum": {"enumerants": [{"name": "mobile"}, {"name": "home"}, {"name": "work"}]}}
  ],
  "requestedFiles": [{"id": "1", "filename": "addressbook.capnp"}]
}`

func TestGenerateRecordStub(t *testing.T) {
	stub, loader := generateOne(t, addressBookDump)

	assert.Contains(t, stub, "# This is an automatically generated stub for `addressbook.capnp`.")
	assert.Contains(t, stub, "from __future__ import annotations\n")
	assert.Contains(t, stub, "from collections.abc import Iterator, Mapping, MutableSequence, Sequence\n")
	assert.Contains(t, stub, "from typing import Any, Literal, overload\n")
	assert.NotContains(t, stub, "capnp.lib.capnp")

	// Reading view members use the reading-appropriate types.
	assert.Contains(t, stub, "class Person:")
	assert.Contains(t, stub, "    class Reader:")
	assert.Contains(t, stub, "        name: str")
	assert.Contains(t, stub, "        type: PhoneType")
	assert.Contains(t, stub, "        scores: Sequence[int]")
	assert.Contains(t, stub, "        friends: _PersonListReader")
	assert.Contains(t, stub, "        def as_builder(self) -> Person.Builder: ...")

	// Enum-typed builder members widen the setter to literal spellings.
	assert.Contains(t, stub, "        def type(self) -> PhoneType: ...")
	assert.Contains(t, stub, "        @type.setter")
	assert.Contains(t, stub, `        def type(self, value: PhoneType | Literal["mobile", "home", "work"]) -> None: ...`)

	// Primitive-list builder members read as mutable sequences.
	assert.Contains(t, stub, "        def scores(self) -> MutableSequence[int]: ...")
	assert.Contains(t, stub, "        def scores(self, value: Sequence[int]) -> None: ...")

	// Record-list setter accepts both views and plain sequences, never the
	// bare base type.
	assert.Contains(t, stub,
		"def friends(self, value: _PersonListBuilder | _PersonListReader | Sequence[Person.Builder | Person.Reader | Mapping]) -> None: ...")

	// init() overloads per initable field plus the catch-all.
	assert.Contains(t, stub, "        @overload")
	assert.Contains(t, stub, `        def init(self, name: Literal["scores"], size: int) -> MutableSequence[int]: ...`)
	assert.Contains(t, stub, `        def init(self, name: Literal["friends"], size: int) -> _PersonListBuilder: ...`)
	assert.Contains(t, stub, "        def init(self, name: str, size: int = ...) -> Any: ...")

	assert.Contains(t, stub, "        def from_dict(dictionary: Mapping) -> Person.Builder: ...")
	assert.Contains(t, stub, "        def as_reader(self) -> Person.Reader: ...")

	// Static constructors and serializers on the base declaration.
	assert.Contains(t, stub, "    def from_bytes(data: bytes, traversal_limit_in_words: int | None = ..., nesting_limit: int | None = ...) -> Person.Reader: ...")
	assert.Contains(t, stub, "    def new_message(**kwargs) -> Person.Builder: ...")
	assert.Contains(t, stub, "    def to_bytes_packed(self) -> bytes: ...")
	assert.Contains(t, stub, "    def to_segments(self) -> list[bytes]: ...")

	// No union, no which().
	assert.NotContains(t, stub, "def which")

	// Enum declaration: integer members.
	assert.Contains(t, stub, "class PhoneType:")
	assert.Contains(t, stub, "    mobile: int")
	assert.Contains(t, stub, "    work: int")

	// One shared list class pair for all list-of-Person fields.
	assert.Contains(t, stub, "class _PersonListReader:")
	assert.Contains(t, stub, "    def __getitem__(self, index: int) -> Person.Reader: ...")
	assert.Contains(t, stub, "    def __iter__(self) -> Iterator[Person.Reader]: ...")
	assert.Contains(t, stub, "class _PersonListBuilder:")
	assert.Contains(t, stub, "    def __setitem__(self, index: int, value: Person.Builder | Person.Reader | Mapping) -> None: ...")
	assert.Contains(t, stub, "    def init(self, index: int, size: int | None = ...) -> Person.Builder: ...")
	assert.Equal(t, 1, strings.Count(stub, "class _PersonListReader:"))

	// Trailing flat aliases.
	assert.Contains(t, stub, "PersonReader = Person.Reader\n")
	assert.Contains(t, stub, "PersonBuilder = Person.Builder\n")

	// Loader binds the dynamically loaded names.
	assert.Contains(t, loader, "# This is an automatically generated loader for `addressbook.capnp`.")
	assert.Contains(t, loader, "capnp.remove_import_hook()\n")
	assert.Contains(t, loader, `module_file = os.path.join(here, "addressbook.capnp")`)
	assert.Contains(t, loader, "addressbook_capnp = capnp.load(module_file, imports=[])\n")
	assert.Contains(t, loader, "Person = addressbook_capnp.Person\n")
	assert.Contains(t, loader, "PhoneType = addressbook_capnp.PhoneType\n")
}

const shapesDump = `{
  "nodes": [
    {"id": "20", "displayName": "shapes.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Shape", "id": "21"}],
     "file": {}},
    {"id": "21", "displayName": "shapes.capnp:Shape", "displayNamePrefixLength": 13, "scopeId": "20",
     "struct": {"discriminantCount": 2, "fields": [
       {"name": "area", "slot": {"type": {"float64": {}}}},
       {"name": "circle", "discriminantValue": 0, "slot": {"type": {"float64": {}}}},
       {"name": "square", "discriminantValue": 1, "slot": {"type": {"float64": {}}}}
     ]}}
  ],
  "requestedFiles": [{"id": "20", "filename": "shapes.capnp"}]
}`

func TestGenerateUnionWhich(t *testing.T) {
	stub, _ := generateOne(t, shapesDump)

	// which() narrows to the union member names only; non-union fields stay
	// out of the literal set.
	assert.Contains(t, stub, `def which(self) -> Literal["circle", "square"]: ...`)
	assert.Equal(t, 3, strings.Count(stub, "def which"), "Reader, Builder and base each carry which()")
	assert.Contains(t, stub, "        area: float")
	assert.Contains(t, stub, "        circle: float")
}

const calculatorDump = `{
  "nodes": [
    {"id": "10", "displayName": "calculator.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Calc", "id": "11"}],
     "file": {}},
    {"id": "11", "displayName": "calculator.capnp:Calc", "displayNamePrefixLength": 17, "scopeId": "10",
     "interface": {"methods": [
       {"name": "add", "paramStructType": "12", "resultStructType": "13"}
     ]}},
    {"id": "12", "displayName": "calculator.capnp:Calc.add$params", "displayNamePrefixLength": 17, "scopeId": "0",
     "struct": {"fields": [
       {"name": "a", "slot": {"type": {"int32": {}}}},
       {"name": "b", "slot": {"type": {"int32": {}}}}
     ]}},
    {"id": "13", "displayName": "calculator.capnp:Calc.add$results", "displayNamePrefixLength": 17, "scopeId": "0",
     "struct": {"fields": [
       {"name": "value", "slot": {"type": {"int32": {}}}}
     ]}}
  ],
  "requestedFiles": [{"id": "10", "filename": "calculator.capnp"}]
}`

func TestGenerateInterfaceStub(t *testing.T) {
	stub, loader := generateOne(t, calculatorDump)

	assert.Contains(t, stub, "from capnp.lib.capnp import _DynamicCapabilityClient, _DynamicCapabilityServer\n")

	// Request object: settable params and send().
	assert.Contains(t, stub, "    class AddRequest:")
	assert.Contains(t, stub, "        a: int | None")
	assert.Contains(t, stub, "        def send(self) -> Calc.AddResult: ...")

	// Promise-like result: fields plus __await__ for pipelining.
	assert.Contains(t, stub, "    class AddResult:")
	assert.Contains(t, stub, "        value: int")
	assert.Contains(t, stub, "        def __await__(self) -> Generator[Any, None, Calc.AddResult]: ...")

	// Client with per-method call and request constructors.
	assert.Contains(t, stub, "    class Client(_DynamicCapabilityClient):")
	assert.Contains(t, stub, "        def add(self, a: int | None = ..., b: int | None = ...) -> Calc.AddResult: ...")
	assert.Contains(t, stub, "        def add_request(self) -> Calc.AddRequest: ...")

	// Server-side views.
	assert.Contains(t, stub, "    class Server(_DynamicCapabilityServer):")
	assert.Contains(t, stub, "        class AddResultTuple(NamedTuple):")
	assert.Contains(t, stub, "            value: int")
	assert.Contains(t, stub, "        class AddParams:")
	assert.Contains(t, stub, "        class AddResults:")
	assert.Contains(t, stub, "        class AddCallContext:")
	assert.Contains(t, stub, "            params: Calc.Server.AddParams")
	assert.Contains(t, stub, "            def results(self) -> Calc.Server.AddResults: ...")
	assert.Contains(t, stub,
		"        def add(self, a: int, b: int, _context: Calc.Server.AddCallContext, **kwargs) -> Awaitable[int | Calc.Server.AddResultTuple | None]: ...")
	assert.Contains(t, stub, "        def add_context(self, context: Calc.Server.AddCallContext) -> Awaitable[None]: ...")

	// Client factory hook for interfaces with methods.
	assert.Contains(t, stub, "    def _new_client(server: Calc.Server) -> Calc.Client: ...")

	// One interface: a single, non-overloaded cast.
	assert.Contains(t, stub, "class _CapabilityCaster:")
	assert.Contains(t, stub, "    def cast_as(self, schema: type[Calc]) -> Calc.Client: ...")

	// Aliases for the client and the result type.
	assert.Contains(t, stub, "CalcClient = Calc.Client\n")
	assert.Contains(t, stub, "CalcAddResult = Calc.AddResult\n")

	// Loader registers the positional-result NamedTuple on the Server class.
	assert.Contains(t, loader, "import collections\n")
	assert.Contains(t, loader, "Calc = calculator_capnp.Calc\n")
	assert.Contains(t, loader, `Calc.Server.AddResultTuple = collections.namedtuple("AddResultTuple", ["value"])`)
}

const inheritDump = `{
  "nodes": [
    {"id": "50", "displayName": "hierarchy.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Base", "id": "51"}, {"name": "Derived", "id": "52"}],
     "file": {}},
    {"id": "51", "displayName": "hierarchy.capnp:Base", "displayNamePrefixLength": 16, "scopeId": "50",
     "interface": {"methods": [
       {"name": "ping", "paramStructType": "53", "resultStructType": "53"}
     ]}},
    {"id": "52", "displayName": "hierarchy.capnp:Derived", "displayNamePrefixLength": 16, "scopeId": "50",
     "interface": {"superclasses": [{"id": "51"}]}},
    {"id": "53", "displayName": "hierarchy.capnp:Base.ping$params", "displayNamePrefixLength": 16, "scopeId": "0",
     "struct": {"fields": []}}
  ],
  "requestedFiles": [{"id": "50", "filename": "hierarchy.capnp"}]
}`

func TestGenerateInterfaceInheritance(t *testing.T) {
	stub, _ := generateOne(t, inheritDump)

	// Derived views extend the ancestor views, not the dynamic bases.
	assert.Contains(t, stub, "    class Client(Base.Client):")
	assert.Contains(t, stub, "    class Server(Base.Server):")

	// The cast overloads are ordered most derived first.
	derivedCast := strings.Index(stub, "def cast_as(self, schema: type[Derived]) -> Derived.Client: ...")
	baseCast := strings.Index(stub, "def cast_as(self, schema: type[Base]) -> Base.Client: ...")
	require.GreaterOrEqual(t, derivedCast, 0)
	require.GreaterOrEqual(t, baseCast, 0)
	assert.Less(t, derivedCast, baseCast)
	assert.Contains(t, stub, "    @overload")

	// Inheriting an interface with methods keeps the factory hook available
	// on the subclass, accepting either server type.
	assert.Contains(t, stub, "    def _new_client(server: Derived.Server | Base.Server) -> Derived.Client: ...")
}

const groupDump = `{
  "nodes": [
    {"id": "60", "displayName": "employment.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Person", "id": "61"}],
     "file": {}},
    {"id": "61", "displayName": "employment.capnp:Person", "displayNamePrefixLength": 17, "scopeId": "60",
     "nestedNodes": [{"name": "employment", "id": "62"}],
     "struct": {"discriminantCount": 0, "fields": [
       {"name": "employment", "group": {"typeId": "62"}}
     ]}},
    {"id": "62", "displayName": "employment.capnp:Person.employment", "displayNamePrefixLength": 17, "scopeId": "61",
     "struct": {"isGroup": true, "discriminantCount": 2, "fields": [
       {"name": "unemployed", "discriminantValue": 0, "slot": {"type": {"void": {}}}},
       {"name": "employer", "discriminantValue": 1, "slot": {"type": {"text": {}}}}
     ]}}
  ],
  "requestedFiles": [{"id": "60", "filename": "employment.capnp"}]
}`

func TestGenerateGroupField(t *testing.T) {
	stub, _ := generateOne(t, groupDump)

	// The anonymous group becomes a nested record named by upcasing the
	// field name, and the field resolves to its views.
	assert.Contains(t, stub, "    class Employment:")
	assert.Contains(t, stub, `def which(self) -> Literal["unemployed", "employer"]: ...`)
	assert.Contains(t, stub, "        employment: Person.Employment.Reader")
	assert.Contains(t, stub, "PersonEmploymentReader = Person.Employment.Reader\n")
}
