package stubgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capnpy/stubgen/pkg/schema"
)

const crossFileDump = `{
  "nodes": [
    {"id": "30", "displayName": "common.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Color", "id": "31"}], "file": {}},
    {"id": "31", "displayName": "common.capnp:Color", "displayNamePrefixLength": 13, "scopeId": "30",
     "struct": {"fields": [
       {"name": "r", "slot": {"type": {"uint8": {}}}},
       {"name": "g", "slot": {"type": {"uint8": {}}}},
       {"name": "b", "slot": {"type": {"uint8": {}}}}
     ]}},
    {"id": "40", "displayName": "paint.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Paint", "id": "41"}], "file": {}},
    {"id": "41", "displayName": "paint.capnp:Paint", "displayNamePrefixLength": 12, "scopeId": "40",
     "struct": {"fields": [
       {"name": "color", "slot": {"type": {"struct": {"typeId": "31"}}}}
     ]}}
  ],
  "requestedFiles": [
    {"id": "30", "filename": "common.capnp"},
    {"id": "40", "filename": "paint.capnp"}
  ]
}`

func loadCrossFile(t *testing.T) []*schema.Module {
	t.Helper()
	mods, err := schema.Load([]byte(crossFileDump))
	require.NoError(t, err)
	require.Len(t, mods, 2)
	return mods
}

func fileByPath(t *testing.T, files []File, path string) File {
	t.Helper()
	for _, f := range files {
		if f.Path == path {
			return f
		}
	}
	t.Fatalf("no generated file %q", path)
	return File{}
}

func TestGenerateCrossFileImports(t *testing.T) {
	files, err := Generate(loadCrossFile(t), nil)
	require.NoError(t, err)

	// Two stubs, two loaders, one marker.
	require.Len(t, files, 5)

	common := string(fileByPath(t, files, "common_capnp.pyi").Content)
	assert.Contains(t, common, "class Color:")
	assert.Contains(t, common, "ColorReader = Color.Reader")

	paint := string(fileByPath(t, files, "paint_capnp.pyi").Content)
	assert.Contains(t, paint, "from .common_capnp import Color, ColorBuilder, ColorReader")
	assert.Contains(t, paint, "color: Color.Reader")
	// The foreign record is referenced, never re-declared.
	assert.NotContains(t, paint, "class Color:")

	marker := fileByPath(t, files, "py.typed")
	assert.Empty(t, marker.Content)
}

func TestGenerateOutputDir(t *testing.T) {
	files, err := Generate(loadCrossFile(t), &Options{OutputDir: "stubs"})
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, filepath.Join("stubs", "common_capnp.pyi"))
	assert.Contains(t, paths, filepath.Join("stubs", "paint_capnp.py"))
	assert.Contains(t, paths, filepath.Join("stubs", "py.typed"))
}

func TestGenerateNamePrefixSingleFile(t *testing.T) {
	mods := loadCrossFile(t)

	// The prefix only applies to single-module runs.
	files, err := Generate(mods[:1], &Options{NamePrefix: "colors"})
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "colors_capnp.pyi")
	assert.Contains(t, paths, "colors_capnp.py")

	loader := string(fileByPath(t, files, "colors_capnp.py").Content)
	assert.Contains(t, loader, "colors_capnp = capnp.load(module_file, imports=[])")
}

func TestGenerateLoaderImportPaths(t *testing.T) {
	files, err := Generate(loadCrossFile(t), &Options{ImportPaths: []string{"/usr/include", "schemas"}})
	require.NoError(t, err)

	loader := string(fileByPath(t, files, "common_capnp.py").Content)
	assert.Contains(t, loader, `capnp.load(module_file, imports=["/usr/include", "schemas"])`)
}

const nestedDump = `{
  "nodes": [
    {"id": "50", "displayName": "models/common.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Color", "id": "51"}], "file": {}},
    {"id": "51", "displayName": "models/common.capnp:Color", "displayNamePrefixLength": 20, "scopeId": "50",
     "struct": {"fields": [{"name": "r", "slot": {"type": {"uint8": {}}}}]}},
    {"id": "60", "displayName": "models/sub/paint.capnp", "displayNamePrefixLength": 0, "scopeId": "0",
     "nestedNodes": [{"name": "Paint", "id": "61"}], "file": {}},
    {"id": "61", "displayName": "models/sub/paint.capnp:Paint", "displayNamePrefixLength": 23, "scopeId": "60",
     "struct": {"fields": [{"name": "color", "slot": {"type": {"struct": {"typeId": "51"}}}}]}}
  ],
  "requestedFiles": [
    {"id": "50", "filename": "models/common.capnp"},
    {"id": "60", "filename": "models/sub/paint.capnp"}
  ]
}`

func TestGenerateMirrorsSourceLayout(t *testing.T) {
	mods, err := schema.Load([]byte(nestedDump))
	require.NoError(t, err)

	files, err := Generate(mods, &Options{OutputDir: "out"})
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, filepath.Join("out", "common_capnp.pyi"))
	assert.Contains(t, paths, filepath.Join("out", "sub", "paint_capnp.pyi"))
	assert.Contains(t, paths, filepath.Join("out", "py.typed"))
	assert.Contains(t, paths, filepath.Join("out", "sub", "py.typed"))

	paint := string(fileByPath(t, files, filepath.Join("out", "sub", "paint_capnp.pyi")).Content)
	assert.Contains(t, paint, "from ..common_capnp import Color, ColorBuilder, ColorReader")
}

func TestGenerateRejectsEmpty(t *testing.T) {
	_, err := Generate(nil, nil)
	require.Error(t, err)
}

func TestWriteCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		{Path: filepath.Join(dir, "stubs", "a_capnp.pyi"), Content: []byte("# stub\n")},
		{Path: filepath.Join(dir, "stubs", "py.typed"), Content: []byte{}},
	}
	require.NoError(t, Write(files))

	data, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "# stub\n", string(data))

	info, err := os.Stat(files[1].Path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
