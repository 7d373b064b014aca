package schema

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"sigs.k8s.io/yaml"
)

// Load decodes a CodeGeneratorRequest dump. JSON dumps (as produced by
// capnp convert binary:json) are decoded directly; anything else is treated
// as YAML and converted to JSON first. One Module is returned per file node
// in the request, requested files first.
func Load(data []byte) ([]*Module, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("schema: empty request dump")
	}

	if trimmed[0] != '{' {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, errors.Wrap(err, "schema: converting YAML dump")
		}
		data = converted
	}

	var req codeGeneratorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, "schema: decoding request dump")
	}
	return modulesFromRequest(&req)
}

// LoadFile reads and decodes a request dump from disk.
func LoadFile(path string) ([]*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "schema: reading %s", path)
	}
	mods, err := Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema: loading %s", path)
	}
	return mods, nil
}
