// Package capnptool drives the capnp compiler to obtain a JSON
// CodeGeneratorRequest for a schema file.
//
// Two invocations are chained, matching what one would run by hand:
//
//	capnp compile -o- [-I dir]... schema.capnp
//	capnp convert binary:json schema.capnp CodeGeneratorRequest
//
// The first emits the binary request on stdout, the second re-encodes it as
// JSON using capnp's own schema for the request type.
package capnptool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Tool wraps a capnp executable.
type Tool struct {
	// Bin is the executable name or path. Empty means "capnp" on PATH.
	Bin string
	// SchemaCapnp is the path to capnp's own schema.capnp, needed by the
	// convert step. Empty lets capnp resolve it from its install prefix.
	SchemaCapnp string
	// ImportPaths are extra -I directories for the compile step.
	ImportPaths []string
}

func (t *Tool) bin() string {
	if t.Bin == "" {
		return "capnp"
	}
	return t.Bin
}

// Available reports whether the capnp executable can be found.
func (t *Tool) Available() bool {
	_, err := exec.LookPath(t.bin())
	return err == nil
}

// RequestJSON compiles schemaPath and returns the CodeGeneratorRequest as
// JSON. The two capnp invocations run sequentially with the binary request
// held in memory between them.
func (t *Tool) RequestJSON(ctx context.Context, schemaPath string) ([]byte, error) {
	compileArgs := []string{"compile", "-o-"}
	for _, dir := range t.ImportPaths {
		compileArgs = append(compileArgs, "-I"+dir)
	}
	compileArgs = append(compileArgs, schemaPath)

	binary, err := t.run(ctx, nil, compileArgs...)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %s", schemaPath)
	}

	convertArgs := []string{"convert", "binary:json"}
	schemaSchema := t.SchemaCapnp
	if schemaSchema == "" {
		schemaSchema = "/usr/include/capnp/schema.capnp"
	}
	convertArgs = append(convertArgs, schemaSchema, "CodeGeneratorRequest")

	jsonOut, err := t.run(ctx, binary, convertArgs...)
	if err != nil {
		return nil, errors.Wrapf(err, "converting request for %s", schemaPath)
	}
	return jsonOut, nil
}

func (t *Tool) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.bin(), args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.Wrapf(err, "capnp %s: %s", args[0], msg)
		}
		return nil, errors.Wrapf(err, "capnp %s", args[0])
	}
	return stdout.Bytes(), nil
}
