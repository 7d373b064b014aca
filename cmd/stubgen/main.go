// Package main provides a CLI for generating Python type stubs from Cap'n
// Proto schemas.
//
// The CLI supports:
//   - generate: Produce .pyi stubs, loader modules and a py.typed marker
//   - validate: Parse schemas and report their contents without generating
//   - config:   Inspect the effective configuration
//
// Input is either a .capnp schema file (the capnp compiler is invoked to
// obtain its CodeGeneratorRequest) or an already-dumped request in JSON or
// YAML form.
//
// Usage:
//
//	stubgen [flags] <command>
package main

func main() {
	Execute()
}
