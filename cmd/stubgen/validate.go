package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/capnpy/stubgen/internal/capnptool"
	"github.com/capnpy/stubgen/internal/cli"
	"github.com/capnpy/stubgen/pkg/schema"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse a schema and report its contents",
	Long: `Parse a schema without generating anything.

Prints every file in the compiled request with its top-level structs, enums,
interfaces and constants. Useful for checking that a schema compiles and that
imports resolve before wiring stub generation into a build.`,
	Example: `  # Validate a schema source
  stubgen validate --schema schemas/addressbook.capnp

  # Validate a pre-dumped request
  stubgen validate --schema addressbook.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(validateSchema, cfg.ResolvedSchema())
		if schemaPath == "" {
			return cli.ConfigError("--schema is required", nil)
		}

		tool := &capnptool.Tool{Bin: cfg.Capnp.Bin, ImportPaths: cfg.Capnp.ImportPaths}
		mods, err := loadModules(cmd, tool, schemaPath)
		if err != nil {
			return err
		}

		for _, m := range mods {
			label := m.Path
			if !m.Requested {
				label += " (imported)"
			}
			pterm.Info.Printfln("%s", label)
			for _, n := range m.NestedOf(m.Root) {
				fmt.Printf("  - %s %s\n", kindLabel(n), n.ShortName())
			}
		}
		if !quiet {
			pterm.Success.Printfln("Schema is valid (%d files)", len(mods))
		}
		return nil
	},
}

func kindLabel(n *schema.Node) string {
	switch n.Which() {
	case schema.KindStruct:
		return "struct"
	case schema.KindEnum:
		return "enum"
	case schema.KindInterface:
		return "interface"
	case schema.KindConst:
		return "const"
	case schema.KindAnnotation:
		return "annotation"
	default:
		return "node"
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "schema file (.capnp) or request dump (.json/.yaml)")
}
