package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/capnpy/stubgen/internal/capnptool"
	"github.com/capnpy/stubgen/internal/cli"
	"github.com/capnpy/stubgen/internal/discovery"
	"github.com/capnpy/stubgen/pkg/schema"
	"github.com/capnpy/stubgen/pkg/stubgen"
)

var (
	genSchema          string
	genSchemasDir      string
	genOutput          string
	genPrefix          string
	genImportPaths     []string
	genExclude         []string
	genRecursive       bool
	genIncludeImported bool
	genCapnpBin        string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Python type stubs",
	Long: `Generate .pyi type stubs, loader modules and a py.typed marker.

The schema argument is either a .capnp source file (compiled on the fly via
the capnp executable) or a CodeGeneratorRequest dump in JSON or YAML. With
--schemas-dir every .capnp file in the directory is processed.`,
	Example: `  # Generate stubs for one schema next to it
  stubgen generate --schema schemas/addressbook.capnp

  # Generate into a stubs directory, including imported files
  stubgen generate --schema api.capnp --output stubs/ --include-imported

  # Generate from a pre-dumped request, no capnp executable needed
  stubgen generate --schema addressbook.json --output stubs/

  # Process a whole schema tree
  stubgen generate --schemas-dir schemas/ --recursive --output stubs/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolve values: flags > config > defaults
		schemaPath := resolveString(genSchema, cfg.ResolvedSchema())
		schemasDir := cfg.ResolvedSchemasDir(genSchemasDir)
		output := resolveString(genOutput, cfg.Generate.Output)
		prefix := resolveString(genPrefix, cfg.Generate.Prefix)
		importPaths := resolveStrings(genImportPaths, cfg.Capnp.ImportPaths)
		exclude := resolveStrings(genExclude, cfg.Generate.Exclude)
		recursive := resolveBool(genRecursive, cfg.Generate.Recursive)
		includeImported := resolveBool(genIncludeImported, cfg.Generate.IncludeImported)
		capnpBin := resolveString(genCapnpBin, cfg.Capnp.Bin)

		var inputs []string
		switch {
		case schemaPath != "":
			if _, err := os.Stat(schemaPath); err != nil {
				return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
			}
			inputs = []string{schemaPath}
		case schemasDir != "":
			found, err := discovery.FindSchemas(schemasDir, discovery.Options{
				Recursive: recursive,
				Exclude:   exclude,
			})
			if err != nil {
				return cli.GeneralError("discovering schemas", err)
			}
			if len(found) == 0 {
				return cli.ConfigError(fmt.Sprintf("no .capnp files under %s", schemasDir), nil)
			}
			inputs = found
		default:
			return cli.ConfigError("--schema or --schemas-dir is required", nil)
		}

		tool := &capnptool.Tool{Bin: capnpBin, ImportPaths: importPaths}

		for _, input := range inputs {
			mods, err := loadModules(cmd, tool, input)
			if err != nil {
				return err
			}

			files, err := stubgen.Generate(mods, &stubgen.Options{
				OutputDir:       output,
				NamePrefix:      prefix,
				ImportPaths:     importPaths,
				IncludeImported: includeImported,
				Logger:          logger,
			})
			if err != nil {
				return cli.GeneralError(fmt.Sprintf("generating stubs for %s", input), err)
			}
			if err := stubgen.Write(files); err != nil {
				return cli.GeneralError("writing output", err)
			}

			if !quiet {
				for _, f := range files {
					pterm.Success.Printfln("Generated %s", f.Path)
				}
			}
		}
		return nil
	},
}

// loadModules turns one input path into parsed modules, compiling .capnp
// sources through the capnp executable and reading dumps directly.
func loadModules(cmd *cobra.Command, tool *capnptool.Tool, input string) ([]*schema.Module, error) {
	if filepath.Ext(input) != ".capnp" {
		mods, err := schema.LoadFile(input)
		if err != nil {
			return nil, cli.SchemaParseError(fmt.Sprintf("loading %s", input), err)
		}
		return mods, nil
	}

	if !tool.Available() {
		return nil, cli.CompilerError(
			fmt.Sprintf("capnp executable %q not found", tool.Bin),
			fmt.Errorf("install capnproto or pass a request dump instead of %s", input),
		)
	}
	data, err := tool.RequestJSON(cmd.Context(), input)
	if err != nil {
		return nil, cli.CompilerError(fmt.Sprintf("compiling %s", input), err)
	}
	mods, err := schema.Load(data)
	if err != nil {
		return nil, cli.SchemaParseError(fmt.Sprintf("decoding request for %s", input), err)
	}
	return mods, nil
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genSchema, "schema", "", "schema file (.capnp) or request dump (.json/.yaml)")
	f.StringVar(&genSchemasDir, "schemas-dir", "", "directory of .capnp files to process")
	f.StringVar(&genOutput, "output", "", "output directory (default: alongside input)")
	f.StringVar(&genPrefix, "prefix", "", "output base name override (single schema only)")
	f.StringArrayVarP(&genImportPaths, "import-path", "I", nil, "extra schema import directory (repeatable)")
	f.StringArrayVar(&genExclude, "exclude", nil, "glob pattern to skip during discovery (repeatable)")
	f.BoolVar(&genRecursive, "recursive", false, "descend into subdirectories with --schemas-dir")
	f.BoolVar(&genIncludeImported, "include-imported", false, "also generate stubs for imported schema files")
	f.StringVar(&genCapnpBin, "capnp-bin", "", "capnp executable (default: capnp)")
}
