package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the stubgen configuration from stubgen.yaml.
type Config struct {
	// Top-level convenience fields
	Schema     string `mapstructure:"schema"`
	SchemasDir string `mapstructure:"schemas_dir"`

	// Compiler invocation settings
	Capnp CapnpConfig `mapstructure:"capnp"`

	// Per-command configuration
	Generate GenerateConfig `mapstructure:"generate"`
}

// CapnpConfig holds settings for invoking the capnp compiler.
type CapnpConfig struct {
	// Bin is the capnp executable. Defaults to "capnp" on PATH.
	Bin string `mapstructure:"bin"`
	// ImportPaths are extra -I search directories for schema imports.
	ImportPaths []string `mapstructure:"import_paths"`
}

// GenerateConfig holds stub generation settings.
type GenerateConfig struct {
	Schema          string   `mapstructure:"schema"`
	Output          string   `mapstructure:"output"`
	Prefix          string   `mapstructure:"prefix"`
	Exclude         []string `mapstructure:"exclude"`
	Recursive       bool     `mapstructure:"recursive"`
	IncludeImported bool     `mapstructure:"include_imported"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("STUBGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Top-level defaults
	v.SetDefault("schema", "")
	v.SetDefault("schemas_dir", "")

	// Compiler defaults
	v.SetDefault("capnp.bin", "capnp")
	v.SetDefault("capnp.import_paths", []string{})

	// Generate defaults
	v.SetDefault("generate.schema", "")
	v.SetDefault("generate.output", "")
	v.SetDefault("generate.prefix", "")
	v.SetDefault("generate.exclude", []string{})
	v.SetDefault("generate.recursive", false)
	v.SetDefault("generate.include_imported", false)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for stubgen.yaml or stubgen.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		// Try stubgen.yaml then stubgen.yml
		for _, name := range []string{"stubgen.yaml", "stubgen.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// ResolvedSchema returns the effective schema path for generation, with
// generate.schema taking precedence over top-level schema.
func (c *Config) ResolvedSchema() string {
	if c.Generate.Schema != "" {
		return c.Generate.Schema
	}
	return c.Schema
}

// ResolvedSchemasDir returns the effective schemas directory for commands
// that operate on a whole tree of schema files.
func (c *Config) ResolvedSchemasDir(flagDir string) string {
	if flagDir != "" {
		return flagDir
	}
	return c.SchemasDir
}
