// Slablist uses flags and a single config file for configuration.
// The config file is YAML; its layout is declared in schema.yaml, which maps each nested entry to the flag it sets.

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var configFilePath = flag.String("config_file", "config.yaml", "Path to the configuration file.")

// flattenYaml walks a YAML mapping and calls `visit` with the dotted path and scalar node of every leaf.
// Sequences are rejected since no flag takes a list.
func flattenYaml(prefix string, node *yaml.Node, visit func(path string, leaf *yaml.Node) error) error {
	switch node.Kind {
	case 0: // Empty document.
		return nil
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := flattenYaml(prefix, child, visit); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			path := key.Value
			if prefix != "" {
				path = prefix + "." + key.Value
			}
			if err := flattenYaml(path, value, visit); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		return visit(prefix, node)
	case yaml.AliasNode:
		return flattenYaml(prefix, node.Alias, visit)
	default:
		return fmt.Errorf("line %d: '%s' must be a mapping or a scalar", node.Line, prefix)
	}
}

// collectConfigFlags resolves every entry of the config document in `data` to its flag name and raw value.
func collectConfigFlags(data []byte) (map[ /*flagName*/ string] /*flagValue*/ string, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	flags := make(map[string]string)
	err = flattenYaml("" /*prefix*/, &document, func(path string, leaf *yaml.Node) error {
		flagName, known := schema[path]
		if !known {
			return fmt.Errorf("line %d: unknown config entry '%s'", leaf.Line, path)
		}
		if _, alreadyExists := flags[flagName]; alreadyExists {
			return fmt.Errorf("line %d: flag '%s' has multiple entries in config", leaf.Line, flagName)
		}
		flags[flagName] = leaf.Value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flags, nil
}

// applyConfig sets the flags named in the config document `data`.
func applyConfig(data []byte) error {
	configFlags, err := collectConfigFlags(data)
	if err != nil {
		return err
	}
	var errs []error
	for flagName, flagValue := range configFlags {
		if err := flag.Set(flagName, strings.TrimSpace(flagValue)); err != nil {
			errs = append(errs, fmt.Errorf("failed to set flag %s: %w", flagName, err))
		}
	}
	return errors.Join(errs...)
}

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}

	// Read config file.
	configFile, err := os.Open(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // If the config file cannot be opened, we skip loading and use default flag values.
		slog.Error("Failed to open config file.", "error", err)
		return
	}
	configBytes, err := io.ReadAll(configFile)
	_ = configFile.Close()
	if err != nil {
		slog.Error("Failed to read config file.", "error", err)
		return
	}

	// Apply configurations.
	if err := applyConfig(configBytes); err != nil {
		slog.Error("Failed to set flags from config file.", "path", *configFilePath, "error", err)
		return
	}
	slog.Info("Loaded config file.", "path", *configFilePath)
}
