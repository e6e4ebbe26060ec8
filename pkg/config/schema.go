package config

import (
	_ "embed"
	"flag"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYaml []byte

// skippedSchemaFlags is the list of command line flags on which the schema check is disabled.
var skippedSchemaFlags = []string{"print_version", "config_file"}

// loadSchema returns the config entry path -> flag name mapping declared in schema.yaml.
func loadSchema() (map[ /*entryPath*/ string] /*flagName*/ string, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(schemaYaml, &document); err != nil {
		return nil, fmt.Errorf("failed to parse config schema: %w", err)
	}
	schema := make(map[string]string)
	flagPaths := make(map[string]string)
	err := flattenYaml("" /*prefix*/, &document, func(path string, leaf *yaml.Node) error {
		if leaf.Value == "" {
			return fmt.Errorf("config schema entry '%s' has no flag name", path)
		}
		if other, exists := flagPaths[leaf.Value]; exists {
			return fmt.Errorf("duplicate flag name '%s' in config schema: '%s' and '%s'", leaf.Value, other, path)
		}
		flagPaths[leaf.Value] = path
		schema[path] = leaf.Value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// CollectUnregisteredFlags collects all flags that haven't been declared in the config schema.
// An error exists in the results corresponding to each unregistered flag.
func CollectUnregisteredFlags() []error {
	schema, err := loadSchema()
	if err != nil {
		return []error{err}
	}
	definedFlags := make(map[string]struct{}, len(schema))
	for _, flagName := range schema {
		definedFlags[flagName] = struct{}{}
	}

	errs := make([]error, 0)
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedSchemaFlags, f.Name) {
			return
		}
		if _, flagHasConfigEntry := definedFlags[f.Name]; !flagHasConfigEntry {
			errs = append(errs, fmt.Errorf("flag '%s' has not been declared in the config schema", f.Name))
		}
	})
	return errs
}
