package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/nobletooth/slablist/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSchema(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)
	assert.Equal(t, "log_level", schema["log.level"])
	assert.Equal(t, "verify_list_operations", schema["list.verify_operations"])
	assert.Equal(t, "store_shard_count", schema["store.shard_count"])
	for path, flagName := range schema {
		assert.NotEmpty(t, flagName, "Schema entry %s has no flag", path)
	}
}

func TestCollectConfigFlags(t *testing.T) {
	for _, testCase := range []struct {
		name        string
		config      string
		expected    map[string]string
		expectedErr string
	}{
		{
			name:     "empty",
			config:   "",
			expected: map[string]string{},
		},
		{
			name: "nested entries",
			config: `
log:
  level: debug
list:
  initial_capacity: 32
  verify_operations: true
`,
			expected: map[string]string{
				"log_level":              "debug",
				"list_initial_capacity":  "32",
				"verify_list_operations": "true",
			},
		},
		{
			name: "anchor outside the schema",
			config: `
defaults: &level warn
log:
  level: *level
`,
			expectedErr: "unknown config entry 'defaults'",
		},
		{
			name:        "unknown entry",
			config:      "list:\n  colour: blue\n",
			expectedErr: "unknown config entry 'list.colour'",
		},
		{
			name:        "sequence",
			config:      "log:\n  level: [debug, info]\n",
			expectedErr: "'log.level' must be a mapping or a scalar",
		},
		{
			name:        "malformed",
			config:      "log: [",
			expectedErr: "failed to parse config",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			flags, err := collectConfigFlags([]byte(testCase.config))
			if testCase.expectedErr != "" {
				assert.ErrorContains(t, err, testCase.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, flags)
		})
	}
}

func TestApplyConfig(t *testing.T) {
	utils.SetTestFlags(t, map[string]string{"log_level": "info", "log_handler_type": "json"})

	config := []byte("log:\n  level: debug\n  handler_type: text\n")
	require.NoError(t, applyConfig(config))
	assert.Equal(t, "debug", flag.Lookup("log_level").Value.String())
	assert.Equal(t, "text", flag.Lookup("log_handler_type").Value.String())

	// The store flags live in another package and aren't registered in this binary.
	assert.ErrorContains(t, applyConfig([]byte("store:\n  shard_count: 4\n")), "store_shard_count")
}

func TestInitFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	utils.SetTestFlags(t, map[string]string{"config_file": path, "log_level": "info"})

	InitFlags()
	assert.Equal(t, "warn", flag.Lookup("log_level").Value.String())

	t.Run("missing file keeps defaults", func(t *testing.T) {
		utils.SetTestFlags(t, map[string]string{"config_file": filepath.Join(t.TempDir(), "absent.yaml"), "log_level": "error"})
		InitFlags()
		assert.Equal(t, "error", flag.Lookup("log_level").Value.String())
	})
}

func TestCollectUnregisteredFlags(t *testing.T) {

	if flag.Lookup("config_test_only_flag") == nil {
		flag.Int("config_test_only_flag", 0, "Registered only to be reported.")
	}
	errs := CollectUnregisteredFlags()
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "config_test_only_flag")
}
