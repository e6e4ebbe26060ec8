package utils

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTestFlags(t *testing.T) {
	t.Run("scoped", func(t *testing.T) {
		SetTestFlags(t, map[string]string{"log_level": "debug", "log_handler_type": "text"})
		assert.Equal(t, "debug", *logLevelFlag)
		assert.Equal(t, "text", *handlerTypeFlag)
	})
	// Cleanup of the subtest restored the defaults.
	assert.Equal(t, flag.Lookup("log_level").DefValue, *logLevelFlag)
	assert.Equal(t, flag.Lookup("log_handler_type").DefValue, *handlerTypeFlag)
}
