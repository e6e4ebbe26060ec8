package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaiseInvariant(t *testing.T) {
	invariantsMetric.Reset() // Reset the metric to ensure a clean state for the test
	RaiseInvariant("invariant", "test", "This is a test invariant violation")
	RaiseInvariant("invariant", "test", "This is a test invariant violation", "slot", 3)
	assert.Equal(t, 2, GetMetricValue("invariant" /*module*/, "test" /*invariantType*/))
	assert.Equal(t, 0, GetMetricValue("invariant" /*module*/, "other" /*invariantType*/))
}
