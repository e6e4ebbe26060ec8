package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	keys := []string{"queue:1", "queue:2", "jobs:queue"}

	for _, testCase := range []struct {
		name     string
		glob     string
		expected []string
	}{
		{
			name:     "match all",
			glob:     "*",
			expected: []string{"queue:1", "queue:2", "jobs:queue"},
		},
		{
			name:     "match with ?",
			glob:     "queue:?",
			expected: []string{"queue:1", "queue:2"},
		},
		{
			name:     "match with * at the end",
			glob:     "queue*",
			expected: []string{"queue:1", "queue:2"},
		},
		{
			name:     "match with * at the beginning",
			glob:     "*queue",
			expected: []string{"jobs:queue"},
		},
		{
			name:     "match with multiple *",
			glob:     "*queue*",
			expected: []string{"queue:1", "queue:2", "jobs:queue"},
		},
		{
			name:     "no match",
			glob:     "nomatch",
			expected: nil,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			seq := MatchGlob(testCase.glob, slices.Values(keys))
			got := slices.Collect(seq)
			assert.Equal(t, testCase.expected, got)
		})
	}
}

func TestMatchGlob_StopsEarly(t *testing.T) {
	var got []string
	for key := range MatchGlob("*", slices.Values([]string{"a", "b", "c"})) {
		got = append(got, key)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}
