package slab

import (
	"bytes"
	"testing"

	"github.com/nobletooth/slablist/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compareInts compares two encoded integers.
func compareInts(a, b []byte) int {
	x, y := decode(a), decode(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func TestList_Find(t *testing.T) {
	l := newIntList(t, 4)
	pushBackAll(t, l, 5, 7, 9, 7)

	for _, testCase := range []struct {
		name        string
		target      int
		expectedPos int
		expectedErr error
	}{
		{name: "head", target: 5, expectedPos: 0},
		{name: "first of duplicates", target: 7, expectedPos: 1},
		{name: "middle", target: 9, expectedPos: 2},
		{name: "missing", target: 8, expectedErr: ErrNotFound},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			for variant, find := range map[string]func() (View, error){
				"find":    func() (View, error) { return l.Find(encode(testCase.target), compareInts) },
				"through": func() (View, error) { return l.FindThrough(encode(testCase.target), bytes.Equal) },
				"through compare": func() (View, error) {
					return l.FindThrough(encode(testCase.target), utils.EqualFromCompare[[]byte](compareInts))
				},
			} {
				view, err := find()
				if testCase.expectedErr != nil {
					assert.ErrorIs(t, err, testCase.expectedErr, variant)
					continue
				}
				require.NoError(t, err, variant)
				assert.Equal(t, testCase.expectedPos, view.Position(), variant)
				assert.Equal(t, testCase.target, decode(view.MustBytes()), "%s returns the match, not the head", variant)
			}
		})
	}
}

func TestList_FindEmptyAndNilArguments(t *testing.T) {
	l := newIntList(t, 4)
	_, err := l.Find(encode(1), compareInts)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.FindThrough(encode(1), bytes.Equal)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Find(nil, compareInts)
	assert.ErrorIs(t, err, ErrNilArgument)
	_, err = l.Find(encode(1), nil)
	assert.ErrorIs(t, err, ErrNilArgument)
	_, err = l.FindThrough(encode(1), nil)
	assert.ErrorIs(t, err, ErrNilArgument)
}

func TestList_FindViewGoesStale(t *testing.T) {
	l := newIntList(t, 4)
	pushBackAll(t, l, 1, 2)
	view, err := l.Find(encode(2), compareInts)
	require.NoError(t, err)
	require.NoError(t, l.PopBack(nil))
	_, err = view.Bytes()
	assert.ErrorIs(t, err, ErrStaleView, "The matched slot was recycled")
}
