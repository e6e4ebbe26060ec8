package slab

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Dump(t *testing.T) {
	l := newIntList(t, 4, WithFormatter(func(payload []byte) string { return strconv.Itoa(decode(payload)) }))
	pushBackAll(t, l, 10, 20)

	var out bytes.Buffer
	require.NoError(t, l.Dump(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "slab list state=ready capacity=4 size=2 free=3 element_size=8 generation=2 violations=none", lines[0])
	assert.Equal(t, "busy:", lines[1])
	assert.Equal(t, "  sentinel slot=0 prev=2 next=1 busy=true", lines[2])
	assert.Equal(t, "  [0] slot=1 prev=0 next=2 busy=true 10", lines[3])
	assert.Equal(t, "  [1] slot=2 prev=1 next=0 busy=true 20", lines[4])
	assert.Equal(t, "free:", lines[5])
	assert.Equal(t, "  slot=3 prev=3 next=3 busy=false", lines[6])
}

func TestList_DumpDefaultFormatter(t *testing.T) {
	l, err := New(32, 2)
	require.NoError(t, err)
	require.NoError(t, l.PushBack(bytes.Repeat([]byte{0xab}, 32)))

	var out bytes.Buffer
	require.NoError(t, l.Dump(&out))
	assert.Contains(t, out.String(), strings.Repeat("ab", maxDumpedPayloadBytes)+"… #")
}

func TestList_DumpDestroyed(t *testing.T) {
	l := newIntList(t, 4)
	require.NoError(t, l.Destroy())
	var out bytes.Buffer
	require.NoError(t, l.Dump(&out))
	assert.Equal(t, "slab list state=destroyed capacity=0 size=0 free=0 element_size=8 generation=1 violations=state\n",
		out.String())
	assert.ErrorIs(t, l.DumpDot(&out), ErrDestroyed)
}

func TestList_DumpDot(t *testing.T) {
	l := newIntList(t, 4)
	pushBackAll(t, l, 1)

	var out bytes.Buffer
	require.NoError(t, l.DumpDot(&out))
	dot := out.String()
	assert.True(t, strings.HasPrefix(dot, "digraph slab {"))
	assert.Contains(t, dot, "s0 -> s1;")
	assert.Contains(t, dot, "s1 -> s0;")
	assert.Contains(t, dot, "s2 -> s3 [style=dashed color=gray];")
	assert.Contains(t, dot, "s3 -> s2 [style=dashed color=gray];")
}
