// The dump renders both cycles slot by slot for debugging. Payloads go through the formatter given to New;
// without one they are printed as hex followed by an xxhash64 fingerprint, which keeps long payloads comparable
// at a glance.

package slab

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// maxDumpedPayloadBytes truncates the default hex rendering.
const maxDumpedPayloadBytes = 16

// formatPayload renders one payload for a dump.
func (l *List) formatPayload(payload []byte) string {
	if l.formatter != nil {
		return l.formatter(payload)
	}
	shown, suffix := payload, ""
	if len(shown) > maxDumpedPayloadBytes {
		shown, suffix = shown[:maxDumpedPayloadBytes], "…"
	}
	return fmt.Sprintf("%s%s #%016x", hex.EncodeToString(shown), suffix, xxhash.Sum64(payload))
}

// Dump writes the list header followed by the busy cycle in logical order and the free cycle.
// Walks are bounded by capacity, so a corrupted list still dumps.
func (l *List) Dump(w io.Writer) error {
	if l == nil {
		return ErrNilList
	}
	bw := bufio.NewWriter(w)
	violations := l.Verify()
	fmt.Fprintf(bw, "slab list state=%s capacity=%d size=%d free=%d element_size=%d generation=%d violations=%s\n",
		l.state, l.capacity, l.size, l.free, l.elementSize, l.generation, violations)
	if l.state != stateReady || violations.Has(ViolationBuffers) {
		return bw.Flush()
	}

	fmt.Fprintln(bw, "busy:")
	for slot, step := 0, 0; step <= l.capacity; step++ {
		n := l.nodes[slot]
		if slot == 0 {
			fmt.Fprintf(bw, "  sentinel slot=0 prev=%d next=%d busy=%t\n", n.prev, n.next, n.busy)
		} else {
			fmt.Fprintf(bw, "  [%d] slot=%d prev=%d next=%d busy=%t %s\n",
				step-1, slot, n.prev, n.next, n.busy, l.formatPayload(l.slot(slot)))
		}
		if n.next <= 0 || n.next >= l.capacity {
			break
		}
		slot = n.next
	}

	fmt.Fprintln(bw, "free:")
	if l.free > 0 && l.free < l.capacity {
		for slot, step := l.free, 0; step < l.capacity; step++ {
			n := l.nodes[slot]
			fmt.Fprintf(bw, "  slot=%d prev=%d next=%d busy=%t\n", slot, n.prev, n.next, n.busy)
			if n.next <= 0 || n.next >= l.capacity || n.next == l.free {
				break
			}
			slot = n.next
		}
	}
	return bw.Flush()
}

// DumpDot writes both cycles as a Graphviz digraph: solid edges for the busy cycle, dashed for the free cycle.
func (l *List) DumpDot(w io.Writer) error {
	if err := l.ready(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph slab {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=record];")
	for slot := range l.capacity {
		n := l.nodes[slot]
		switch {
		case slot == 0:
			fmt.Fprintf(bw, "  s0 [label=\"sentinel\" style=bold];\n")
		case n.busy:
			fmt.Fprintf(bw, "  s%d [label=\"%d | %s\"];\n", slot, slot, dotEscape(l.formatPayload(l.slot(slot))))
		default:
			fmt.Fprintf(bw, "  s%d [label=\"%d | free\" color=gray];\n", slot, slot)
		}
		if n.next < 0 || n.next >= l.capacity {
			continue
		}
		if n.busy {
			fmt.Fprintf(bw, "  s%d -> s%d;\n", slot, n.next)
		} else {
			fmt.Fprintf(bw, "  s%d -> s%d [style=dashed color=gray];\n", slot, n.next)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// dotEscape escapes characters that are special inside record labels.
func dotEscape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '{', '}', '|', '<', '>', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
