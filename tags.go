package roadgraph

import "bytes"

// highwayKey is the exact ASCII bytes a way's tag key must match for the
// way to be routable. No case folding, no value inspection.
var highwayKey = []byte("highway")

// isRoutable reports whether a way carries any tag whose key resolves to
// the literal bytes "highway" in table. A string-table entry shorter than
// len(highwayKey) or out of range simply fails the comparison rather than
// erroring, since []byte comparison never depends on valid UTF-8.
func isRoutable(tags TagList, table StringTable) bool {
	for _, t := range tags {
		if t.KeyIdx < 0 || int(t.KeyIdx) >= len(table) {
			continue
		}
		if bytes.Equal(table[t.KeyIdx], highwayKey) {
			return true
		}
	}
	return false
}
