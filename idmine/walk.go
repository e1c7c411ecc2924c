// CLAUDE:SUMMARY Bounded typed visitor over untyped nested structures (framework state dumps).
package idmine

import "sort"

// Walk budgets. Framework state dumps are adversarially deep and cyclic
// once serialized loosely; the visitor stops at these ceilings and the
// miner works with whatever was seen.
const (
	maxWalkDepth = 8
	maxWalkNodes = 2000
)

// WalkState feeds every string reachable in a decoded framework-state
// value into the miner, carrying the nearest map key as the context hint.
// The walk is total: it visits only strings, slices, and string-keyed
// maps, within a fixed depth and node budget, and never fails.
func (m *Miner) WalkState(v any) {
	budget := maxWalkNodes
	m.walk(v, "", 0, &budget)
}

func (m *Miner) walk(v any, keyHint string, depth int, budget *int) {
	if depth > maxWalkDepth || *budget <= 0 {
		return
	}
	*budget--

	switch val := v.(type) {
	case string:
		m.Scan(val, keyHint)
	case []any:
		for _, item := range val {
			m.walk(item, keyHint, depth+1, budget)
		}
	case map[string]any:
		// Sorted keys keep discovery order stable across runs; map
		// iteration order would reshuffle candidate URLs.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.walk(val[k], k, depth+1, budget)
		}
	}
}
