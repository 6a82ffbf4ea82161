package docstore

import (
	"sort"
	"strings"
)

// matchDoc reports whether a document satisfies every filter.
func matchDoc(doc Document, filters []Filter) bool {
	for _, f := range filters {
		val := getPath(doc, f.Field)
		switch f.Op {
		case OpEq:
			if compareValues(val, f.Value) != 0 {
				return false
			}
		case OpNeq:
			if compareValues(val, f.Value) == 0 {
				return false
			}
		case OpLt, OpLte, OpGt, OpGte:
			c, ok := orderedCompare(val, f.Value)
			if !ok {
				return false
			}
			switch f.Op {
			case OpLt:
				if c >= 0 {
					return false
				}
			case OpLte:
				if c > 0 {
					return false
				}
			case OpGt:
				if c <= 0 {
					return false
				}
			case OpGte:
				if c < 0 {
					return false
				}
			}
		case OpArrayContains:
			if !containsValue(toSlice(val), normalize(f.Value)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// sortSnapshots orders snapshots by the OrderBy field, then applies limit.
// Documents lacking the field sort first, matching the file backend's and
// the sqlite backend's shared behavior by construction.
func sortAndLimit(snaps []Snapshot, order *OrderBy, limit int) []Snapshot {
	if order != nil {
		sort.SliceStable(snaps, func(i, j int) bool {
			a := getPath(snaps[i].Data, order.Field)
			b := getPath(snaps[j].Data, order.Field)
			c, ok := orderedCompare(a, b)
			if !ok {
				c = strings.Compare(snaps[i].ID, snaps[j].ID)
			}
			if order.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps
}

// compareValues returns 0 when the two values are equal under JSON
// normalization (ints and floats compare numerically), non-zero otherwise.
func compareValues(a, b any) int {
	if c, ok := orderedCompare(a, b); ok {
		return c
	}
	an, bn := normalize(a), normalize(b)
	if an == nil && bn == nil {
		return 0
	}
	if ab, ok := an.(bool); ok {
		if bb, ok2 := bn.(bool); ok2 && ab == bb {
			return 0
		}
	}
	return 1
}

// orderedCompare compares two values of a mutually ordered kind
// (both numeric or both strings).
func orderedCompare(a, b any) (int, bool) {
	if af, ok := toFloat2(a); ok {
		if bf, ok2 := toFloat2(b); ok2 {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, ok := a.(string); ok {
		if bs, ok2 := b.(string); ok2 {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

// toFloat2 is toFloat without the nil-to-zero coercion used by increments.
func toFloat2(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return toFloat(v)
}

// normalize converts Go ints to float64 so filter values written as int
// literals compare equal to JSON-decoded numbers.
func normalize(v any) any {
	if f, ok := toFloat2(v); ok {
		return f
	}
	return v
}
