package docstore

import (
	"fmt"
	"reflect"
	"strings"
)

// Patch operation kinds.
const (
	PatchSet         = "set"
	PatchIncrement   = "increment"
	PatchArrayUnion  = "arrayUnion"
	PatchArrayRemove = "arrayRemove"
)

// PatchOp is one dotted-path mutation. Increment requires a numeric value
// and treats a missing field as zero. ArrayUnion appends values not already
// present; ArrayRemove drops matching values.
type PatchOp struct {
	Path  string
	Op    string
	Value any
}

// SetField is shorthand for a PatchSet op.
func SetField(path string, value any) PatchOp {
	return PatchOp{Path: path, Op: PatchSet, Value: value}
}

// Increment is shorthand for a PatchIncrement op.
func Increment(path string, delta float64) PatchOp {
	return PatchOp{Path: path, Op: PatchIncrement, Value: delta}
}

// ApplyPatch returns a deep copy of doc with ops applied in order. The input
// document is never mutated; the storage layer persists the returned copy.
// It is a pure function so patch semantics stay testable independent of the
// backend (and identical across backends).
func ApplyPatch(doc Document, ops []PatchOp) (Document, error) {
	out := deepCopy(doc)
	if out == nil {
		out = Document{}
	}
	for _, op := range ops {
		if op.Path == "" {
			return nil, fmt.Errorf("patch: empty path")
		}
		switch op.Op {
		case PatchSet:
			setPath(out, op.Path, op.Value)
		case PatchIncrement:
			delta, ok := toFloat(op.Value)
			if !ok {
				return nil, fmt.Errorf("patch: increment %q: non-numeric delta %T", op.Path, op.Value)
			}
			cur, _ := toFloat(getPath(out, op.Path))
			setPath(out, op.Path, cur+delta)
		case PatchArrayUnion:
			arr := toSlice(getPath(out, op.Path))
			if !containsValue(arr, op.Value) {
				arr = append(arr, op.Value)
			}
			setPath(out, op.Path, arr)
		case PatchArrayRemove:
			arr := toSlice(getPath(out, op.Path))
			kept := make([]any, 0, len(arr))
			for _, v := range arr {
				if !reflect.DeepEqual(v, op.Value) {
					kept = append(kept, v)
				}
			}
			setPath(out, op.Path, kept)
		default:
			return nil, fmt.Errorf("patch: unknown op %q", op.Op)
		}
	}
	return out, nil
}

// getPath resolves a dotted path, returning nil when any segment is absent.
func getPath(doc Document, path string) any {
	segs := strings.Split(path, ".")
	var cur any = doc
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// setPath writes a dotted path, creating intermediate objects as needed.
// A non-object intermediate value is replaced by an object, matching the
// overwrite behavior of a merge write.
func setPath(doc Document, path string, value any) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

func deepCopy(v Document) Document {
	if v == nil {
		return nil
	}
	out := make(Document, len(v))
	for k, val := range v {
		out[k] = copyValue(val)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

func toSlice(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}
