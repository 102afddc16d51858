package inventory

import (
	"math"
	"reflect"
)

// MetadataEqual reports whether two metadata maps are structurally equal:
// the same key set with pairwise equal values. Values compare type-strictly
// over the JSON domain (nil, bool, string, float64, []any, map[string]any):
// maps compare unordered by key, slices element-wise in order, and NaN
// equals NaN. Other value types fall back to deep equality.
func MetadataEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !metadataValueEqual(av, bv) {
			return false
		}
	}
	return true
}

func metadataValueEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && MetadataEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !metadataValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(av) && math.IsNaN(bv) {
			return true
		}
		return av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

// copyMetadata deep-copies nested maps and slices; scalar values are shared.
func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyMetadataValue(v)
	}
	return out
}

func copyMetadataValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMetadata(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyMetadataValue(item)
		}
		return out
	default:
		return v
	}
}
