package raffle

// copyMeta deep-copies a metadata map. Nested maps and slices are copied;
// all other values are shared (the supported value domain is the JSON one,
// where scalars are immutable).
func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = copyMetaValue(v)
	}
	return out
}

func copyMetaValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMeta(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyMetaValue(elem)
		}
		return out
	default:
		return v
	}
}
