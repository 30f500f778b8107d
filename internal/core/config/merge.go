package config

import "sort"

// =============================================================================
// Deep Merge
// =============================================================================

// DeepMerge merges overlay into base and returns a new tree. Neither input
// is modified.
//
// Merge semantics (shared by every layer of resolution):
//   - Mappings merge key-by-key, recursively.
//   - Scalars and lists are replaced wholesale by the overlay value.
//     There is no implicit list concatenation.
//
// Example:
//
//	base := map[string]any{"fargate": map[string]any{"cpu": 256, "memory": 512}}
//	over := map[string]any{"fargate": map[string]any{"cpu": 1024}}
//	DeepMerge(base, over) // fargate: {cpu: 1024, memory: 512}
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range overlay {
		bm, baseIsMap := out[k].(map[string]any)
		om, overlayIsMap := v.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = DeepMerge(bm, om)
		} else {
			out[k] = copyValue(v)
		}
	}
	return out
}

// copyValue deep-copies maps and slices so merged trees never alias their
// sources. The defaults tree is an immutable base value: merging must
// produce a new value, never patch a shared one.
func copyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// sortedKeys returns the keys of a string-keyed map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
