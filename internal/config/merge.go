package config

import "fmt"

// DeepMerge combines override on top of base and returns a new document.
// Mappings merge key by key, lists and scalars in override replace the base
// value. A nil override value is treated as absent. Neither input is modified.
func DeepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = cloneValue(v)
	}

	for k, ov := range override {
		if ov == nil {
			continue
		}
		if bv, ok := out[k]; ok {
			bm, baseIsMap := asMap(bv)
			om, overIsMap := asMap(ov)
			if baseIsMap && overIsMap {
				out[k] = DeepMerge(bm, om)
				continue
			}
		}
		out[k] = cloneValue(ov)
	}
	return out
}

// asMap normalizes the mapping types YAML decoders produce
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = cloneValue(val)
		}
		return out
	}
	switch l := v.(type) {
	case []any:
		out := make([]any, len(l))
		for i, val := range l {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), l...)
	default:
		return v
	}
}
