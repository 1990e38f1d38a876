package transform

import "fmt"

// Step params arrive from JSON or YAML decoding, so list and map values show
// up as []any and map[string]any. These helpers coerce them without panicking
// on malformed input; a missing or mistyped param degrades to its zero shape
// and the operator compiles to the closest safe statement.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		switch s := v.(type) {
		case string:
			return s
		case fmt.Stringer:
			return s.String()
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func stringSliceParam(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	default:
		return nil
	}
}

func stringMapParam(params map[string]any, key string) map[string]string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			if s, ok := item.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprintf("%v", item)
			}
		}
		return out
	default:
		return nil
	}
}
