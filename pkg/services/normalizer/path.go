package normalizer

import (
	"strings"
)

// lookup resolves a dotted path against a field map. A segment ending in
// "[]" fans out over list elements, so a path can yield several values.
func lookup(fields map[string]any, path string) []any {
	current := []any{fields}
	for _, segment := range strings.Split(path, ".") {
		fanOut := strings.HasSuffix(segment, "[]")
		name := strings.TrimSuffix(segment, "[]")

		var next []any
		for _, node := range current {
			m, ok := node.(map[string]any)
			if !ok {
				continue
			}
			v, ok := m[name]
			if !ok || v == nil {
				continue
			}
			if !fanOut {
				next = append(next, v)
				continue
			}
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if item != nil {
						next = append(next, item)
					}
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func rootField(path string) string {
	head, _, _ := strings.Cut(path, ".")
	return strings.TrimSuffix(head, "[]")
}

func firstString(fields map[string]any, paths ...string) string {
	for _, p := range paths {
		for _, v := range lookup(fields, p) {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
