package composition

import "strings"

// lookupPath resolves a dotted path against nested map[string]any data.
func lookupPath(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = data
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// pathRoot returns the first segment of a dotted path.
func pathRoot(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// stripRoot removes the first segment of a dotted path. It returns the
// empty string when the path has a single segment.
func stripRoot(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return ""
}

// mergeParams overlays each map in order, later maps winning. The result
// is always a fresh map.
func mergeParams(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
