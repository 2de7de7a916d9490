package persistence

import (
	"fmt"
	"strings"
)

// SplitPath splits a dotted field path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// ExpandPaths turns dotted keys into nested maps, so {"a.b": 1} becomes {"a": {"b": 1}}.
func ExpandPaths(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for path, value := range fields {
		segments, err := SplitPath(path)
		if err != nil {
			return nil, err
		}
		setPath(out, segments, Clone(value))
	}
	return out, nil
}

// ApplyMerge merge-writes fields into doc in place and returns it.
// Nested maps are merged recursively; any other value replaces what was there.
func ApplyMerge(doc map[string]any, fields map[string]any) (map[string]any, error) {
	if doc == nil {
		doc = make(map[string]any)
	}
	expanded, err := ExpandPaths(fields)
	if err != nil {
		return nil, err
	}
	deepMerge(doc, expanded)
	return doc, nil
}

func setPath(doc map[string]any, segments []string, value any) {
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	last := segments[len(segments)-1]
	if existing, ok := current[last].(map[string]any); ok {
		if incoming, ok := value.(map[string]any); ok {
			deepMerge(existing, incoming)
			return
		}
	}
	current[last] = value
}

func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		incoming, isMap := value.(map[string]any)
		existing, hasMap := dst[key].(map[string]any)
		if isMap && hasMap {
			deepMerge(existing, incoming)
			continue
		}
		dst[key] = value
	}
}

// Clone deep-copies maps and slices so stored documents never alias caller data.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// CloneFields deep-copies a field map.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return Clone(fields).(map[string]any)
}
