// Package util holds serialization helpers shared by credentials and
// presentations.
package util

import (
	"fmt"
)

// SerializeTypes renders a type list: a single type as a string, several as
// an array.
func SerializeTypes(types []string) any {
	switch len(types) {
	case 0:
		return nil
	case 1:
		return types[0]
	default:
		return MapSlice(types, func(t string) any { return t })
	}
}

// SerializeOne renders items as one object when there is exactly one,
// otherwise as an array.
func SerializeOne[T any](items []T, fn func(T) map[string]any) any {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return fn(items[0])
	default:
		return MapSlice(items, func(item T) any { return fn(item) })
	}
}

// MapSlice transforms a slice of type T to a slice of type U using a mapping function.
func MapSlice[T any, U any](slice []T, mapFn func(T) U) []U {
	result := make([]U, 0, len(slice))
	for _, v := range slice {
		result = append(result, mapFn(v))
	}
	return result
}

// SerializeContexts validates JSON-LD context entries: non-empty strings or
// flat objects without a nested @context.
func SerializeContexts(contexts []any) ([]any, error) {
	validated := make([]any, 0, len(contexts))
	for i, ctx := range contexts {
		switch v := ctx.(type) {
		case string:
			if v == "" {
				return nil, fmt.Errorf("failed to validate context: context string at index %d is empty", i)
			}
		case map[string]any:
			if _, nested := v["@context"]; nested {
				return nil, fmt.Errorf("failed to validate context: context object at index %d must not contain nested @context", i)
			}
			for key := range v {
				if key == "" {
					return nil, fmt.Errorf("failed to validate context: context object at index %d has empty key", i)
				}
			}
		default:
			return nil, fmt.Errorf("failed to validate context: invalid context entry at index %d: must be string or map, got %T", i, v)
		}
		validated = append(validated, ctx)
	}
	return validated, nil
}

// ParseContexts reads an @context value, a single entry or an array.
func ParseContexts(raw any) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	return SerializeContexts(ToArray(raw))
}

// ParseStrings reads a value that is either a string or an array of strings.
func ParseStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value: %T", raw)
	}
}

// ToArray ensures a value is represented as an array.
func ToArray(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// ShallowCopyObj copies the top level of obj.
func ShallowCopyObj(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}
