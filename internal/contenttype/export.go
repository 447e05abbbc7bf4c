package contenttype

import (
	"fmt"
	"sort"
)

// Schema renders a family's variants as a JSON-Schema document (draft-07
// style, oneOf over the kinds). Used by client form tooling; the mutation
// engine itself only calls Validate.
func Schema(family Family) (map[string]any, error) {
	variants, ok := families[family]
	if !ok {
		return nil, fmt.Errorf("unknown content family %q", family)
	}

	kinds := make([]string, 0, len(variants))
	for kind := range variants {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	oneOf := make([]any, 0, len(kinds))
	for _, kind := range kinds {
		spec := variants[kind]
		properties := map[string]any{
			"kind": map[string]any{"const": kind},
		}
		required := []any{"kind"}
		for _, f := range spec.Required {
			properties[f.Name] = map[string]any{"type": jsonType(f.Type)}
			required = append(required, f.Name)
		}
		for _, f := range spec.Optional {
			properties[f.Name] = map[string]any{"type": jsonType(f.Type)}
		}
		oneOf = append(oneOf, map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		})
	}

	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   string(family),
		"oneOf":   oneOf,
	}, nil
}

// Families lists every known family name, sorted.
func Families() []string {
	names := make([]string, 0, len(families))
	for family := range families {
		names = append(names, string(family))
	}
	sort.Strings(names)
	return names
}

func jsonType(t fieldType) string {
	if t == fieldNumber {
		return "number"
	}
	return "string"
}
