package mesh

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// SchemaInferencer merges a batch of JSON sample strings and infers a
// TypeScript-style structural type description (spec.md §4.D).
type SchemaInferencer struct{}

func NewSchemaInferencer() *SchemaInferencer {
	return &SchemaInferencer{}
}

// Merge parses every sample, silently dropping parse failures, then either
// flattens arrays by concatenation or merges objects by key-union with
// last-wins semantics, depending on the shape of the first parsed value.
func (s *SchemaInferencer) Merge(samples []string) any {
	values := make([]any, 0, len(samples))
	for _, sample := range samples {
		var v any
		if err := json.Unmarshal([]byte(sample), &v); err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil
	}
	if _, ok := values[0].([]any); ok {
		return mergeArraySamples(values)
	}
	return mergeObjectSamples(values)
}

func mergeObjectSamples(values []any) any {
	result := make(map[string]any)
	for _, v := range values {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for k, val := range obj {
			result[k] = val
		}
	}
	return result
}

func mergeArraySamples(values []any) any {
	result := make([]any, 0, len(values))
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			result = append(result, arr...)
		} else {
			result = append(result, v)
		}
	}
	return result
}

// Infer is the convenience entry point used by the Realtime Aggregator: it
// merges the samples and returns both the re-serialized merged JSON and the
// inferred type schema in one call.
func (s *SchemaInferencer) Infer(samples []string) (mergedJSON string, schema string) {
	merged := s.Merge(samples)
	if merged == nil {
		return "", ""
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return "", ""
	}
	return string(raw), s.ToTypes(merged)
}

// ToTypes renders value as a Root type block plus every referenced named
// object type, sorted alphabetically by name. If value is an array, the
// output is prefixed with "type Root = Array<ArrayItem>;" and the inner
// inference uses root name ArrayItem.
func (s *SchemaInferencer) ToTypes(value any) string {
	_, isArray := value.([]any)
	rootName := "Root"
	if isArray {
		rootName = "ArrayItem"
	}

	addons := make(map[string]string) // object body -> winning candidate name
	typeOf(rootName, value, addons)

	var root string
	blockName := make(map[string]string)
	blocks := make([]string, 0, len(addons))
	for body, name := range addons {
		block := fmt.Sprintf("type %s = {\n%s\n};", name, body)
		if name == "Root" {
			root = block
			continue
		}
		blockName[block] = name
		blocks = append(blocks, block)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blockName[blocks[i]] < blockName[blocks[j]]
	})

	schema := root + "\n" + strings.Join(blocks, "\n")
	if isArray {
		return "type Root = Array<ArrayItem>;" + schema
	}
	return schema
}

// typeOf recursively assigns a TypeScript-style type name to obj. The
// second return value is false for null (rendered by the caller as
// "<field>?: unknown"). Object shapes are deduplicated by their exact body
// string in addons, where the shorter of any two colliding candidate names
// wins — matching exactly, and this includes not retroactively updating a
// sibling field's already-resolved reference when a later field introduces
// a shorter name for the same shape.
func typeOf(name string, obj any, addons map[string]string) (string, bool) {
	switch v := obj.(type) {
	case nil:
		return "", false
	case bool:
		return "boolean", true
	case float64:
		return "number", true
	case string:
		return "string", true
	case []any:
		if len(v) > 0 {
			if ty, ok := typeOf(name, v[0], addons); ok {
				return ty + "[]", true
			}
		}
		return "unknown[]", true
	case map[string]any:
		candidate := upperFirst(name)

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			if ty, ok := typeOf(k, v[k], addons); ok {
				lines = append(lines, fmt.Sprintf("  %s: %s;", k, ty))
			} else {
				lines = append(lines, fmt.Sprintf("  %s?: unknown;", k))
			}
		}
		body := strings.Join(lines, "\n")

		winner, exists := addons[body]
		if !exists {
			addons[body] = candidate
			winner = candidate
		} else if len(candidate) < len(winner) {
			addons[body] = candidate
			winner = candidate
		}
		return winner, true
	default:
		return "", false
	}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
