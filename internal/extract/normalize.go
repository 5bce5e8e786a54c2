package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecodeModelJSON parses a model response into a single JSON object. It
// strips markdown code fences and, when the model returns a JSON array,
// takes the first element. This is the only place response shape tolerance
// lives; every strategy funnels through it.
func DecodeModelJSON(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("model response was empty")
	}

	var asObject map[string]any
	if err := json.Unmarshal([]byte(cleaned), &asObject); err == nil {
		return asObject, nil
	}

	var asList []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &asList); err == nil {
		if len(asList) == 0 {
			return nil, fmt.Errorf("model returned an empty list")
		}
		return asList[0], nil
	}

	return nil, fmt.Errorf("model response is not a JSON object or list of objects")
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// stringField reads a string value tolerantly: numbers and booleans are
// stringified, nil and placeholders become "".
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// boolField reads a boolean tolerantly, accepting "true"/"yes" strings.
func boolField(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		return lower == "true" || lower == "yes"
	default:
		return false
	}
}

// stringListField reads a list of strings, stringifying scalar entries and
// dropping anything else.
func stringListField(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	var out []string
	for _, item := range items {
		if s, isStr := item.(string); isStr && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
