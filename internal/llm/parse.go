package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRecordArray decodes the raw payload text returned by the extraction
// service into loosely-typed record objects. Parsing is two-phase: a direct
// decode of the whole payload, then a fallback that locates an embedded
// array-like substring (models often wrap the array in prose or fences).
// If both phases fail the payload is a hard failure.
func ParseRecordArray(payload string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(stripFences(payload))

	var items []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items, nil
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &items); err == nil {
			return items, nil
		}
	}

	return nil, fmt.Errorf("no parseable record array in payload (%d bytes)", len(payload))
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return t
}
