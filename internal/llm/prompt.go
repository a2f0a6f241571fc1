package llm

import (
	"encoding/json"
	"strings"
)

const maxPromptText = 6000

// BuildSystemPrompt instructs the model to return only a JSON array of
// streaming-revenue records matching the record schema.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a royalty statement parser for music streaming catalogs.",
		"Extract every streaming-revenue line item you can find and return ONLY a JSON array of objects.",
		"Each object has: 'platform' (string, e.g. Spotify, Apple Music), 'streams' (non-negative integer), 'revenue' (non-negative number, statement currency), 'date' (ISO-8601, YYYY-MM-DD).",
		"Use numbers for 'streams' and 'revenue', never strings.",
		"If a field is not visible, omit it rather than guessing; never output null.",
		"If the document contains no streaming revenue data, return [].",
		"JSON Schema for each array element:\n" + mustJSON(BuildStreamRecordSchema()),
	}
	return strings.Join(parts, " ")
}

// BuildTextPrompt wraps recognized document text for the text-analysis path.
func BuildTextPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Document text (OCR output):\n")
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
	} else {
		b.WriteString(text)
	}
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
