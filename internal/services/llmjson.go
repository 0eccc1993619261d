package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseLLMJSON decodes a JSON object from a raw LLM response. Models
// routinely prepend or append prose despite instructions, so when the
// response does not start with "{" the substring between the first "{"
// and the last "}" is tried before giving up.
func ParseLLMJSON(raw string, contextInfo string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)

	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start != -1 && end != -1 && end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, GenerationParseError(fmt.Sprintf(
			"JSON parse error for %s: %v\nRaw:\n%s", contextInfo, err, excerpt(trimmed, 500)))
	}
	return payload, nil
}

// parseQuestionsPayload extracts the questions array of positional tuples
// from a parsed LLM payload.
func parseQuestionsPayload(payload map[string]any, contextInfo string) ([][]any, error) {
	rawQuestions, ok := payload["questions"].([]any)
	if !ok {
		return nil, GenerationParseError(fmt.Sprintf("`questions` missing for %s", contextInfo))
	}
	out := make([][]any, 0, len(rawQuestions))
	for _, rq := range rawQuestions {
		tuple, ok := rq.([]any)
		if !ok {
			return nil, GenerationParseError(fmt.Sprintf("question entry is not a list for %s", contextInfo))
		}
		out = append(out, tuple)
	}
	return out, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
