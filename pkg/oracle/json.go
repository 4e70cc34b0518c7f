package oracle

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeJSON parses a model completion into v. Models often wrap JSON
// in markdown fences or lead-in prose, so the payload is located by
// bracket matching before decoding.
func decodeJSON(text string, v any) error {
	payload := stripFences(text)
	if start := strings.IndexAny(payload, "[{"); start > 0 {
		payload = payload[start:]
	}
	if end := lastBracket(payload); end > 0 {
		payload = payload[:end+1]
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return eris.Wrapf(err, "oracle: decode completion %q", truncate(text, 200))
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func lastBracket(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ']' || s[i] == '}' {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
