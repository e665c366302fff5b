package extraction

import (
	"strings"
)

// cleanModelJSON strips markdown fences and any text around the outermost
// JSON object in a free-text model reply.
func cleanModelJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", false
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", false
	}
	return text[startIdx : endIdx+1], true
}
