package activity

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

const previewWidth = 120

const fallbackSearchLabel = "searching the web"

// Tool call payloads are not guaranteed to be strict JSON; some agents
// emit python-style dicts with single quotes. The regexes pick the
// field out of either form.
var (
	queryPattern = regexp.MustCompile(`["']query["']\s*:\s*["']([^"']+)["']`)
	taskPattern  = regexp.MustCompile(`["']task["']\s*:\s*["']([^"']+)["']`)
)

// extractSearchQuery pulls the human-readable query out of a web_search
// tool call body, falling back to a generic label.
func extractSearchQuery(message string) string {
	if query := jsonStringField(message, "query"); query != "" {
		return truncatePreview(query)
	}
	if m := queryPattern.FindStringSubmatch(message); m != nil {
		return truncatePreview(strings.TrimSpace(m[1]))
	}
	return fallbackSearchLabel
}

// extractTaskText pulls the delegated task description out of a
// delegate_task tool call body.
func extractTaskText(message string) string {
	if task := jsonStringField(message, "task"); task != "" {
		return truncatePreview(task)
	}
	if m := taskPattern.FindStringSubmatch(message); m != nil {
		return truncatePreview(strings.TrimSpace(m[1]))
	}
	text := strings.TrimSpace(message)
	if text == "" {
		return "delegated task"
	}
	return truncatePreview(text)
}

// extractOutputPreview opportunistically parses a tool_result body as
// JSON and prefers its output field; otherwise the raw text is used.
func extractOutputPreview(message string) string {
	for _, field := range []string{"output", "result", "summary"} {
		if value := jsonStringField(message, field); value != "" {
			return truncatePreview(value)
		}
	}
	return truncatePreview(strings.TrimSpace(message))
}

func jsonStringField(message, field string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

func truncatePreview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(text, previewWidth, "…")
}
