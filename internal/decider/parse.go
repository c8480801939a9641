package decider

import (
	"strings"

	"github.com/tidwall/gjson"

	"deskagent/internal/domain"
)

// ParseDecision interprets raw model output. Models are instructed to
// emit a JSON object {"tool": name, "args": {...}} when they want a
// tool; everything else is a plain reply.
//
// Malformed structured output is an expected condition, not an
// exceptional one, so this never fails: any text that does not parse
// strictly into the tool-request shape is returned verbatim as a reply.
func ParseDecision(raw string) domain.Decision {
	trimmed := strings.TrimSpace(raw)
	if !gjson.Valid(trimmed) {
		return domain.ReplyDecision(raw)
	}

	tool := gjson.Get(trimmed, "tool")
	if tool.Type != gjson.String || tool.Str == "" {
		return domain.ReplyDecision(raw)
	}

	args := map[string]any{}
	if parsed := gjson.Get(trimmed, "args"); parsed.IsObject() {
		if m, ok := parsed.Value().(map[string]any); ok {
			args = m
		}
	}

	return domain.ToolCallDecision(tool.Str, args)
}
