package hooks

import "unicode/utf8"

// maxToolInput bounds how much of a tool's input is kept as event content.
const maxToolInput = 500

func (h *Handler) handleTool(input *HookInput) error {
	if input.ToolName == "" || input.ShouldSkipTool() {
		return nil
	}

	content := input.ToolName
	if len(input.ToolInput) > 0 {
		content += " " + truncate(string(input.ToolInput), maxToolInput)
	}
	extra := map[string]any{"tool_name": input.ToolName}
	if input.ToolUseID != "" {
		extra["tool_use_id"] = input.ToolUseID
	}
	return h.ingest(TypeTool, content, input, extra)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
