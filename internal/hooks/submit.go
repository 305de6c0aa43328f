package hooks

import "strings"

// signalTriggers are phrases that indicate the user wants something remembered.
var signalTriggers = []string{
	"remember this", "don't forget",
	"always use", "never use", "always do", "never do",
	"architecture decision", "we decided",
	"this pattern", "the trick is",
	"bug was", "root cause", "the fix was",
}

// hasSignal returns true if the prompt contains any signal trigger phrase.
func hasSignal(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, trigger := range signalTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

func (h *Handler) handleSubmit(input *HookInput) error {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil
	}
	if err := h.ingest(TypePrompt, input.Prompt, input, nil); err != nil {
		return err
	}
	if hasSignal(input.Prompt) {
		return h.ingest(TypeSignal, input.Prompt, input, nil)
	}
	return nil
}
