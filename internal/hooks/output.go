package hooks

import "encoding/json"

// SessionStartOutput is the JSON structure the agent expects on stdout
// from the SessionStart hook.
type SessionStartOutput struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

func (h *Handler) writeStart(context string) error {
	out := SessionStartOutput{}
	out.HookSpecificOutput.HookEventName = "SessionStart"
	out.HookSpecificOutput.AdditionalContext = context
	return json.NewEncoder(h.out()).Encode(out)
}

// WriteEmptyStart writes a SessionStart document with no context. It needs
// no Store, for when the store cannot be opened.
func (h *Handler) WriteEmptyStart() error {
	return h.writeStart("")
}
