package hooks

import (
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/logging"
	"github.com/lazypower/almanac/internal/transcript"
)

func (h *Handler) handleStop(input *HookInput) error {
	// A stop hook that is itself continuing a stop would record the same turn twice.
	if input.StopHookActive {
		return nil
	}
	content := "turn complete"
	if input.LastAssistantMessage != "" {
		content += ": " + truncate(input.LastAssistantMessage, maxToolInput)
	}
	return h.ingest(TypeSession, content, input, nil)
}

// handleEnd records the end of a session, with a digest of the transcript
// when one is readable.
func (h *Handler) handleEnd(input *HookInput) error {
	content := "session ended"
	if input.Reason != "" {
		content += ": " + input.Reason
	}
	extra := map[string]any{"reason": input.Reason}

	if input.TranscriptPath != "" {
		turns, err := transcript.ReadFile(input.TranscriptPath)
		if err != nil {
			logging.OrNop(h.Log).Warn("transcript unreadable", zap.String("path", input.TranscriptPath), zap.Error(err))
		} else {
			d := transcript.Summarize(turns)
			content += " (" + d.String() + ")"
			extra["prompts"] = d.Prompts
			extra["replies"] = d.Replies
			if d.Opening != "" {
				extra["opening"] = d.Opening
			}
		}
	}
	return h.ingest(TypeSession, content, input, extra)
}
