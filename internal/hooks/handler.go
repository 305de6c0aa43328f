package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/eventstore"
	"github.com/lazypower/almanac/internal/learning"
	"github.com/lazypower/almanac/internal/logging"
)

// Event types written by hooks.
const (
	TypeSession = "session"
	TypePrompt  = "prompt"
	TypeSignal  = "signal"
	TypeTool    = "tool"
)

// Store is the part of the event store hooks need. *eventstore.Store
// satisfies it.
type Store interface {
	Ingest(typ, content string, metadata map[string]any) (eventstore.Event, error)
	Learning() *learning.State
}

// Handler turns agent hook payloads into events.
type Handler struct {
	Store Store
	Out   io.Writer // SessionStart output; nil = os.Stdout
	Log   *zap.Logger
}

// Handle reads a HookInput from stdin and dispatches on event. The start
// event always produces output, even when stdin is empty or ingestion fails,
// so the agent is never left waiting.
func (h *Handler) Handle(event string, stdin io.Reader) error {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		if event == "start" {
			_ = h.writeStart("")
		}
		return fmt.Errorf("decode stdin: %w", err)
	}

	switch event {
	case "start":
		return h.handleStart(&input)
	case "submit":
		return h.handleSubmit(&input)
	case "tool":
		return h.handleTool(&input)
	case "stop":
		return h.handleStop(&input)
	case "end":
		return h.handleEnd(&input)
	}
	return fmt.Errorf("unknown hook event: %s", event)
}

func (h *Handler) ingest(typ, content string, input *HookInput, extra map[string]any) error {
	meta := input.metadata()
	for k, v := range extra {
		meta[k] = v
	}
	ev, err := h.Store.Ingest(typ, content, meta)
	if err != nil {
		return fmt.Errorf("ingest %s event: %w", typ, err)
	}
	logging.OrNop(h.Log).Debug("hook event ingested",
		zap.String("type", typ),
		zap.String("id", ev.ID),
		zap.String("session", input.SessionID))
	return nil
}

func (h *Handler) out() io.Writer {
	if h.Out == nil {
		return os.Stdout
	}
	return h.Out
}
