package hooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/almanac/internal/eventstore"
	"github.com/lazypower/almanac/internal/learning"
)

func testHandler(t *testing.T) (*Handler, *eventstore.Store, *bytes.Buffer) {
	t.Helper()
	store, err := eventstore.Open(filepath.Join(t.TempDir(), "memory.json"), eventstore.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	var out bytes.Buffer
	return &Handler{Store: store, Out: &out}, store, &out
}

func events(t *testing.T, s *eventstore.Store) []eventstore.Event {
	t.Helper()
	evs, err := s.Events(eventstore.LongTerm)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	return evs
}

func TestHandleStartEmptyStore(t *testing.T) {
	h, store, out := testHandler(t)

	if err := h.Handle("start", strings.NewReader(`{"session_id":"s1","source":"startup"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var parsed SessionStartOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if parsed.HookSpecificOutput.HookEventName != "SessionStart" {
		t.Errorf("hookEventName = %q, want SessionStart", parsed.HookSpecificOutput.HookEventName)
	}

	evs := events(t, store)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if evs[0].Type != TypeSession || evs[0].Content != "session started (startup)" {
		t.Errorf("event = %+v", evs[0])
	}
	if evs[0].Metadata["session_id"] != "s1" {
		t.Errorf("metadata = %v", evs[0].Metadata)
	}
}

func TestHandleStartIncludesLearnedKeywords(t *testing.T) {
	h, _, out := testHandler(t)
	for _, p := range []string{"deploy the ledger", "ledger migration", "ledger backup"} {
		if err := h.Handle("submit", strings.NewReader(`{"prompt":"`+p+`"}`)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if err := h.Handle("start", strings.NewReader(`{}`)); err != nil {
		t.Fatalf("start: %v", err)
	}
	var parsed SessionStartOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	ctx := parsed.HookSpecificOutput.AdditionalContext
	if !strings.Contains(ctx, "- prompt: ledger (3)") {
		t.Errorf("context missing top prompt keyword:\n%s", ctx)
	}
}

func TestHandleStartEmptyStdin(t *testing.T) {
	h, _, out := testHandler(t)
	if err := h.Handle("start", strings.NewReader("")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(out.String(), "hookSpecificOutput") {
		t.Errorf("output missing hookSpecificOutput: %s", out.String())
	}
}

func TestHandleStartBadJSONStillWritesOutput(t *testing.T) {
	h, _, out := testHandler(t)
	if err := h.Handle("start", strings.NewReader("{nope")); err == nil {
		t.Error("expected decode error")
	}
	if !strings.Contains(out.String(), "SessionStart") {
		t.Errorf("output missing SessionStart: %s", out.String())
	}
}

type failingStore struct{}

func (failingStore) Ingest(string, string, map[string]any) (eventstore.Event, error) {
	return eventstore.Event{}, errors.New("disk full")
}

func (failingStore) Learning() *learning.State { return learning.NewState() }

func TestHandleStartIngestFailure(t *testing.T) {
	var out bytes.Buffer
	h := &Handler{Store: failingStore{}, Out: &out}

	err := h.Handle("start", strings.NewReader(`{}`))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want disk full", err)
	}
	if !strings.Contains(out.String(), "SessionStart") {
		t.Errorf("start output must be written on failure: %q", out.String())
	}
}

func TestHandleSubmitSignal(t *testing.T) {
	h, store, _ := testHandler(t)

	if err := h.Handle("submit", strings.NewReader(`{"session_id":"s1","prompt":"remember this: always use WAL mode"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.Handle("submit", strings.NewReader(`{"session_id":"s1","prompt":"list the files"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.Handle("submit", strings.NewReader(`{"session_id":"s1","prompt":"   "}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var types []string
	for _, ev := range events(t, store) {
		types = append(types, ev.Type)
	}
	want := []string{TypePrompt, TypeSignal, TypePrompt}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("types = %v, want %v", types, want)
	}
}

func TestHandleTool(t *testing.T) {
	h, store, _ := testHandler(t)

	for _, raw := range []string{
		`{"tool_name":"TodoWrite","tool_input":{"todos":[]}}`,
		`{"tool_name":"Bash","tool_use_id":"tu_1","tool_input":{"command":"ls"}}`,
	} {
		if err := h.Handle("tool", strings.NewReader(raw)); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	evs := events(t, store)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1 (meta tools skipped)", len(evs))
	}
	if evs[0].Content != `Bash {"command":"ls"}` {
		t.Errorf("content = %q", evs[0].Content)
	}
	if evs[0].Metadata["tool_use_id"] != "tu_1" {
		t.Errorf("metadata = %v", evs[0].Metadata)
	}
}

func TestHandleStopAndEnd(t *testing.T) {
	h, store, _ := testHandler(t)

	if err := h.Handle("stop", strings.NewReader(`{"stop_hook_active":true}`)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := h.Handle("stop", strings.NewReader(`{"last_assistant_message":"done"}`)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := h.Handle("end", strings.NewReader(`{"reason":"logout"}`)); err != nil {
		t.Fatalf("end: %v", err)
	}

	evs := events(t, store)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Content != "turn complete: done" || evs[1].Content != "session ended: logout" {
		t.Errorf("contents = %q, %q", evs[0].Content, evs[1].Content)
	}
}

func TestHandleEndWithTranscript(t *testing.T) {
	h, store, _ := testHandler(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	lines := `{"type":"user","message":{"role":"user","content":"rotate the signing keys"}}
{"type":"assistant","message":{"role":"assistant","content":"Rotating signing keys now."}}
`
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(map[string]string{"reason": "exit", "transcript_path": path})
	if err := h.Handle("end", bytes.NewReader(payload)); err != nil {
		t.Fatalf("end: %v", err)
	}
	// An unreadable transcript still records the end of the session.
	if err := h.Handle("end", strings.NewReader(`{"transcript_path":"/nonexistent/x.jsonl"}`)); err != nil {
		t.Fatalf("end: %v", err)
	}

	evs := events(t, store)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if !strings.HasPrefix(evs[0].Content, "session ended: exit (1 prompts, 1 replies; topics: ") {
		t.Errorf("content = %q", evs[0].Content)
	}
	if evs[0].Metadata["prompts"] != float64(1) && evs[0].Metadata["prompts"] != 1 {
		t.Errorf("metadata = %v", evs[0].Metadata)
	}
	if evs[1].Content != "session ended" {
		t.Errorf("content = %q", evs[1].Content)
	}
}

func TestHandleUnknownEvent(t *testing.T) {
	h, _, _ := testHandler(t)
	if err := h.Handle("bogus", strings.NewReader(`{}`)); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestSkipTools(t *testing.T) {
	input := &HookInput{ToolName: "TodoRead"}
	if !input.ShouldSkipTool() {
		t.Error("expected TodoRead to be skipped")
	}

	input.ToolName = "Bash"
	if input.ShouldSkipTool() {
		t.Error("expected Bash to NOT be skipped")
	}

	input.ToolName = "Thinking"
	if !input.ShouldSkipTool() {
		t.Error("expected Thinking to be skipped")
	}
}

func TestHookInputParsing(t *testing.T) {
	raw := `{
		"session_id": "abc123",
		"transcript_path": "/path/to/transcript.jsonl",
		"cwd": "/working/dir",
		"hook_event_name": "PostToolUse",
		"tool_name": "Bash",
		"tool_use_id": "tool_123",
		"tool_input": {"command": "ls"},
		"tool_response": "file1 file2"
	}`

	var input HookInput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if input.SessionID != "abc123" {
		t.Errorf("SessionID = %q, want abc123", input.SessionID)
	}
	if input.ToolName != "Bash" {
		t.Errorf("ToolName = %q, want Bash", input.ToolName)
	}
	if string(input.ToolInput) != `{"command": "ls"}` {
		t.Errorf("ToolInput = %q", string(input.ToolInput))
	}
	if string(input.ToolResponse) != `"file1 file2"` {
		t.Errorf("ToolResponse = %q", string(input.ToolResponse))
	}
}

func TestHasSignal(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"remember this: always use WAL mode", true},
		{"I said don't forget about the config", true},
		{"never use CGO in this project", true},
		{"we decided to use Go", true},
		{"the root cause was a race condition", true},
		{"REMEMBER THIS: use WAL mode", true},
		{"just a normal prompt with no signals", false},
		{"help me fix this bug", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := hasSignal(tt.prompt); got != tt.want {
			t.Errorf("hasSignal(%q) = %v, want %v", tt.prompt, got, tt.want)
		}
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(learning.NewState()); got != "" {
		t.Errorf("BuildContext(empty) = %q", got)
	}
	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q", got)
	}
}
