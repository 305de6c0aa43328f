// Package transcript reads an agent's JSONL session transcript and reduces it
// to a digest worth keeping as a single event when the session ends.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lazypower/almanac/internal/learning"
)

// maxLine bounds a single transcript line.
const maxLine = 1024 * 1024

var systemReminderRe = regexp.MustCompile(`<system-reminder>[\s\S]*?</system-reminder>`)

// line is one JSONL record.
type line struct {
	Type    string          `json:"type"` // "user", "assistant", "system"
	Message json.RawMessage `json:"message"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"` // string or []contentItem
}

type contentItem struct {
	Type string `json:"type"` // "text", "tool_use", "tool_result"
	Text string `json:"text,omitempty"`
}

// Turn is one user or assistant message with its plain text.
type Turn struct {
	Role string
	Text string
}

// Digest summarizes a session.
type Digest struct {
	Prompts  int      // user turns
	Replies  int      // assistant turns
	Keywords []string // most frequent keywords of the user turns
	Opening  string   // first user prompt, truncated
}

// digestKeywords is how many keywords a Digest keeps.
const digestKeywords = 8

// openingMax bounds Digest.Opening in runes.
const openingMax = 200

// ReadFile parses the transcript at path.
func ReadFile(path string) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses JSONL turns from r. Malformed lines, tool payloads and turns
// with under five characters of text are skipped.
func Read(r io.Reader) ([]Turn, error) {
	var turns []Turn
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if t, ok := parseLine(raw); ok {
			turns = append(turns, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return turns, nil
}

func parseLine(raw []byte) (Turn, bool) {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil || l.Message == nil {
		return Turn{}, false
	}
	if l.Type != "user" && l.Type != "assistant" {
		return Turn{}, false
	}
	var msg message
	if err := json.Unmarshal(l.Message, &msg); err != nil {
		return Turn{}, false
	}

	text := systemReminderRe.ReplaceAllString(contentText(msg.Content), "")
	text = strings.TrimSpace(text)
	if len([]rune(text)) < 5 || strings.HasPrefix(text, "{") {
		return Turn{}, false
	}
	return Turn{Role: l.Type, Text: text}, true
}

// contentText flattens the content field, which is either a plain string or
// a list of blocks of which only text blocks count.
func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var texts []string
	for _, it := range items {
		if it.Type == "text" && it.Text != "" {
			texts = append(texts, it.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Summarize builds a Digest of turns, ranking user keywords with the same
// tokenizer the event store learns from.
func Summarize(turns []Turn) Digest {
	var d Digest
	st := learning.NewState()
	for _, t := range turns {
		switch t.Role {
		case "user":
			d.Prompts++
			if d.Opening == "" {
				d.Opening = truncate(t.Text, openingMax)
			}
			st.Learn(t.Role, t.Text, time.Time{}, time.UTC)
		case "assistant":
			d.Replies++
		}
	}
	for _, kc := range st.TopKeywords("user", digestKeywords) {
		d.Keywords = append(d.Keywords, kc.Keyword)
	}
	return d
}

// String renders the digest as event content.
func (d Digest) String() string {
	s := fmt.Sprintf("%d prompts, %d replies", d.Prompts, d.Replies)
	if len(d.Keywords) > 0 {
		s += "; topics: " + strings.Join(d.Keywords, ", ")
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
