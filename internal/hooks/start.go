package hooks

import (
	"fmt"
	"strings"

	"github.com/lazypower/almanac/internal/learning"
)

// contextKeywords is how many keywords per event type the start context lists.
const contextKeywords = 5

func (h *Handler) handleStart(input *HookInput) error {
	content := "session started"
	if input.Source != "" {
		content += " (" + input.Source + ")"
	}
	err := h.ingest(TypeSession, content, input, map[string]any{"source": input.Source})

	// Output is written even when ingestion failed.
	if werr := h.writeStart(BuildContext(h.Store.Learning())); werr != nil && err == nil {
		err = fmt.Errorf("write start output: %w", werr)
	}
	return err
}

// BuildContext renders what has been learned as session context: the most
// frequent keywords per event type and the busiest hour. It returns "" when
// nothing has been learned yet.
func BuildContext(st *learning.State) string {
	if st == nil || len(st.Preferences) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<almanac>\n## Recurring topics\n")
	for _, typ := range st.Types() {
		top := st.TopKeywords(typ, contextKeywords)
		if len(top) == 0 {
			continue
		}
		parts := make([]string, len(top))
		for i, kc := range top {
			parts[i] = fmt.Sprintf("%s (%d)", kc.Keyword, kc.Count)
		}
		fmt.Fprintf(&sb, "- %s: %s\n", typ, strings.Join(parts, ", "))
	}
	if hour, n, ok := st.PeakHour(); ok {
		fmt.Fprintf(&sb, "\nMost active around %s:00 (%d events).\n", hour, n)
	}
	sb.WriteString("</almanac>")
	return sb.String()
}
