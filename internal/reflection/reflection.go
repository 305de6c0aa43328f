// Package reflection writes the nightly reflection for a day's log and
// links it from INDEX.md.
package reflection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/logging"
)

// entryRe matches a log entry heading: "### HH:MM — title".
var entryRe = regexp.MustCompile(`(?m)^### (\d{2}:\d{2} — .+)$`)

const indexHeader = "# Memory Index\n\n## Reflections\n\n| Date | Status |\n|------|--------|\n"

// Reflector produces reflections under Root.
type Reflector struct {
	Root           string // holds <date>.md logs and INDEX.md
	ReflectionsDir string // "" = <Root>/reflections
	Location       *time.Location
	Log            *zap.Logger
	Now            func() time.Time
}

// Outcome reports what Run did.
type Outcome struct {
	Date         string
	Path         string
	Entries      int
	HadLog       bool
	IndexUpdated bool
}

// Run writes today's reflection and appends it to the index.
func (r *Reflector) Run() (Outcome, error) {
	now := r.now()
	date := now.Format(time.DateOnly)
	log := logging.OrNop(r.Log).With(zap.String("date", date))
	out := Outcome{Date: date}

	content, err := os.ReadFile(filepath.Join(r.Root, date+".md"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("no log for today")
	case err != nil:
		return out, fmt.Errorf("read daily log: %w", err)
	default:
		out.HadLog = true
	}

	entries := Entries(string(content))
	out.Entries = len(entries)

	dir := r.reflectionsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return out, fmt.Errorf("create reflections dir: %w", err)
	}
	out.Path = filepath.Join(dir, date+".md")
	if err := os.WriteFile(out.Path, []byte(Generate(date, now, entries)), 0o644); err != nil {
		return out, fmt.Errorf("write reflection: %w", err)
	}

	out.IndexUpdated, err = AppendIndex(filepath.Join(r.Root, "INDEX.md"), date)
	if err != nil {
		return out, err
	}
	log.Info("reflection written", zap.String("path", out.Path), zap.Int("entries", out.Entries), zap.Bool("index_updated", out.IndexUpdated))
	return out, nil
}

// Entries extracts "HH:MM — title" from each log entry heading, in order.
func Entries(logText string) []string {
	var out []string
	for _, m := range entryRe.FindAllStringSubmatch(logText, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// Generate renders the reflection template.
func Generate(date string, generated time.Time, entries []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Nightly Reflection\n\n", date)
	fmt.Fprintf(&sb, "> Generated: %s\n\n", generated.Format("2006-01-02 15:04:05 MST"))
	sb.WriteString("## Today's Events\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	sb.WriteString("\n## Plan vs Actual\n\n- Planned: \n- Done: \n\n")
	for _, h := range []string{"What Went Well", "What To Improve", "New Knowledge", "Change Tomorrow"} {
		fmt.Fprintf(&sb, "## %s\n\n- \n\n", h)
	}
	sb.WriteString("---\n*Generated automatically*\n")
	return sb.String()
}

// AppendIndex adds a row for date to the index at path unless a [[date]]
// link is already present. The index is created with a header if missing.
func AppendIndex(path, date string) (bool, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = []byte(indexHeader)
	case err != nil:
		return false, fmt.Errorf("read index: %w", err)
	}

	link := "[[" + date + "]]"
	if strings.Contains(string(data), link) {
		return false, nil
	}

	text := string(data)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += "| " + link + " | active |\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return false, fmt.Errorf("write index: %w", err)
	}
	return true, nil
}

func (r *Reflector) reflectionsDir() string {
	if r.ReflectionsDir != "" {
		return r.ReflectionsDir
	}
	return filepath.Join(r.Root, "reflections")
}

func (r *Reflector) now() time.Time {
	t := time.Now()
	if r.Now != nil {
		t = r.Now()
	}
	if r.Location != nil {
		t = t.In(r.Location)
	}
	return t
}
