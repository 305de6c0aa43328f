// Package knowledge guards writes to knowledge records. Each proposed write
// is classified as ADD, NOOP, UPDATE or CONFLICT against the record already
// on disk, so duplicates are dropped, replaced content is kept as a dated
// supersession note, and contradictions are preserved rather than
// overwritten.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/config"
	"github.com/lazypower/almanac/internal/frontmatter"
	"github.com/lazypower/almanac/internal/ledger"
	"github.com/lazypower/almanac/internal/logging"
	"github.com/lazypower/almanac/internal/temperature"
)

var (
	ErrUnknownCategory = errors.New("unknown knowledge category")
	ErrInvalidFilename = errors.New("invalid record filename")
)

// Action is the classification of a proposed write.
type Action string

const (
	ActionAdd      Action = "ADD"
	ActionNoop     Action = "NOOP"
	ActionUpdate   Action = "UPDATE"
	ActionConflict Action = "CONFLICT"
)

// Reasons attached to a Result.
const (
	ReasonNew            = "new file"
	ReasonAlreadyPresent = "already present"
	ReasonSimilar        = "similar content"
	ReasonContradiction  = "contradiction exists"
	ReasonNewContent     = "new content"
)

// supersededPreview is how many runes of the prior body an UPDATE keeps.
const supersededPreview = 100

// Result is the outcome of Validate. Existing and Fields are set for UPDATE;
// Existing alone for CONFLICT.
type Result struct {
	Action   Action
	Reason   string
	Existing string
	Fields   frontmatter.Fields
}

// Metadata overrides the frontmatter written by ADD and UPDATE.
type Metadata struct {
	Title    string
	Date     string
	Priority string
}

// Recorder receives an audit row for every write decision.
// *ledger.DB satisfies it.
type Recorder interface {
	RecordKnowledge(ledger.KnowledgeEntry) error
}

// Validator validates and applies knowledge writes. Like the rest of the
// store it assumes a single writer.
type Validator struct {
	Dirs           map[string]string // category name -> absolute dir
	Matcher        Matcher
	Ledger         Recorder // optional
	Log            *zap.Logger
	Now            func() time.Time
	StaleAfterDays int

	match glob.Glob
}

// New creates a Validator over cfg's knowledge categories.
func New(cfg config.Config) (*Validator, error) {
	g, err := glob.Compile(cfg.Knowledge.FilePattern)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern %q: %w", cfg.Knowledge.FilePattern, err)
	}
	return &Validator{
		Dirs:           cfg.KnowledgeDirs(),
		Matcher:        LexicalMatcher{},
		Log:            zap.NewNop(),
		Now:            time.Now,
		StaleAfterDays: cfg.Knowledge.StaleAfterDays,
		match:          g,
	}, nil
}

// Validate classifies a proposed write without touching disk.
func (v *Validator) Validate(category, filename, content string) (Result, error) {
	res, _, err := v.validate(category, filename, content)
	return res, err
}

// validate classifies a write and returns the record path it resolved.
func (v *Validator) validate(category, filename, content string) (Result, string, error) {
	path, err := v.recordPath(category, filename)
	if err != nil {
		return Result{}, "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{Action: ActionAdd, Reason: ReasonNew}, path, nil
	}
	if err != nil {
		return Result{}, "", fmt.Errorf("read %s: %w", path, err)
	}

	fields, body := frontmatter.Parse(string(data))
	body = strings.TrimSpace(body)

	switch {
	case strings.Contains(body, content):
		return Result{Action: ActionNoop, Reason: ReasonAlreadyPresent}, path, nil
	case v.matcher().Similar(body, content):
		return Result{Action: ActionNoop, Reason: ReasonSimilar}, path, nil
	case ParseStatus(fields.Value("status")) == StatusConflict:
		return Result{Action: ActionConflict, Reason: ReasonContradiction, Existing: body}, path, nil
	}
	return Result{Action: ActionUpdate, Reason: ReasonNewContent, Existing: body, Fields: fields}, path, nil
}

// Write validates and applies a proposed write. NOOP leaves the file
// untouched; ADD and UPDATE rewrite it; CONFLICT appends a contradiction
// note followed by the new content.
func (v *Validator) Write(category, filename, content string, meta Metadata) (Result, error) {
	res, path, err := v.validate(category, filename, content)
	if err != nil {
		return res, err
	}
	today := v.now().Format(time.DateOnly)
	log := logging.OrNop(v.Log).With(
		zap.String("category", category),
		zap.String("file", filename),
		zap.String("action", string(res.Action)))

	switch res.Action {
	case ActionNoop:
		log.Debug("knowledge write skipped", zap.String("reason", res.Reason))

	case ActionAdd, ActionUpdate:
		doc := renderRecord(category, filename, content, today, meta)
		if res.Action == ActionUpdate {
			doc += fmt.Sprintf("\n\n> [Superseded %s]: %s...", today, preview(res.Existing, supersededPreview))
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return res, fmt.Errorf("create category dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return res, fmt.Errorf("write %s: %w", path, err)
		}
		log.Info("knowledge record written")

	case ActionConflict:
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return res, fmt.Errorf("open %s: %w", path, err)
		}
		note := fmt.Sprintf("\n\n> CONFLICT (%s): contradicts the content above\n", today)
		_, werr := f.WriteString(note + content)
		cerr := f.Close()
		if werr != nil {
			return res, fmt.Errorf("append conflict to %s: %w", path, werr)
		}
		if cerr != nil {
			return res, fmt.Errorf("close %s: %w", path, cerr)
		}
		log.Warn("knowledge conflict recorded")
	}

	if v.Ledger != nil {
		err := v.Ledger.RecordKnowledge(ledger.KnowledgeEntry{
			Category: category,
			File:     filename,
			Action:   string(res.Action),
			Reason:   res.Reason,
			At:       v.now(),
		})
		if err != nil {
			log.Warn("ledger knowledge entry", zap.Error(err))
		}
	}
	return res, nil
}

func renderRecord(category, filename, content, today string, meta Metadata) string {
	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	date := meta.Date
	if date == "" {
		date = today
	}
	priority := temperature.Low.String()
	if meta.Priority != "" {
		priority = temperature.ParsePriority(meta.Priority).String()
	}

	fields := frontmatter.Fields{
		{Key: "title", Value: title},
		{Key: "date", Value: date},
		{Key: "category", Value: category},
		{Key: "priority", Value: priority},
		{Key: "status", Value: string(StatusActive)},
		{Key: "last_verified", Value: today},
	}
	return frontmatter.Serialize(fields) + "\n## Content\n" + content
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (v *Validator) recordPath(category, filename string) (string, error) {
	dir, ok := v.Dirs[category]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCategory, category)
	}
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w %q", ErrInvalidFilename, filename)
	}
	return filepath.Join(dir, filename), nil
}

func (v *Validator) matcher() Matcher {
	if v.Matcher == nil {
		return LexicalMatcher{}
	}
	return v.Matcher
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
