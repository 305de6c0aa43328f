// Package retention archives expired records and marks unverified knowledge
// records stale, following the per-category rules of the category table.
package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/config"
	"github.com/lazypower/almanac/internal/frontmatter"
	"github.com/lazypower/almanac/internal/fsutil"
	"github.com/lazypower/almanac/internal/ledger"
	"github.com/lazypower/almanac/internal/logging"
	"github.com/lazypower/almanac/internal/temperature"
)

var dateToken = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

const day = 24 * time.Hour

// Recorder receives an audit row for every archival and staleness mark.
// *ledger.DB satisfies it.
type Recorder interface {
	RecordArchive(ledger.ArchiveEntry) error
	RecordStale(ledger.StaleEntry) error
}

// Engine runs retention sweeps over the configured memory root. It is not
// safe for concurrent use; at most one sweep may run at a time.
type Engine struct {
	Config config.Config
	Ledger Recorder // optional
	Log    *zap.Logger
	Now    func() time.Time

	match glob.Glob
}

// New creates an Engine for cfg. cfg must already be resolved.
func New(cfg config.Config) (*Engine, error) {
	g, err := glob.Compile(cfg.Knowledge.FilePattern)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern %q: %w", cfg.Knowledge.FilePattern, err)
	}
	return &Engine{
		Config: cfg,
		Log:    zap.NewNop(),
		Now:    time.Now,
		match:  g,
	}, nil
}

// Archived describes one record moved to the archive.
type Archived struct {
	Category    string
	File        string
	To          string
	AgeDays     float64
	Temperature float64
}

// Skipped describes an expired record that was kept, and why.
type Skipped struct {
	Category string
	File     string
	Reason   string
}

// Skip reasons.
const (
	ReasonReferenced = "referenced"
	ReasonHot        = "hot"
)

// Report is the outcome of a sweep.
type Report struct {
	Archived []Archived
	Skipped  []Skipped
	Stale    []StaleMark
}

// record is one candidate file seen during a sweep.
type record struct {
	category config.Category
	name     string
	path     string
	modTime  time.Time
}

// Sweep archives every expired record, then runs the staleness scan.
// Archiving a record can release records it alone referenced, so passes
// repeat until one archives nothing. Missing directories are empty. The first
// filesystem fault aborts the sweep and is returned together with what was
// done so far.
func (e *Engine) Sweep() (Report, error) {
	var rep Report
	log := logging.OrNop(e.Log)
	now := e.now()

	refs, err := e.indexReferences(now)
	if err != nil {
		return rep, err
	}

	for {
		archived, skipped, err := e.sweepPass(refs, now)
		rep.Archived = append(rep.Archived, archived...)
		rep.Skipped = skipped
		if err != nil {
			return rep, err
		}
		if len(archived) == 0 {
			break
		}
	}

	stale, err := e.ScanStale()
	rep.Stale = stale
	if err != nil {
		return rep, err
	}

	log.Info("retention sweep finished",
		zap.Int("archived", len(rep.Archived)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("stale", len(rep.Stale)))
	return rep, nil
}

// sweepPass makes one pass over every category. Skipped is what the pass kept.
func (e *Engine) sweepPass(refs *refIndex, now time.Time) (archived []Archived, skipped []Skipped, err error) {
	log := logging.OrNop(e.Log)
	for _, cat := range e.Config.Categories {
		records, err := e.listRecords(cat)
		if err != nil {
			return archived, skipped, err
		}
		for _, rec := range records {
			age := now.Sub(rec.modTime)
			maxAge := e.effectiveMaxAge(rec)
			if maxAge.IsNever() || age <= time.Duration(maxAge.Days)*day {
				continue
			}

			token := dateToken.FindString(rec.name)
			if cat.ProtectIfReferenced && refs.referenced(token, rec.path) {
				log.Debug("kept referenced record", zap.String("category", cat.Name), zap.String("file", rec.name))
				skipped = append(skipped, Skipped{Category: cat.Name, File: rec.name, Reason: ReasonReferenced})
				continue
			}

			temp := temperature.Score(e.temperatureInput(rec, refs.recent(token, rec.path)), now)
			if temperature.Classify(temp) == temperature.Hot {
				log.Debug("kept hot record", zap.String("category", cat.Name), zap.String("file", rec.name), zap.Float64("temperature", temp))
				skipped = append(skipped, Skipped{Category: cat.Name, File: rec.name, Reason: ReasonHot})
				continue
			}

			a, err := e.archive(rec, age, temp)
			if err != nil {
				return archived, skipped, err
			}
			// An archived record no longer protects the dates it mentions.
			refs.remove(rec.path)
			archived = append(archived, a)
		}
	}
	return archived, skipped, nil
}

func (e *Engine) archive(rec record, age time.Duration, temp float64) (Archived, error) {
	dest, err := fsutil.MoveNoReplace(rec.path, e.Config.ArchiveDir)
	if err != nil {
		return Archived{}, fmt.Errorf("archive %s: %w", rec.path, err)
	}

	a := Archived{
		Category:    rec.category.Name,
		File:        rec.name,
		To:          dest,
		AgeDays:     age.Hours() / 24,
		Temperature: temp,
	}
	logging.OrNop(e.Log).Info("archived record",
		zap.String("category", a.Category),
		zap.String("file", a.File),
		zap.Float64("age_days", a.AgeDays),
		zap.Float64("temperature", a.Temperature))

	if e.Ledger != nil {
		err := e.Ledger.RecordArchive(ledger.ArchiveEntry{
			Category:    a.Category,
			File:        a.File,
			FromPath:    rec.path,
			ToPath:      dest,
			AgeDays:     a.AgeDays,
			Temperature: a.Temperature,
			At:          e.now(),
		})
		if err != nil {
			logging.OrNop(e.Log).Warn("ledger archive entry", zap.String("file", a.File), zap.Error(err))
		}
	}
	return a, nil
}

// effectiveMaxAge applies a category's priority-conditioned override when the
// record's frontmatter declares a priority the override knows.
func (e *Engine) effectiveMaxAge(rec record) config.MaxAge {
	cat := rec.category
	if len(cat.PriorityMaxAge) == 0 {
		return cat.MaxAge
	}
	fields, err := readFields(rec.path)
	if err != nil {
		return cat.MaxAge
	}
	prio := temperature.ParsePriority(fields.Value("priority")).String()
	if m, ok := cat.PriorityMaxAge[prio]; ok {
		return m
	}
	return cat.MaxAge
}

// temperatureInput derives creation time from the frontmatter date, then the
// filename date, then the modification time.
func (e *Engine) temperatureInput(rec record, recentRefs int) temperature.Input {
	in := temperature.Input{Created: rec.modTime, RecentRefs: recentRefs, Priority: temperature.Low}

	fields, _ := readFields(rec.path)
	if t, ok := parseDate(fields.Value("date")); ok {
		in.Created = t
	} else if t, ok := parseDate(rec.name); ok {
		in.Created = t
	}
	in.Priority = temperature.ParsePriority(fields.Value("priority"))
	return in
}

// listRecords returns a category's record files sorted by name.
func (e *Engine) listRecords(cat config.Category) ([]record, error) {
	dir := e.Config.CategoryDir(cat)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []record
	for _, ent := range entries {
		if ent.IsDir() || !e.match.Match(ent.Name()) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", ent.Name(), err)
		}
		out = append(out, record{
			category: cat,
			name:     ent.Name(),
			path:     filepath.Join(dir, ent.Name()),
			modTime:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func readFields(path string) (frontmatter.Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return frontmatter.Fields{}, err
	}
	fields, _ := frontmatter.Parse(string(data))
	return fields, nil
}

// parseDate extracts the first YYYY-MM-DD token in s as a UTC midnight.
func parseDate(s string) (time.Time, bool) {
	tok := dateToken.FindString(s)
	if tok == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, tok)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
