package retention

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/frontmatter"
	"github.com/lazypower/almanac/internal/fsutil"
	"github.com/lazypower/almanac/internal/knowledge"
	"github.com/lazypower/almanac/internal/ledger"
	"github.com/lazypower/almanac/internal/logging"
)

// StaleMark is a knowledge record whose status was rewritten to stale.
type StaleMark struct {
	Category string
	File     string
	Previous string
	Days     int
}

// ScanStale marks knowledge records stale when last_verified is older than
// the configured threshold. Records without last_verified, and records
// already conflict, superseded or stale, are left alone, so repeated scans
// change nothing.
func (e *Engine) ScanStale() ([]StaleMark, error) {
	log := logging.OrNop(e.Log)
	now := e.now()
	threshold := time.Duration(e.Config.Knowledge.StaleAfterDays) * day

	var marks []StaleMark
	for _, cat := range e.Config.Categories {
		if !cat.Knowledge {
			continue
		}
		records, err := e.listRecords(cat)
		if err != nil {
			return marks, err
		}
		for _, rec := range records {
			data, err := os.ReadFile(rec.path)
			if err != nil {
				return marks, fmt.Errorf("read %s: %w", rec.path, err)
			}
			fields, _ := frontmatter.Parse(string(data))

			verified, ok := parseDate(fields.Value("last_verified"))
			if !ok {
				continue
			}
			age := now.Sub(verified)
			if age <= threshold {
				continue
			}
			prev := fields.Value("status")
			switch knowledge.ParseStatus(prev) {
			case knowledge.StatusConflict, knowledge.StatusSuperseded, knowledge.StatusStale:
				continue
			}

			marked := frontmatter.Rewrite(string(data), "status", string(knowledge.StatusStale))
			if err := fsutil.WriteAtomic(rec.path, []byte(marked)); err != nil {
				return marks, fmt.Errorf("mark stale %s: %w", rec.path, err)
			}

			m := StaleMark{Category: cat.Name, File: rec.name, Previous: prev, Days: int(age / day)}
			marks = append(marks, m)
			log.Info("marked record stale",
				zap.String("category", m.Category),
				zap.String("file", m.File),
				zap.Int("days", m.Days))

			if e.Ledger != nil {
				err := e.Ledger.RecordStale(ledger.StaleEntry{
					Category:      m.Category,
					File:          m.File,
					Previous:      m.Previous,
					DaysUnchecked: m.Days,
					At:            now,
				})
				if err != nil {
					log.Warn("ledger stale entry", zap.String("file", m.File), zap.Error(err))
				}
			}
		}
	}
	return marks, nil
}
