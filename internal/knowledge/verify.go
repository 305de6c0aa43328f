package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lazypower/almanac/internal/frontmatter"
)

// StaleRecord is a knowledge record overdue for verification.
type StaleRecord struct {
	Category string
	File     string
	Days     int
}

// VerifyAll reports records whose last_verified is older than the staleness
// threshold, skipping superseded records and records never verified. It only
// reads; marking records stale is the retention sweep's job.
func (v *Validator) VerifyAll() ([]StaleRecord, error) {
	threshold := v.StaleAfterDays
	if threshold <= 0 {
		threshold = 30
	}
	now := v.now()

	cats := make([]string, 0, len(v.Dirs))
	for c := range v.Dirs {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var out []StaleRecord
	for _, cat := range cats {
		dir := v.Dirs[cat]
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, ent := range entries {
			if ent.IsDir() || (v.match != nil && !v.match.Match(ent.Name())) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
			if err != nil {
				return out, fmt.Errorf("read %s: %w", ent.Name(), err)
			}
			fields, _ := frontmatter.Parse(string(data))

			lv := fields.Value("last_verified")
			if lv == "" {
				continue
			}
			verified, err := time.Parse(time.DateOnly, lv)
			if err != nil {
				continue
			}
			days := now.Sub(verified).Hours() / 24
			if days > float64(threshold) && ParseStatus(fields.Value("status")) != StatusSuperseded {
				out = append(out, StaleRecord{Category: cat, File: ent.Name(), Days: int(days)})
			}
		}
	}
	return out, nil
}
