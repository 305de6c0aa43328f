package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lazypower/almanac/internal/temperature"
)

// refFile is one record's content as seen by the reference scan.
type refFile struct {
	path    string
	content string
	recent  bool // modified within temperature.RecentWindow
}

// refIndex answers "does any other record mention this date" questions.
// Lookups are linear in the number of records, so a sweep is quadratic
// overall; fine for a personal store of a few thousand files.
type refIndex struct {
	files []refFile
}

// indexReferences reads every record under the root and the category
// directories. The archive is never scanned.
func (e *Engine) indexReferences(now time.Time) (*refIndex, error) {
	idx := &refIndex{}
	archive := filepath.Clean(e.Config.ArchiveDir)

	for _, dir := range e.Config.RecordDirs() {
		if dir == archive {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, ent := range entries {
			if ent.IsDir() || !e.match.Match(ent.Name()) {
				continue
			}
			path := filepath.Join(dir, ent.Name())
			info, err := ent.Info()
			if err != nil {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			idx.files = append(idx.files, refFile{
				path:    path,
				content: string(data),
				recent:  now.Sub(info.ModTime()) <= temperature.RecentWindow,
			})
		}
	}
	return idx, nil
}

// referenced reports whether a record other than self mentions token, either
// plainly or as a [[token]] wiki link. An empty token is never referenced.
func (idx *refIndex) referenced(token, self string) bool {
	if token == "" {
		return false
	}
	for _, f := range idx.files {
		if f.path != self && mentions(f.content, token) {
			return true
		}
	}
	return false
}

// remove drops a record from the index once it has left the record dirs.
func (idx *refIndex) remove(path string) {
	kept := idx.files[:0]
	for _, f := range idx.files {
		if f.path != path {
			kept = append(kept, f)
		}
	}
	idx.files = kept
}

// recent counts the recently modified records other than self mentioning token.
func (idx *refIndex) recent(token, self string) int {
	if token == "" {
		return 0
	}
	n := 0
	for _, f := range idx.files {
		if f.recent && f.path != self && mentions(f.content, token) {
			n++
		}
	}
	return n
}

func mentions(content, token string) bool {
	return strings.Contains(content, token) || strings.Contains(content, "[["+token+"]]")
}
