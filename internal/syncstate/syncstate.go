// Package syncstate tracks how far an external consumer has read the event
// store's long-term tier. It reads the store document but never writes it.
package syncstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/eventstore"
	"github.com/lazypower/almanac/internal/fsutil"
	"github.com/lazypower/almanac/internal/logging"
)

// Cursor is the persisted sync position.
type Cursor struct {
	LastSync    *time.Time `json:"lastSync"`
	LastEventID *string    `json:"lastEventId"`
	Version     int        `json:"version"`
}

// LoadCursor reads the cursor at path. A missing or unparsable file yields
// the zero cursor.
func LoadCursor(path string) Cursor {
	data, err := os.ReadFile(path)
	if err != nil {
		return Cursor{}
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}
	}
	return c
}

// Save writes the cursor atomically.
func (c Cursor) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync cursor: %w", err)
	}
	return fsutil.WriteAtomic(path, data)
}

// Result describes one sync step.
type Result struct {
	Total  int // events in the long-term tier
	New    int // events after the previous cursor
	Cursor Cursor
}

// Syncer advances the cursor over the store at StorePath.
type Syncer struct {
	StorePath string
	StatePath string
	Log       *zap.Logger
	Now       func() time.Time
}

// Step reads the long-term tier and, when it holds any events, moves the
// cursor to the newest one and bumps the version. An empty or missing store
// leaves the cursor untouched.
func (s *Syncer) Step() (Result, error) {
	log := logging.OrNop(s.Log)
	cur := LoadCursor(s.StatePath)

	doc, err := eventstore.ReadSnapshot(s.StorePath)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("no event store yet, nothing to sync", zap.String("store", s.StorePath))
		return Result{Cursor: cur}, nil
	}
	if err != nil {
		return Result{Cursor: cur}, err
	}

	events := doc.Layers.L2.Events
	res := Result{Total: len(events), Cursor: cur}
	if len(events) == 0 {
		log.Info("no new data")
		return res, nil
	}

	res.New = countAfter(events, cur.LastEventID)

	now := s.now().UTC()
	last := events[len(events)-1].ID
	cur.LastSync = &now
	cur.LastEventID = &last
	cur.Version++
	if err := cur.Save(s.StatePath); err != nil {
		return res, err
	}
	res.Cursor = cur

	log.Info("sync complete",
		zap.Int("events", res.Total),
		zap.Int("new", res.New),
		zap.Int("version", cur.Version))
	return res, nil
}

// countAfter returns how many events follow the one with id. An unknown or
// nil id counts everything.
func countAfter(events []eventstore.Event, id *string) int {
	if id == nil {
		return len(events)
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ID == *id {
			return len(events) - 1 - i
		}
	}
	return len(events)
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
