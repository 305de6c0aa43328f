// Package eventstore is the layered JSON event store.
//
// Every ingested event lands in three tiers: L0 (immediate) and L1
// (short-term) are bounded and drop their oldest events once full, L2
// (long-term) keeps everything. The whole document is rewritten on each
// ingest. The store assumes a single writer process; callers serialize
// invocations externally.
package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/fsutil"
	"github.com/lazypower/almanac/internal/learning"
	"github.com/lazypower/almanac/internal/logging"
)

const (
	// DocumentVersion is written into new store documents.
	DocumentVersion = "2.1"

	DefaultImmediateMax = 100
	DefaultShortTermMax = 500
)

// ErrUnknownTier is returned for a tier name other than L0, L1 or L2.
var ErrUnknownTier = errors.New("unknown tier")

// Tier names one retention level.
type Tier string

const (
	Immediate Tier = "L0"
	ShortTerm Tier = "L1"
	LongTerm  Tier = "L2"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case Immediate, ShortTerm, LongTerm:
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownTier, s)
}

// Event is one immutable observation.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// Layer is a bounded tier.
type Layer struct {
	Events  []Event `json:"events"`
	MaxSize int     `json:"maxSize"`
}

// LongTermLayer is the unbounded tier plus its derived collections.
type LongTermLayer struct {
	Events      []Event                         `json:"events"`
	Entities    []json.RawMessage               `json:"entities"`
	Patterns    []*learning.Pattern             `json:"patterns"`
	Preferences map[string]*learning.Preference `json:"preferences"`
}

// Layers holds the three tiers.
type Layers struct {
	L0 Layer         `json:"L0"`
	L1 Layer         `json:"L1"`
	L2 LongTermLayer `json:"L2"`
}

// Meta is document bookkeeping.
type Meta struct {
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Format  string    `json:"format"`
}

// Document is the persisted JSON shape.
type Document struct {
	Version  string          `json:"version"`
	Meta     Meta            `json:"meta"`
	Layers   Layers          `json:"layers"`
	Learning *learning.State `json:"learning"`
}

// Options configures a Store. Zero values take defaults.
type Options struct {
	ImmediateMax int
	ShortTermMax int
	Location     *time.Location // hour-of-day learning; nil = local
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() (string, error)
}

// Store is an open event store document.
type Store struct {
	path string
	doc  *Document
	opts Options
	log  *zap.Logger
}

// Open loads the store at path. A missing or unparsable document is replaced
// by a fresh default which is persisted immediately; failing to persist it
// is an error.
func Open(path string, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newEventID
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Store{path: path, opts: opts, log: logging.OrNop(opts.Logger)}

	doc, err := readDocument(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info("creating event store", zap.String("path", path))
		} else {
			s.log.Warn("event store unreadable, starting fresh", zap.String("path", path), zap.Error(err))
		}
		s.doc = s.defaultDocument()
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.doc = doc
	s.normalize()
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) defaultDocument() *Document {
	now := s.opts.Now().UTC()
	return &Document{
		Version: DocumentVersion,
		Meta:    Meta{Created: now, Updated: now, Format: "json"},
		Layers: Layers{
			L0: Layer{Events: []Event{}, MaxSize: pick(s.opts.ImmediateMax, DefaultImmediateMax)},
			L1: Layer{Events: []Event{}, MaxSize: pick(s.opts.ShortTermMax, DefaultShortTermMax)},
			L2: LongTermLayer{
				Events:      []Event{},
				Entities:    []json.RawMessage{},
				Patterns:    []*learning.Pattern{},
				Preferences: map[string]*learning.Preference{},
			},
		},
		Learning: learning.NewState(),
	}
}

// normalize fills collections a hand-edited or older document may lack and
// applies configured capacities.
func (s *Store) normalize() {
	d := s.doc
	if d.Learning == nil {
		d.Learning = learning.NewState()
	}
	if d.Learning.Preferences == nil {
		d.Learning.Preferences = map[string]*learning.Preference{}
	}
	if d.Learning.Patterns == nil {
		d.Learning.Patterns = []*learning.Pattern{}
	}
	if d.Layers.L0.Events == nil {
		d.Layers.L0.Events = []Event{}
	}
	if d.Layers.L1.Events == nil {
		d.Layers.L1.Events = []Event{}
	}
	if d.Layers.L2.Events == nil {
		d.Layers.L2.Events = []Event{}
	}
	if d.Layers.L2.Entities == nil {
		d.Layers.L2.Entities = []json.RawMessage{}
	}
	if s.opts.ImmediateMax > 0 {
		d.Layers.L0.MaxSize = s.opts.ImmediateMax
	} else if d.Layers.L0.MaxSize <= 0 {
		d.Layers.L0.MaxSize = DefaultImmediateMax
	}
	if s.opts.ShortTermMax > 0 {
		d.Layers.L1.MaxSize = s.opts.ShortTermMax
	} else if d.Layers.L1.MaxSize <= 0 {
		d.Layers.L1.MaxSize = DefaultShortTermMax
	}
}

// Ingest records a new event: append to every tier, learn from it, compact
// the bounded tiers and persist. If persisting fails the returned event is
// still part of the in-memory store, which is then ahead of disk.
func (s *Store) Ingest(typ, content string, metadata map[string]any) (Event, error) {
	id, err := s.opts.NewID()
	if err != nil {
		return Event{}, fmt.Errorf("new event id: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := s.opts.Now().UTC()
	ev := Event{
		ID:        id,
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		Timestamp: now,
	}

	d := s.doc
	d.Layers.L0.Events = append(d.Layers.L0.Events, ev)
	d.Layers.L1.Events = append(d.Layers.L1.Events, ev)
	d.Layers.L2.Events = append(d.Layers.L2.Events, ev)

	d.Learning.Stats.TotalEvents++
	d.Learning.Stats.LastUpdate = &now

	d.Learning.Learn(ev.Type, ev.Content, ev.Timestamp, s.opts.Location)
	s.compact()

	if err := s.save(); err != nil {
		return ev, err
	}
	s.log.Debug("event ingested", zap.String("id", ev.ID), zap.String("type", ev.Type))
	return ev, nil
}

func (s *Store) compact() {
	d := s.doc
	d.Layers.L0.Events = keepNewest(d.Layers.L0.Events, d.Layers.L0.MaxSize)
	d.Layers.L1.Events = keepNewest(d.Layers.L1.Events, d.Layers.L1.MaxSize)
}

func keepNewest(events []Event, max int) []Event {
	if max <= 0 || len(events) <= max {
		return events
	}
	kept := make([]Event, max)
	copy(kept, events[len(events)-max:])
	return kept
}

// Query returns the events of tier whose content contains keyword, ignoring
// case, oldest first.
func (s *Store) Query(keyword string, tier Tier) ([]Event, error) {
	events, err := s.tierEvents(tier)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	var out []Event
	for _, ev := range events {
		if ev.Content != "" && strings.Contains(strings.ToLower(ev.Content), needle) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Events returns a copy of a tier's events, oldest first.
func (s *Store) Events(tier Tier) ([]Event, error) {
	events, err := s.tierEvents(tier)
	if err != nil {
		return nil, err
	}
	return append([]Event(nil), events...), nil
}

func (s *Store) tierEvents(tier Tier) ([]Event, error) {
	switch tier {
	case Immediate:
		return s.doc.Layers.L0.Events, nil
	case ShortTerm:
		return s.doc.Layers.L1.Events, nil
	case LongTerm:
		return s.doc.Layers.L2.Events, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownTier, tier)
}

// Stats summarizes the store.
type Stats struct {
	L0          int `json:"L0"`
	L1          int `json:"L1"`
	L2          int `json:"L2"`
	TotalEvents int `json:"totalEvents"`
	Preferences int `json:"preferences"`
	Patterns    int `json:"patterns"`
}

// Stats returns tier sizes and learning counters.
func (s *Store) Stats() Stats {
	d := s.doc
	return Stats{
		L0:          len(d.Layers.L0.Events),
		L1:          len(d.Layers.L1.Events),
		L2:          len(d.Layers.L2.Events),
		TotalEvents: d.Learning.Stats.TotalEvents,
		Preferences: len(d.Learning.Preferences),
		Patterns:    len(d.Learning.Patterns),
	}
}

// Learning exposes the learned state for ranking. Callers must not mutate it.
func (s *Store) Learning() *learning.State { return s.doc.Learning }

// Preferences returns a deep copy of the per-type preferences.
func (s *Store) Preferences() map[string]learning.Preference {
	out := make(map[string]learning.Preference, len(s.doc.Learning.Preferences))
	for typ, p := range s.doc.Learning.Preferences {
		kw := make(map[string]int, len(p.Keywords))
		for k, n := range p.Keywords {
			kw[k] = n
		}
		out[typ] = learning.Preference{Keywords: kw, Count: p.Count}
	}
	return out
}

// Patterns returns a deep copy of the learned patterns.
func (s *Store) Patterns() []learning.Pattern {
	out := make([]learning.Pattern, 0, len(s.doc.Learning.Patterns))
	for _, p := range s.doc.Learning.Patterns {
		data := make(map[string]int, len(p.Data))
		for k, n := range p.Data {
			data[k] = n
		}
		out = append(out, learning.Pattern{Type: p.Type, Data: data})
	}
	return out
}

// Capacity returns the configured maximum of a bounded tier, 0 for L2.
func (s *Store) Capacity(tier Tier) int {
	switch tier {
	case Immediate:
		return s.doc.Layers.L0.MaxSize
	case ShortTerm:
		return s.doc.Layers.L1.MaxSize
	}
	return 0
}

func (s *Store) save() error {
	d := s.doc
	d.Meta.Updated = s.opts.Now().UTC()
	d.Layers.L2.Patterns = d.Learning.Patterns
	d.Layers.L2.Preferences = d.Learning.Preferences

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode event store: %w", err)
	}
	return fsutil.WriteAtomic(s.path, data)
}

// ReadSnapshot loads a store document without creating or modifying it.
// A missing file returns an error wrapping os.ErrNotExist.
func ReadSnapshot(path string) (*Document, error) {
	return readDocument(path)
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event store: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse event store %s: %w", path, err)
	}
	return &doc, nil
}

func newEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func pick(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
