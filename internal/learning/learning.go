// Package learning accumulates keyword preferences per event type and
// hour-of-day usage patterns from ingested events.
//
// Counts only ever grow. Nothing is pruned or decayed, so the state grows
// with the vocabulary of ingested content.
package learning

import (
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is the kind of the hour-of-day usage pattern.
const TimeOfDay = "time_of_day"

// MaxKeywords is how many keywords a single event contributes.
const MaxKeywords = 10

var stopWords = map[string]bool{
	"the": true, "is": true, "are": true,
	"的": true, "是": true, "在": true, "了": true, "和": true,
}

// Preference is the keyword profile of one event type.
type Preference struct {
	Keywords map[string]int `json:"keywords"`
	Count    int            `json:"count"`
}

// Pattern is a bucketed usage counter.
type Pattern struct {
	Type string         `json:"type"`
	Data map[string]int `json:"data"`
}

// Stats are the cumulative ingestion counters.
type Stats struct {
	TotalEvents int        `json:"totalEvents"`
	LastUpdate  *time.Time `json:"lastUpdate"`
}

// State is everything learned so far.
type State struct {
	Preferences map[string]*Preference `json:"preferences"`
	Patterns    []*Pattern             `json:"patterns"`
	Stats       Stats                  `json:"stats"`
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Preferences: map[string]*Preference{},
		Patterns:    []*Pattern{},
	}
}

// Learn folds one event into the state: the type's preference record and the
// time-of-day pattern bucket for at's hour in loc.
func (s *State) Learn(typ, content string, at time.Time, loc *time.Location) {
	s.learnPreferences(typ, content)
	s.learnPatterns(at, loc)
}

func (s *State) learnPreferences(typ, content string) {
	if s.Preferences == nil {
		s.Preferences = map[string]*Preference{}
	}
	pref, ok := s.Preferences[typ]
	if !ok || pref == nil {
		pref = &Preference{Keywords: map[string]int{}}
		s.Preferences[typ] = pref
	}
	if pref.Keywords == nil {
		pref.Keywords = map[string]int{}
	}

	pref.Count++
	for _, kw := range Keywords(content) {
		pref.Keywords[kw]++
	}
}

func (s *State) learnPatterns(at time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	hour := strconv.Itoa(at.In(loc).Hour())

	if p := s.Pattern(TimeOfDay); p != nil {
		if p.Data == nil {
			p.Data = map[string]int{}
		}
		p.Data[hour]++
		return
	}
	s.Patterns = append(s.Patterns, &Pattern{Type: TimeOfDay, Data: map[string]int{hour: 1}})
}

// Pattern returns the pattern of the given kind, or nil.
func (s *State) Pattern(kind string) *Pattern {
	for _, p := range s.Patterns {
		if p != nil && p.Type == kind {
			return p
		}
	}
	return nil
}

// Keywords tokenizes text into at most MaxKeywords lowercase keywords.
// Tokens are runs of ASCII letters/digits and CJK ideographs; single-rune
// tokens and stop words are dropped.
func Keywords(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isTokenRune(r)
	})

	var out []string
	for _, w := range words {
		if len([]rune(w)) <= 1 || stopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || (r >= 0x4e00 && r <= 0x9fa5)
}
