package learning

import (
	"sort"
	"strconv"
)

// KeywordCount is one keyword with its occurrence count.
type KeywordCount struct {
	Keyword string
	Count   int
}

// TopKeywords returns the n most frequent keywords of an event type, highest
// count first, ties broken alphabetically.
func (s *State) TopKeywords(typ string, n int) []KeywordCount {
	pref, ok := s.Preferences[typ]
	if !ok || pref == nil {
		return nil
	}
	out := make([]KeywordCount, 0, len(pref.Keywords))
	for k, c := range pref.Keywords {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Types returns the preference-tracked event types in sorted order.
func (s *State) Types() []string {
	types := make([]string, 0, len(s.Preferences))
	for t := range s.Preferences {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// PeakHour returns the busiest hour bucket of the time-of-day pattern and its
// count, or ok=false when nothing has been learned.
func (s *State) PeakHour() (hour string, count int, ok bool) {
	p := s.Pattern(TimeOfDay)
	if p == nil {
		return "", 0, false
	}
	best := -1
	for h, c := range p.Data {
		n, err := strconv.Atoi(h)
		if err != nil {
			continue
		}
		if c > count || (c == count && n < best) {
			hour, count, best, ok = h, c, n, true
		}
	}
	return hour, count, ok
}
