package knowledge

import "strings"

// Status is a knowledge record's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusConflict   Status = "conflict"
	StatusSuperseded Status = "superseded"
	StatusStale      Status = "stale"
)

// ParseStatus reads a frontmatter status value. Decorated legacy values such
// as "⚠️ stale" are recognized by their word; anything else is returned as is.
func ParseStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range []Status{StatusActive, StatusConflict, StatusSuperseded, StatusStale} {
		if v == string(st) || strings.HasSuffix(v, " "+string(st)) {
			return st
		}
	}
	return Status(v)
}
