// Package frontmatter reads and writes the "---" delimited key: value block
// at the top of a knowledge record.
package frontmatter

import (
	"regexp"
	"strings"
)

// Delimiter opens and closes the block.
const Delimiter = "---"

var (
	blockRe = regexp.MustCompile(`^---\n(?:([\s\S]*?)\n)?---(?:\n|$)`)
	fieldRe = regexp.MustCompile(`^(\w+):\s*(.*)$`)
)

// Field is one key: value line.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered set of frontmatter fields. Order is preserved so that a
// rewritten record only differs in the lines that changed.
type Fields []Field

// Get returns the value for key and whether it is present.
func (f Fields) Get(key string) (string, bool) {
	for _, fd := range f {
		if fd.Key == key {
			return fd.Value, true
		}
	}
	return "", false
}

// Value returns the value for key, or "" when absent.
func (f Fields) Value(key string) string {
	v, _ := f.Get(key)
	return v
}

// Set replaces the value for key in place, or appends it.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Parse splits text into its frontmatter fields and body. Without a leading
// block it returns no fields and the whole text as body. Lines that are not
// key: value pairs are skipped. A repeated key keeps its last value.
func Parse(text string) (Fields, string) {
	loc := blockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Fields{}, text
	}
	body := text[loc[1]:]
	if loc[2] < 0 {
		return Fields{}, body
	}
	block := text[loc[2]:loc[3]]

	fields := Fields{}
	for _, line := range strings.Split(block, "\n") {
		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields.Set(m[1], strings.TrimSpace(m[2]))
	}
	return fields, body
}

// Serialize renders the delimited block, ending with a newline, ready to be
// followed by the body.
func Serialize(fields Fields) string {
	var sb strings.Builder
	sb.WriteString(Delimiter + "\n")
	for _, fd := range fields {
		sb.WriteString(fd.Key)
		sb.WriteString(": ")
		sb.WriteString(fd.Value)
		sb.WriteString("\n")
	}
	sb.WriteString(Delimiter + "\n")
	return sb.String()
}

// Rewrite sets key to value in the block at the top of text and returns the
// new text. Only the key's own line changes; other lines, including ones Parse
// skips such as list items and comments, are kept byte for byte. A missing key
// is appended as the last line of the block, and text without a block gets one.
func Rewrite(text, key, value string) string {
	line := key + ": " + value
	loc := blockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Serialize(Fields{{Key: key, Value: value}}) + text
	}
	if loc[2] < 0 {
		return Delimiter + "\n" + line + "\n" + text[len(Delimiter)+1:]
	}

	lines := strings.Split(text[loc[2]:loc[3]], "\n")
	found := false
	for i, l := range lines {
		if m := fieldRe.FindStringSubmatch(l); m != nil && m[1] == key {
			lines[i] = line
			found = true
		}
	}
	if !found {
		lines = append(lines, line)
	}
	return text[:loc[2]] + strings.Join(lines, "\n") + text[loc[3]:]
}
