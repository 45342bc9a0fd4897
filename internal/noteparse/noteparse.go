// Package noteparse splits Obsidian notes into frontmatter and body without
// re-serializing YAML, so untouched bytes survive every edit.
package noteparse

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var noteRe = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n(.*)\z`)

// Note is a note split at its frontmatter delimiters. Frontmatter excludes
// the delimiter lines.
type Note struct {
	Frontmatter    string
	Body           string
	HasFrontmatter bool
}

// Parse splits content into frontmatter and body. Content without a
// well-formed frontmatter block is all body.
func Parse(content string) Note {
	m := noteRe.FindStringSubmatch(content)
	if m == nil {
		return Note{Body: content}
	}
	return Note{Frontmatter: m[1], Body: m[2], HasFrontmatter: true}
}

// ParseFile reads and parses a note from disk.
func ParseFile(path string) (Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Note{}, err
	}
	return Parse(string(data)), nil
}

// Assemble is the inverse of Parse.
func (n Note) Assemble() string {
	if !n.HasFrontmatter {
		return n.Body
	}
	return "---\n" + n.Frontmatter + "\n---\n" + n.Body
}

// AppendBody appends appendix to the note body, separated from existing
// text by one blank line, and leaves the frontmatter bytes untouched.
func AppendBody(content, appendix string) string {
	n := Parse(content)
	sep := "\n\n"
	if strings.HasSuffix(n.Body, "\n") {
		sep = "\n"
	}
	n.Body = n.Body + sep + appendix + "\n"
	return n.Assemble()
}

// AddFrontmatterLine appends one raw line at the end of the frontmatter
// block, creating the block if the note has none.
func AddFrontmatterLine(content, line string) string {
	n := Parse(content)
	if n.HasFrontmatter {
		n.Frontmatter += "\n" + line
	} else {
		n.Frontmatter = line
		n.HasFrontmatter = true
	}
	return n.Assemble()
}

// QuotedField formats a key with a double-quoted scalar value.
func QuotedField(key, value string) string {
	return fmt.Sprintf("%s: %q", key, value)
}

// Fields returns the top-level scalar key/value pairs of the frontmatter.
// Block lists are collected by List instead.
func (n Note) Fields() map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(n.Frontmatter, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		if idx := strings.IndexByte(line, ':'); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			val := strings.TrimSpace(line[idx+1:])
			if val == "" {
				continue
			}
			fields[key] = stripQuotes(val)
		}
	}
	return fields
}

// List returns the items of a YAML block list ("key:" followed by
// "  - item" lines).
func (n Note) List(key string) []string {
	var items []string
	inList := false
	for _, line := range strings.Split(n.Frontmatter, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inList {
			if trimmed == key+":" && !strings.HasPrefix(line, " ") {
				inList = true
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "- ") {
			break
		}
		items = append(items, stripQuotes(strings.TrimSpace(trimmed[2:])))
	}
	return items
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
