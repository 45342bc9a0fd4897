package render

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// CapturesTag is always the first tag of a captured note.
const CapturesTag = "captures"

// Note sources recorded in frontmatter.
const (
	SourceText  = "telegram"
	SourceVoice = "telegram-voice"
)

// NoteData holds everything needed to render a captured note.
type NoteData struct {
	Captured time.Time
	Source   string // SourceText or SourceVoice
	URL      string // primary URL, empty for plain captures
	Tags     []string
	Body     string
}

// CaptureNote renders a full Obsidian markdown note from NoteData.
// The title is not part of the content; the filename carries it.
func CaptureNote(d NoteData) string {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString(fmt.Sprintf("captured: %s\n", FormatCaptured(d.Captured)))
	b.WriteString(fmt.Sprintf("source: %s\n", d.Source))
	b.WriteString("status: inbox\n")
	if d.URL != "" {
		b.WriteString(fmt.Sprintf("url: \"%s\"\n", escapeYAML(d.URL)))
	}
	b.WriteString("tags:\n")
	for _, t := range NoteTags(d.Tags) {
		b.WriteString(fmt.Sprintf("  - %s\n", t))
	}
	b.WriteString("---\n")
	b.WriteString(d.Body)
	b.WriteString("\n")

	return b.String()
}

// FormatCaptured formats t as YYYY-MM-DDTHH:mm in local time.
func FormatCaptured(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04")
}

// NoteTags puts CapturesTag first and drops blanks and duplicates.
func NoteTags(tags []string) []string {
	out := []string{CapturesTag}
	seen := map[string]bool{CapturesTag: true}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NoteFilename returns a filesystem-safe filename for a note title.
// Spaces are kept; Obsidian shows the filename as the note title.
func NoteFilename(title string) string {
	name := SanitizeFilename(title)
	if name == "" {
		return fmt.Sprintf("note-%d.md", time.Now().UnixMilli())
	}
	return name + ".md"
}

// SanitizeFilename replaces characters that are illegal in filenames on
// common platforms with "-" and trims the result to 200 bytes.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\?<>:*|"`, r):
			b.WriteRune('-')
		case unicode.IsControl(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if name == "." || name == ".." {
		return ""
	}
	for len(name) > 200 {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.TrimRight(name, ". ")
}

// Section holds the fetched content of one enriched URL.
type Section struct {
	Title       string
	Description string
	Site        string
	Summary     string
}

// EnrichmentSection renders a Section as an Obsidian blockquote with a
// summary callout. It returns "" when there is nothing to show.
func EnrichmentSection(s Section) string {
	var parts []string
	if s.Title != "" {
		parts = append(parts, "> **"+s.Title+"**")
		if s.Description != "" {
			parts = append(parts, "> "+s.Description)
		}
		parts = append(parts, "> — "+s.Site)
	}
	if s.Summary != "" {
		parts = append(parts, "", "> [!summary] Summary")
		for _, line := range strings.Split(s.Summary, "\n") {
			parts = append(parts, "> "+line)
		}
	}
	return strings.Join(parts, "\n")
}

// JoinSections joins rendered sections with a blank line between them.
func JoinSections(sections []string) string {
	return strings.Join(sections, "\n\n")
}

// SummaryText recovers plain text from rendered sections by stripping the
// blockquote prefix and the callout marker.
func SummaryText(sections []string) string {
	var cleaned []string
	for _, line := range strings.Split(JoinSections(sections), "\n") {
		line = strings.TrimPrefix(line, "> ")
		if strings.HasPrefix(line, "[!summary]") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func escapeYAML(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
