// Package extract pulls URLs out of captured text and fetches what they
// point at: page metadata, readable article text and video transcripts.
package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlRe     = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	youtubeRe = regexp.MustCompile(`(?:youtube\.com/watch\?.*v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`)
)

// URLs returns the http(s) URLs in text, in order of first appearance,
// without duplicates.
func URLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// VideoID returns the YouTube video ID in rawURL, or "".
func VideoID(rawURL string) string {
	m := youtubeRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsVideo reports whether rawURL points at a YouTube video.
func IsVideo(rawURL string) bool {
	return VideoID(rawURL) != ""
}

// Domain returns the host of rawURL without a leading "www.", or rawURL
// itself when it does not parse.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
