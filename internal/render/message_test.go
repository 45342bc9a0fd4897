package render

import (
	"strings"
	"testing"
)

func TestDraftMessage(t *testing.T) {
	got := DraftMessage("Coffee & <Tea>", []string{"ideas"}, "Body with <b>")
	want := "<b>Coffee &amp; &lt;Tea&gt;</b>\u200b.md\n\n---\nTags:\n  - <i>captures</i>\n  - <i>ideas</i>\n---\nBody with &lt;b&gt;"
	if got != want {
		t.Errorf("DraftMessage\ngot:  %q\nwant: %q", got, want)
	}
}

func TestSavedMessage(t *testing.T) {
	got := SavedMessage("Title", nil, "body")
	if !strings.HasPrefix(got, "<b>✅ Title</b>") {
		t.Errorf("SavedMessage = %q", got)
	}
	if !strings.HasSuffix(got, "---\nbody") {
		t.Errorf("saved message should keep the body visible: %q", got)
	}
}
