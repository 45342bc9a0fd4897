package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/suykerbuyk/focusbot/internal/classify"
	"github.com/suykerbuyk/focusbot/internal/session"
)

func TestWriteReadRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		dir := t.TempDir()
		records := []any{
			map[string]string{"type": "draft", "title": "a <b>"},
			map[string]string{"type": "turn", "content": "hello"},
		}

		path, err := Write(dir, "My Note", records, compress)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if path != ArchivePath("My Note", dir, compress) {
			t.Errorf("path = %q", path)
		}

		data, err := Read(path)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		want := `{"title":"a <b>","type":"draft"}` + "\n" + `{"content":"hello","type":"turn"}` + "\n"
		if string(data) != want {
			t.Errorf("compress=%v content mismatch\ngot:  %q\nwant: %q", compress, data, want)
		}

		raw, _ := os.ReadFile(path)
		if compress == bytes.Equal(raw, data) {
			t.Errorf("compress=%v: on-disk bytes compressed=%v", compress, !bytes.Equal(raw, data))
		}
	}
}

func TestArchiveDraft(t *testing.T) {
	dir := t.TempDir()
	d := NewDrafts(dir, true)
	saved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return saved }

	err := d.ArchiveDraft(session.Session{
		UserID:    7,
		Title:     "Idea",
		Tags:      []string{"ideas"},
		SavedPath: "/vault/Idea.md",
		History: []classify.Turn{
			{Role: classify.RoleUser, Content: "an idea"},
			{Role: classify.RoleAssistant, Content: `{"action":"draft"}`},
		},
	})
	if err != nil {
		t.Fatalf("ArchiveDraft: %v", err)
	}
	if !IsArchived("Idea", dir) {
		t.Fatal("expected archive for Idea")
	}

	data, err := Read(ArchivePath("Idea", dir, true))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatal(err)
	}
	if h.Type != "draft" || h.UserID != 7 || h.Note != "/vault/Idea.md" || !h.Saved.Equal(saved) {
		t.Errorf("header = %+v", h)
	}

	var turn TurnRecord
	if err := json.Unmarshal([]byte(lines[2]), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.Role != "assistant" || turn.Content != `{"action":"draft"}` {
		t.Errorf("turn = %+v", turn)
	}
}

func TestArchiveDraft_NoNote(t *testing.T) {
	if err := NewDrafts(t.TempDir(), true).ArchiveDraft(session.Session{UserID: 1}); err == nil {
		t.Error("expected error for unsaved session")
	}
}

func TestIsArchived(t *testing.T) {
	archiveDir := t.TempDir()

	if IsArchived("note", archiveDir) {
		t.Error("should not be archived yet")
	}

	path := ArchivePath("note", archiveDir, false)
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !IsArchived("note", archiveDir) {
		t.Error("should be archived now")
	}
}

func TestArchivePath(t *testing.T) {
	got := ArchivePath("abc", "/vault/.focusbot/drafts", true)
	want := filepath.Join("/vault/.focusbot/drafts", "abc.jsonl.zst")
	if got != want {
		t.Errorf("ArchivePath = %q, want %q", got, want)
	}
	if got := ArchivePath("abc", "/d", false); got != "/d/abc.jsonl" {
		t.Errorf("ArchivePath plain = %q", got)
	}
}
