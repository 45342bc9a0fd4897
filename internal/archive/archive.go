// Package archive keeps a JSON-lines record of every saved draft
// conversation next to the vault, zstd-compressed by default.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/suykerbuyk/focusbot/internal/session"
)

// Header is the first line of a draft archive.
type Header struct {
	Type    string    `json:"type"`
	UserID  int64     `json:"user_id"`
	Title   string    `json:"title"`
	Tags    []string  `json:"tags"`
	Note    string    `json:"note"`
	Created time.Time `json:"created"`
	Saved   time.Time `json:"saved"`
}

// TurnRecord is one conversation turn.
type TurnRecord struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Drafts archives saved sessions into one directory.
type Drafts struct {
	dir      string
	compress bool
	now      func() time.Time
}

func NewDrafts(dir string, compress bool) *Drafts {
	return &Drafts{dir: dir, compress: compress, now: time.Now}
}

// ArchiveDraft writes s under the base name of its saved note.
func (d *Drafts) ArchiveDraft(s session.Session) error {
	name := strings.TrimSuffix(filepath.Base(s.SavedPath), ".md")
	if s.SavedPath == "" || name == "" {
		return fmt.Errorf("session for user %d has no saved note", s.UserID)
	}

	records := []any{Header{
		Type:    "draft",
		UserID:  s.UserID,
		Title:   s.Title,
		Tags:    s.Tags,
		Note:    s.SavedPath,
		Created: s.Created,
		Saved:   d.now(),
	}}
	for _, t := range s.History {
		records = append(records, TurnRecord{Type: "turn", Role: string(t.Role), Content: t.Content})
	}
	_, err := Write(d.dir, name, records, d.compress)
	return err
}

// Write encodes records as JSON lines into archiveDir/{name}.jsonl[.zst].
// Returns the archive path.
func Write(archiveDir, name string, records []any, compress bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode record: %w", err)
		}
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	destPath := ArchivePath(name, archiveDir, compress)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer dest.Close()

	if !compress {
		if _, err := io.Copy(dest, &buf); err != nil {
			return "", fmt.Errorf("write archive: %w", err)
		}
		return destPath, dest.Close()
	}

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, &buf); err != nil {
		encoder.Close()
		return "", fmt.Errorf("compress: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalize compression: %w", err)
	}

	return destPath, dest.Close()
}

// Read returns the JSON lines of an archive, decompressing .zst files.
func Read(archivePath string) ([]byte, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	if !strings.HasSuffix(archivePath, ".zst") {
		return io.ReadAll(src)
	}

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return data, nil
}

// IsArchived reports whether an archive exists for name in either form.
func IsArchived(name, archiveDir string) bool {
	for _, compress := range []bool{true, false} {
		if _, err := os.Stat(ArchivePath(name, archiveDir, compress)); err == nil {
			return true
		}
	}
	return false
}

// ArchivePath returns the deterministic archive path for name.
func ArchivePath(name, archiveDir string, compress bool) string {
	ext := ".jsonl"
	if compress {
		ext += ".zst"
	}
	return filepath.Join(archiveDir, name+ext)
}
