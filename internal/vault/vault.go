// Package vault reads and writes note files inside the notes directory.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/suykerbuyk/focusbot/internal/render"
)

// Vault is a notes directory. Captures with a URL go to Bookmarks/.
type Vault struct {
	root string
}

func New(root string) *Vault {
	return &Vault{root: root}
}

func (v *Vault) Root() string { return v.root }

func (v *Vault) BookmarksDir() string {
	return filepath.Join(v.root, "Bookmarks")
}

// EnsureLayout creates the Bookmarks directory if it is missing.
func (v *Vault) EnsureLayout() error {
	if err := os.MkdirAll(v.BookmarksDir(), 0o755); err != nil {
		return fmt.Errorf("create bookmarks dir: %w", err)
	}
	return nil
}

// Create writes a new note named after title and returns its path. An
// existing note is never overwritten; "Title 2.md", "Title 3.md", ... are
// tried instead.
func (v *Vault) Create(title string, bookmark bool, content string) (string, error) {
	dir := v.root
	if bookmark {
		dir = v.BookmarksDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create bookmarks dir: %w", err)
		}
	}

	base := strings.TrimSuffix(render.NoteFilename(title), ".md")
	for i := 1; i < 1000; i++ {
		name := base + ".md"
		if i > 1 {
			name = fmt.Sprintf("%s %d.md", base, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create note: %w", err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write note: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("close note: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("create note: too many notes named %q", base)
}

// Read returns the content of the note at path.
func (v *Vault) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(data), nil
}

// Write replaces the note at path atomically.
func (v *Vault) Write(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".focusbot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp note: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp note: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp note: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmp.Name(), info.Mode().Perm())
	} else {
		os.Chmod(tmp.Name(), 0o644)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace note: %w", err)
	}
	return nil
}

// Remove deletes the note at path. A note that is already gone is not an
// error; paths outside the vault are refused.
func (v *Vault) Remove(path string) error {
	if rel := v.Rel(path); rel == path {
		return fmt.Errorf("remove note: %s is outside the vault", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove note: %w", err)
	}
	return nil
}

// Rel returns path relative to the vault root, or path unchanged when it
// lies outside the vault.
func (v *Vault) Rel(path string) string {
	rel, err := filepath.Rel(v.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Title returns the note title encoded in a note path.
func Title(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}
