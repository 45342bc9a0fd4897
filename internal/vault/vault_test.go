package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	v := New(t.TempDir())

	path, err := v.Create("My Idea", false, "content\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.Root(), "My Idea.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(data))
}

func TestCreate_Collision(t *testing.T) {
	v := New(t.TempDir())

	first, err := v.Create("Same", false, "one")
	require.NoError(t, err)
	second, err := v.Create("Same", false, "two")
	require.NoError(t, err)
	third, err := v.Create("Same", false, "three")
	require.NoError(t, err)

	assert.Equal(t, "Same.md", filepath.Base(first))
	assert.Equal(t, "Same 2.md", filepath.Base(second))
	assert.Equal(t, "Same 3.md", filepath.Base(third))

	data, _ := os.ReadFile(first)
	assert.Equal(t, "one", string(data), "first note must not be overwritten")
}

func TestCreate_Bookmark(t *testing.T) {
	v := New(t.TempDir())

	path, err := v.Create("Link: a/b", true, "x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.BookmarksDir(), "Link- a-b.md"), path)
}

func TestWriteAndRead(t *testing.T) {
	v := New(t.TempDir())
	path, err := v.Create("Note", false, "old")
	require.NoError(t, err)

	require.NoError(t, v.Write(path, "new"))
	got, err := v.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	entries, _ := os.ReadDir(v.Root())
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWrite_MissingDir(t *testing.T) {
	v := New(t.TempDir())
	err := v.Write(filepath.Join(v.Root(), "gone", "n.md"), "x")
	assert.Error(t, err)
}

func TestRelAndTitle(t *testing.T) {
	v := New("/vault")
	assert.Equal(t, "Bookmarks/A.md", v.Rel("/vault/Bookmarks/A.md"))
	assert.Equal(t, "/elsewhere/B.md", v.Rel("/elsewhere/B.md"))
	assert.Equal(t, "A", Title("/vault/Bookmarks/A.md"))
}

func TestEnsureLayout(t *testing.T) {
	v := New(t.TempDir())
	require.NoError(t, v.EnsureLayout())
	info, err := os.Stat(v.BookmarksDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemove(t *testing.T) {
	v := New(t.TempDir())
	path, err := v.Create("Old Draft", false, "stale")
	require.NoError(t, err)

	require.NoError(t, v.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, v.Remove(path), "removing a missing note is fine")

	outside := filepath.Join(t.TempDir(), "keep.md")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.Error(t, v.Remove(outside))
	_, err = os.Stat(outside)
	assert.NoError(t, err, "notes outside the vault are left alone")
}
