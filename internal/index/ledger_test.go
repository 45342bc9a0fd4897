package index

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), ".focusbot", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndGet(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	captured := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	require.NoError(t, l.RecordCapture(ctx, Entry{
		Path:       "/vault/Bookmarks/Go.md",
		Title:      "Go",
		Source:     "telegram",
		URLs:       []string{"https://go.dev"},
		CapturedAt: captured,
	}))

	e, ok, err := l.Get(ctx, "/vault/Bookmarks/Go.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Go", e.Title)
	assert.Equal(t, []string{"https://go.dev"}, e.URLs)
	assert.True(t, e.CapturedAt.Equal(captured))
	assert.True(t, e.EnrichedAt.IsZero())

	_, ok, err = l.Get(ctx, "/missing.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBeginEnrichment_OnlyOnce(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	require.NoError(t, l.RecordCapture(ctx, Entry{Path: "/n.md", Title: "N"}))

	ok, err := l.BeginEnrichment(ctx, "/n.md")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.BeginEnrichment(ctx, "/n.md")
	require.NoError(t, err)
	assert.False(t, ok)

}

func TestRecordCapture_ReusedPathStartsFresh(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	require.NoError(t, l.RecordCapture(ctx, Entry{Path: "/Tea.md", Title: "Tea"}))
	ok, err := l.BeginEnrichment(ctx, "/Tea.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.FinishEnrichment(ctx, "/Tea.md", 2))
	require.NoError(t, l.SetPublished(ctx, "/Tea.md", "https://telegra.ph/Tea"))

	done, err := l.Enriched(ctx, "/Tea.md")
	require.NoError(t, err)
	assert.True(t, done)

	// The old note was removed and a new capture got the same file name.
	require.NoError(t, l.RecordCapture(ctx, Entry{Path: "/Tea.md", Title: "Tea"}))

	e, found, err := l.Get(ctx, "/Tea.md")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, e.EnrichedAt.IsZero())
	assert.Zero(t, e.Sections)
	assert.Empty(t, e.PublishedURL)

	done, err = l.Enriched(ctx, "/Tea.md")
	require.NoError(t, err)
	assert.False(t, done)

	ok, err = l.BeginEnrichment(ctx, "/Tea.md")
	require.NoError(t, err)
	assert.True(t, ok, "the new capture gets its own enrichment pass")
}

func TestReleaseEnrichment(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	require.NoError(t, l.RecordCapture(ctx, Entry{Path: "/n.md", Title: "N"}))

	ok, err := l.BeginEnrichment(ctx, "/n.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.ReleaseEnrichment(ctx, "/n.md"))

	ok, err = l.BeginEnrichment(ctx, "/n.md")
	require.NoError(t, err)
	assert.True(t, ok, "released claim can be taken again")

	// A finished pass stays claimed.
	require.NoError(t, l.FinishEnrichment(ctx, "/n.md", 1))
	require.NoError(t, l.ReleaseEnrichment(ctx, "/n.md"))
	ok, err = l.BeginEnrichment(ctx, "/n.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBeginEnrichment_Concurrent(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.BeginEnrichment(ctx, "/unrecorded.md")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)
}

func TestFinishPublishAndStats(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	for _, p := range []string{"/a.md", "/b.md", "/c.md"} {
		require.NoError(t, l.RecordCapture(ctx, Entry{Path: p}))
	}
	_, err := l.BeginEnrichment(ctx, "/a.md")
	require.NoError(t, err)
	_, err = l.BeginEnrichment(ctx, "/b.md")
	require.NoError(t, err)
	require.NoError(t, l.FinishEnrichment(ctx, "/a.md", 2))
	require.NoError(t, l.SetPublished(ctx, "/a.md", "https://telegra.ph/a"))

	s, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Notes: 3, Pending: 1, Enriched: 1, Published: 1}, s)

	e, _, err := l.Get(ctx, "/a.md")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Sections)
	assert.Equal(t, "https://telegra.ph/a", e.PublishedURL)
	assert.False(t, e.EnrichedAt.IsZero())
}

func TestRecent(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []string{"/old.md", "/mid.md", "/new.md"} {
		require.NoError(t, l.RecordCapture(ctx, Entry{Path: p, CapturedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	got, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/new.md", got[0].Path)
	assert.Equal(t, "/mid.md", got[1].Path)
}
