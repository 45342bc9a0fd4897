package prompts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	for _, name := range Names() {
		text := Default(name)
		assert.NotEmpty(t, text, name)
		assert.Equal(t, strings.TrimSpace(text), text, name)
	}
	assert.Contains(t, Default(VoiceAssistant), `{"action": "save"}`)
	assert.Contains(t, Default(NoteCapture), "{{message}}{{urlContext}}")
	assert.Contains(t, Default(VideoSummary), "{{transcript}}")
	assert.Contains(t, Default(ArticleSummary), "{{articleText}}")
}

func TestGet_DefaultsAndVars(t *testing.T) {
	l := New("", zap.NewNop())
	got := l.Get(ArticleSummary, map[string]string{
		"titleContext": "Article title: \"X\"\n\n",
		"articleText":  "BODY",
	})
	assert.True(t, strings.HasPrefix(got, "Article title: \"X\"\n\nSummarize this article"))
	assert.True(t, strings.HasSuffix(got, "Article text:\nBODY"))
	assert.NotContains(t, got, "{{")
}

func TestGet_Override(t *testing.T) {
	dir := t.TempDir()
	ns := filepath.Join(dir, Namespace)
	require.NoError(t, os.MkdirAll(ns, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ns, "video-summary.md"), []byte("\n Custom {{transcript}} \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ns, "article-summary.md"), []byte("   \n"), 0o644))

	l := New(dir, zap.NewNop())
	assert.Equal(t, "Custom T", l.Get(VideoSummary, map[string]string{"transcript": "T"}))
	// Blank override files fall back to the default.
	assert.Equal(t, Default(ArticleSummary), l.Get(ArticleSummary, nil))
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	ns := filepath.Join(dir, Namespace)
	require.NoError(t, os.MkdirAll(ns, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ns, "note-capture.md"), []byte("mine"), 0o644))

	l := New(dir, zap.NewNop())
	created, err := l.Seed()
	require.NoError(t, err)
	assert.Len(t, created, 3)

	data, err := os.ReadFile(filepath.Join(ns, "note-capture.md"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data), "existing prompt must not be overwritten")

	data, err = os.ReadFile(filepath.Join(ns, "voice-assistant.md"))
	require.NoError(t, err)
	assert.Equal(t, Default(VoiceAssistant), string(data))

	again, err := l.Seed()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSeed_Disabled(t *testing.T) {
	created, err := New("", zap.NewNop()).Seed()
	require.NoError(t, err)
	assert.Nil(t, created)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	path := filepath.Join(dir, Namespace, "article-summary.md")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher is up and has seen it.
		os.WriteFile(path, []byte("live edit"), 0o644)
		return l.Get(ArticleSummary, nil) == "live edit"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return l.Get(ArticleSummary, nil) == Default(ArticleSummary)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
