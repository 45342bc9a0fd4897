// Package prompts holds the model prompts. Each prompt has a built-in
// default that a Markdown file in the prompts directory can override.
package prompts

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Namespace is the folder inside the prompts directory holding our files.
const Namespace = "Focus Bot"

type Name string

const (
	NoteCapture    Name = "note-capture"
	VoiceAssistant Name = "voice-assistant"
	VideoSummary   Name = "video-summary"
	ArticleSummary Name = "article-summary"
)

// Names lists every prompt.
func Names() []Name {
	return []Name{NoteCapture, VoiceAssistant, VideoSummary, ArticleSummary}
}

//go:embed defaults/*.md
var defaultFS embed.FS

// Default returns the built-in text of a prompt.
func Default(name Name) string {
	data, err := defaultFS.ReadFile("defaults/" + string(name) + ".md")
	if err != nil {
		panic(fmt.Sprintf("prompts: no default for %q", name))
	}
	return strings.TrimSpace(string(data))
}

// Library resolves prompts, preferring non-empty override files.
type Library struct {
	dir    string // namespace directory, "" when overrides are disabled
	logger *zap.Logger

	mu        sync.RWMutex
	overrides map[Name]string
}

// New returns a Library reading overrides from promptsDir/Focus Bot. An
// empty promptsDir disables overrides.
func New(promptsDir string, logger *zap.Logger) *Library {
	l := &Library{logger: logger.Named("prompts"), overrides: map[Name]string{}}
	if promptsDir != "" {
		l.dir = filepath.Join(promptsDir, Namespace)
		l.Reload()
	}
	return l
}

// Dir returns the override directory.
func (l *Library) Dir() string { return l.dir }

// Get returns the named prompt with every {{key}} replaced from vars.
func (l *Library) Get(name Name, vars map[string]string) string {
	l.mu.RLock()
	tmpl, ok := l.overrides[name]
	l.mu.RUnlock()
	if !ok {
		tmpl = Default(name)
	}
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return tmpl
}

// Reload re-reads every override file.
func (l *Library) Reload() {
	if l.dir == "" {
		return
	}
	next := make(map[Name]string)
	for _, name := range Names() {
		data, err := os.ReadFile(l.path(name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				l.logger.Warn("read prompt override", zap.String("prompt", string(name)), zap.Error(err))
			}
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			next[name] = text
		}
	}
	l.mu.Lock()
	l.overrides = next
	l.mu.Unlock()
}

func (l *Library) path(name Name) string {
	return filepath.Join(l.dir, string(name)+".md")
}

// Seed writes the default of every prompt that has no file yet and returns
// the paths it created.
func (l *Library) Seed() ([]string, error) {
	if l.dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompts dir: %w", err)
	}
	var created []string
	for _, name := range Names() {
		p := l.path(name)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.WriteFile(p, []byte(Default(name)), 0o644); err != nil {
			return created, fmt.Errorf("seed %s: %w", name, err)
		}
		created = append(created, p)
	}
	return created, nil
}

// Watch reloads overrides whenever a file in the override directory
// changes. It blocks until ctx is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create prompts dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	// Files may have changed between New and Add.
	l.Reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.logger.Info("prompt changed", zap.String("file", filepath.Base(ev.Name)))
				l.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watch error", zap.Error(err))
		}
	}
}
