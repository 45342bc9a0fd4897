package check

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/suykerbuyk/focusbot/internal/config"
	"github.com/suykerbuyk/focusbot/internal/index"
	"github.com/suykerbuyk/focusbot/internal/noteparse"
	"github.com/suykerbuyk/focusbot/internal/prompts"
	"github.com/suykerbuyk/focusbot/internal/telegram"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "focusbot check\n\n  no checks ran\n"
	}

	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("focusbot check\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckConfig reports the config file in use and any validation errors.
func CheckConfig(path string, cfg config.Config) Result {
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	detail := config.CompressHome(path)
	if _, err := os.Stat(path); err != nil {
		detail += " (not found, using defaults)"
	}
	if err := cfg.Validate(); err != nil {
		msgs := strings.ReplaceAll(err.Error(), "\n", "; ")
		return Result{Name: "config", Status: Fail, Detail: msgs}
	}
	return Result{Name: "config", Status: Pass, Detail: detail}
}

// CheckNotesDir checks whether the notes directory exists.
func CheckNotesDir(path string) Result {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Result{Name: "vault", Status: Pass, Detail: config.CompressHome(path)}
	}
	return Result{Name: "vault", Status: Fail, Detail: path + " not found"}
}

// CheckObsidian checks whether .obsidian/ exists inside the vault.
func CheckObsidian(path string) Result {
	obsDir := filepath.Join(path, ".obsidian")
	if info, err := os.Stat(obsDir); err == nil && info.IsDir() {
		return Result{Name: "obsidian", Status: Pass, Detail: ".obsidian/ found"}
	}
	return Result{Name: "obsidian", Status: Warn, Detail: ".obsidian/ not found (not yet opened in Obsidian)"}
}

// CheckBookmarks reports the URL notes and how many carry an enrichment
// summary or a published page.
func CheckBookmarks(dir string) Result {
	if _, err := os.ReadDir(dir); err != nil {
		return Result{Name: "bookmarks", Status: Warn, Detail: "Bookmarks/ not found (created on first run)"}
	}
	var notes, published int
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		notes++
		note, err := noteparse.ParseFile(path)
		if err == nil && note.Fields()["telegraph"] != "" {
			published++
		}
		return nil
	})
	return Result{Name: "bookmarks", Status: Pass, Detail: fmt.Sprintf("Bookmarks/ (%d notes, %d published)", notes, published)}
}

// CheckStateDir checks whether the .focusbot state directory exists.
func CheckStateDir(stateDir string) Result {
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		return Result{Name: "state", Status: Pass, Detail: ".focusbot/ found"}
	}
	return Result{Name: "state", Status: Warn, Detail: ".focusbot/ not found (fresh vault)"}
}

// CheckLedger opens the capture ledger without creating it.
func CheckLedger(ctx context.Context, path string) Result {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{Name: "ledger", Status: Warn, Detail: "index.db not created yet"}
	}
	l, err := index.Open(path)
	if err != nil {
		return Result{Name: "ledger", Status: Fail, Detail: err.Error()}
	}
	defer l.Close()
	st, err := l.Stats(ctx)
	if err != nil {
		return Result{Name: "ledger", Status: Fail, Detail: err.Error()}
	}
	detail := fmt.Sprintf("index.db (%d notes, %d enriched, %d published)", st.Notes, st.Enriched, st.Published)
	if st.Pending > 0 {
		return Result{Name: "ledger", Status: Warn, Detail: fmt.Sprintf("%s, %d unfinished enrichments", detail, st.Pending)}
	}
	return Result{Name: "ledger", Status: Pass, Detail: detail}
}

// CheckTelegram checks the bot token and allow-list. With a client it
// also asks the Bot API who the token belongs to.
func CheckTelegram(ctx context.Context, tcfg config.TelegramConfig, client *telegram.Client) Result {
	switch {
	case tcfg.Token == "":
		return Result{Name: "telegram", Status: Fail, Detail: "TELEGRAM_BOT_TOKEN not set"}
	case len(tcfg.AllowedUserIDs) == 0:
		return Result{Name: "telegram", Status: Fail, Detail: "ALLOWED_USER_IDS not set"}
	}
	users := fmt.Sprintf("%d allowed users", len(tcfg.AllowedUserIDs))
	if client == nil {
		return Result{Name: "telegram", Status: Pass, Detail: "token set, " + users}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	me, err := client.GetMe(ctx)
	if err != nil {
		return Result{Name: "telegram", Status: Fail, Detail: err.Error()}
	}
	return Result{Name: "telegram", Status: Pass, Detail: fmt.Sprintf("@%s, %s", me.Username, users)}
}

// CheckLLM checks that the completion provider has a key.
func CheckLLM(lcfg config.LLMConfig) Result {
	if lcfg.APIKey() == "" {
		return Result{Name: "llm", Status: Fail, Detail: lcfg.APIKeyEnv + " not set"}
	}
	return Result{Name: "llm", Status: Pass, Detail: fmt.Sprintf("%s (%s)", lcfg.Provider, lcfg.CaptureModel)}
}

// CheckTranscription checks the speech-to-text key. Without it voice
// drafts fail but text capture still works.
func CheckTranscription(tcfg config.TranscriptionConfig) Result {
	if tcfg.APIKey() == "" {
		return Result{Name: "transcription", Status: Warn, Detail: tcfg.APIKeyEnv + " not set (voice notes disabled)"}
	}
	return Result{Name: "transcription", Status: Pass, Detail: tcfg.Model}
}

// CheckYtDlp checks that the transcript helper is runnable.
func CheckYtDlp(path string) Result {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: "yt-dlp", Status: Warn, Detail: path + " not found (video transcripts disabled)"}
	}
	return Result{Name: "yt-dlp", Status: Pass, Detail: config.CompressHome(resolved)}
}

// CheckPrompts reports which prompts are overridden.
func CheckPrompts(promptsDir string) Result {
	if promptsDir == "" {
		return Result{Name: "prompts", Status: Pass, Detail: "built-in defaults"}
	}
	dir := filepath.Join(promptsDir, prompts.Namespace)
	if _, err := os.Stat(dir); err != nil {
		return Result{Name: "prompts", Status: Warn, Detail: config.CompressHome(dir) + " not found (run focusbot prompts seed)"}
	}
	var overridden []string
	for _, name := range prompts.Names() {
		data, err := os.ReadFile(filepath.Join(dir, string(name)+".md"))
		if err == nil && strings.TrimSpace(string(data)) != "" {
			overridden = append(overridden, string(name))
		}
	}
	if len(overridden) == 0 {
		return Result{Name: "prompts", Status: Pass, Detail: "no overrides in " + config.CompressHome(dir)}
	}
	return Result{Name: "prompts", Status: Pass, Detail: "overrides: " + strings.Join(overridden, ", ")}
}

// Run executes all checks against the given config and returns a report.
// A nil client skips the Bot API round trip.
func Run(ctx context.Context, cfgPath string, cfg config.Config, client *telegram.Client) Report {
	var results []Result

	results = append(results, CheckConfig(cfgPath, cfg))
	results = append(results, CheckNotesDir(cfg.NotesDir))
	results = append(results, CheckObsidian(cfg.NotesDir))
	results = append(results, CheckBookmarks(cfg.BookmarksDir()))
	results = append(results, CheckStateDir(cfg.StateDir()))
	results = append(results, CheckLedger(ctx, cfg.IndexPath()))
	results = append(results, CheckTelegram(ctx, cfg.Telegram, client))
	results = append(results, CheckLLM(cfg.LLM))
	results = append(results, CheckTranscription(cfg.Transcription))
	results = append(results, CheckYtDlp(cfg.YouTube.YtDlpPath))
	results = append(results, CheckPrompts(cfg.PromptsDir))

	return Report{Results: results}
}
