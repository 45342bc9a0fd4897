package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all focusbot configuration.
type Config struct {
	NotesDir   string `toml:"notes_dir"`
	PromptsDir string `toml:"prompts_dir"`

	Telegram      TelegramConfig      `toml:"telegram"`
	LLM           LLMConfig           `toml:"llm"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Enrichment    EnrichmentConfig    `toml:"enrichment"`
	Publish       PublishConfig       `toml:"publish"`
	YouTube       YouTubeConfig       `toml:"youtube"`
	Logging       LoggingConfig       `toml:"logging"`
	Health        HealthConfig        `toml:"health"`
	Archive       ArchiveConfig       `toml:"archive"`
}

type TelegramConfig struct {
	Token                 string  `toml:"token"`
	BaseURL               string  `toml:"base_url"`
	AllowedUserIDs        []int64 `toml:"allowed_user_ids"`
	PollTimeoutSeconds    int     `toml:"poll_timeout_seconds"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	NotifyOnStart         bool    `toml:"notify_on_start"`
}

// LLMConfig selects the completion backend. Provider "openai" speaks the
// OpenAI-compatible chat completions protocol against BaseURL; "gemini"
// uses the Google Gen AI SDK.
type LLMConfig struct {
	Provider        string `toml:"provider"`
	BaseURL         string `toml:"base_url"`
	APIKeyEnv       string `toml:"api_key_env"`
	CaptureModel    string `toml:"capture_model"`
	EnrichmentModel string `toml:"enrichment_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

type TranscriptionConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type EnrichmentConfig struct {
	Enabled                bool `toml:"enabled"`
	MaxConcurrency         int  `toml:"max_concurrency"`
	MetadataTimeoutSeconds int  `toml:"metadata_timeout_seconds"`
	ArticleTimeoutSeconds  int  `toml:"article_timeout_seconds"`
	MinArticleChars        int  `toml:"min_article_chars"`
	MaxSummaryInputChars   int  `toml:"max_summary_input_chars"`
	CacheTTLMinutes        int  `toml:"cache_ttl_minutes"`
}

type PublishConfig struct {
	Enabled     bool   `toml:"enabled"`
	BaseURL     string `toml:"base_url"`
	AccessToken string `toml:"access_token"`
	ShortName   string `toml:"short_name"`
	AuthorName  string `toml:"author_name"`
}

type YouTubeConfig struct {
	YtDlpPath      string `toml:"yt_dlp_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LoggingConfig struct {
	Level         string `toml:"level"`
	File          string `toml:"file"`
	Production    bool   `toml:"production"`
	TranscriptLog string `toml:"transcript_log"`
}

type HealthConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type ArchiveConfig struct {
	Compress bool `toml:"compress"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NotesDir: "~/obsidian/notes",
		Telegram: TelegramConfig{
			BaseURL:               "https://api.telegram.org",
			PollTimeoutSeconds:    30,
			RequestTimeoutSeconds: 15,
			NotifyOnStart:         true,
		},
		LLM: LLMConfig{
			Provider:        "openai",
			BaseURL:         "https://api.anthropic.com/v1",
			APIKeyEnv:       "ANTHROPIC_API_KEY",
			CaptureModel:    "claude-haiku-4-5",
			EnrichmentModel: "claude-haiku-4-5",
			TimeoutSeconds:  60,
		},
		Transcription: TranscriptionConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			APIKeyEnv:      "GROQ_API_KEY",
			Model:          "whisper-large-v3-turbo",
			TimeoutSeconds: 60,
		},
		Enrichment: EnrichmentConfig{
			Enabled:                true,
			MaxConcurrency:         4,
			MetadataTimeoutSeconds: 10,
			ArticleTimeoutSeconds:  15,
			MinArticleChars:        200,
			MaxSummaryInputChars:   50_000,
			CacheTTLMinutes:        60,
		},
		Publish: PublishConfig{
			Enabled:    true,
			BaseURL:    "https://api.telegra.ph",
			ShortName:  "focusbot",
			AuthorName: "Focus Bot",
		},
		YouTube: YouTubeConfig{
			YtDlpPath:      "~/.local/bin/yt-dlp",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Health: HealthConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8085",
		},
		Archive: ArchiveConfig{
			Compress: true,
		},
	}
}

// Load reads config from the standard path, falling back to defaults,
// then applies .env and environment overrides.
func Load() (Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches
// the standard locations.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	paths := configPaths()
	if path != "" {
		paths = []string{path}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			break
		} else if path != "" {
			return cfg, fmt.Errorf("stat config %s: %w", p, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	cfg.NotesDir = expandHome(cfg.NotesDir)
	cfg.PromptsDir = expandHome(cfg.PromptsDir)
	cfg.YouTube.YtDlpPath = expandHome(cfg.YouTube.YtDlpPath)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	cfg.Logging.TranscriptLog = expandHome(cfg.Logging.TranscriptLog)

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("ALLOWED_USER_IDS"); v != "" {
		ids, err := ParseUserIDs(v)
		if err != nil {
			return err
		}
		cfg.Telegram.AllowedUserIDs = ids
	}
	if v := os.Getenv("NOTES_DIR"); v != "" {
		cfg.NotesDir = v
	}
	if v := os.Getenv("PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("CAPTURE_MODEL"); v != "" {
		cfg.LLM.CaptureModel = v
	}
	if v := os.Getenv("ENRICHMENT_MODEL"); v != "" {
		cfg.LLM.EnrichmentModel = v
	}
	if v := os.Getenv("TRANSCRIPT_LOG"); v != "" {
		cfg.Logging.TranscriptLog = v
	}
	if v := os.Getenv("YT_DLP_PATH"); v != "" {
		cfg.YouTube.YtDlpPath = v
	}
	return nil
}

// ParseUserIDs parses a comma-separated list of positive Telegram user IDs.
func ParseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("ALLOWED_USER_IDS must be comma-separated positive integers, got %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("ALLOWED_USER_IDS is empty")
	}
	return ids, nil
}

// Validate reports every problem that prevents the bot from starting.
func (c Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		errs = append(errs, errors.New("ALLOWED_USER_IDS is required"))
	}
	switch {
	case c.NotesDir == "":
		errs = append(errs, errors.New("NOTES_DIR is required"))
	case !filepath.IsAbs(c.NotesDir):
		errs = append(errs, errors.New("NOTES_DIR must be an absolute path"))
	default:
		info, err := os.Stat(c.NotesDir)
		if err != nil {
			errs = append(errs, errors.New("NOTES_DIR path does not exist"))
		} else if !info.IsDir() {
			errs = append(errs, errors.New("NOTES_DIR must be a directory"))
		}
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, gemini", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

// IsAllowed reports whether userID is on the allow-list.
func (c Config) IsAllowed(userID int64) bool {
	for _, id := range c.Telegram.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "focusbot", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "focusbot", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// BookmarksDir returns the directory URL-bearing captures are written to.
func (c Config) BookmarksDir() string {
	return filepath.Join(c.NotesDir, "Bookmarks")
}

// StateDir returns the .focusbot state directory inside the notes dir.
func (c Config) StateDir() string {
	return filepath.Join(c.NotesDir, ".focusbot")
}

// IndexPath returns the capture ledger database path.
func (c Config) IndexPath() string {
	return filepath.Join(c.StateDir(), "index.db")
}

// DraftArchiveDir returns where finished draft conversations are archived.
func (c Config) DraftArchiveDir() string {
	return filepath.Join(c.StateDir(), "drafts")
}

// APIKey resolves the LLM API key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// APIKey resolves the transcription API key from the configured environment variable.
func (c TranscriptionConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
