package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the focusbot config directory path.
// Uses $XDG_CONFIG_HOME/focusbot if set, otherwise ~/.config/focusbot.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "focusbot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "focusbot")
}

// WriteDefault writes a default config.toml pointing to notesDir.
// Returns the config file path. Skips if config.toml already exists.
func WriteDefault(notesDir string) (string, error) {
	dir := ConfigDir()
	path := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(path); err == nil {
		return path, nil // already exists
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	content := fmt.Sprintf(`# Secrets are read from the environment (or a .env file):
#   TELEGRAM_BOT_TOKEN, ALLOWED_USER_IDS, ANTHROPIC_API_KEY, GROQ_API_KEY
notes_dir = %q
prompts_dir = ""

[telegram]
base_url = "https://api.telegram.org"
poll_timeout_seconds = 30
request_timeout_seconds = 15
notify_on_start = true

[llm]
provider = "openai"
base_url = "https://api.anthropic.com/v1"
api_key_env = "ANTHROPIC_API_KEY"
capture_model = "claude-haiku-4-5"
enrichment_model = "claude-haiku-4-5"
timeout_seconds = 60

[transcription]
base_url = "https://api.groq.com/openai/v1"
api_key_env = "GROQ_API_KEY"
model = "whisper-large-v3-turbo"

[enrichment]
enabled = true
max_concurrency = 4

[publish]
enabled = true
author_name = "Focus Bot"

[youtube]
yt_dlp_path = "~/.local/bin/yt-dlp"
timeout_seconds = 30

[logging]
level = "info"
file = ""
transcript_log = ""

[health]
enabled = false
addr = "127.0.0.1:8085"

[archive]
compress = true
`, CompressHome(notesDir))

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}

	return path, nil
}

// CompressHome replaces $HOME prefix with ~/ for portable config values.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
