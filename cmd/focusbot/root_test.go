package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suykerbuyk/focusbot/internal/help"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHelpUsesReference(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if want := help.FormatUsage(help.TopLevel, help.Subcommands); out != want {
		t.Errorf("root help mismatch:\n%s", out)
	}
}

func TestSubcommandHelp(t *testing.T) {
	for _, c := range help.Subcommands {
		t.Run(c.Name, func(t *testing.T) {
			out, err := execute(t, append(strings.Fields(c.Name), "--help")...)
			if err != nil {
				t.Fatalf("help %s: %v", c.Name, err)
			}
			if want := help.FormatTerminal(c); out != want {
				t.Errorf("help %s mismatch:\ngot:\n%s\nwant:\n%s", c.Name, out, want)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	root := newRootCmd()
	seed, _, err := root.Find([]string{"prompts", "seed"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got := commandName(seed); got != "prompts seed" {
		t.Errorf("commandName = %q, want %q", got, "prompts seed")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "focusbot "+help.Version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	notes := t.TempDir()

	out, err := execute(t, "config", "init", notes)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(xdg, "focusbot", "config.toml")
	if !strings.Contains(out, "config.toml") {
		t.Errorf("output = %q, want config path", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), notes) {
		t.Errorf("config does not point at %s:\n%s", notes, data)
	}
}

func TestCheckFailsOnMissingConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("NOTES_DIR", filepath.Join(t.TempDir(), "missing"))

	out, err := execute(t, "check", "--offline")
	if err != errSilent {
		t.Fatalf("check err = %v, want errSilent", err)
	}
	if !strings.Contains(out, "focusbot check") {
		t.Errorf("report missing header:\n%s", out)
	}
}

func TestNoteURLs(t *testing.T) {
	content := "---\nurl: https://example.com/a\ntags: [x]\n---\n\nSee https://example.com/b for more.\n"
	got := noteURLs(content)
	if len(got) != 2 || got[0] != "https://example.com/a" || got[1] != "https://example.com/b" {
		t.Errorf("noteURLs = %v", got)
	}
}
