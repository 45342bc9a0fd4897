package help

import (
	"fmt"
	"strings"
)

// FormatTerminal renders a subcommand's help text for --help output.
func FormatTerminal(c Command) string {
	var sections []string

	sections = append(sections, fmt.Sprintf("focusbot %s — %s", c.Name, c.Synopsis))
	sections = append(sections, fmt.Sprintf("Usage: %s", c.Usage))

	// Args and flags share one description column.
	maxNameLen := 0
	for _, a := range c.Args {
		maxNameLen = max(maxNameLen, len(a.Name))
	}
	for _, f := range c.Flags {
		maxNameLen = max(maxNameLen, len(f.Name))
	}
	col := 2 + maxNameLen + 3
	if len(c.Args) > 0 && len(c.Flags) > 0 && col < 13 {
		col = 13
	}

	if len(c.Args) > 0 {
		lines := []string{"Arguments:"}
		for _, a := range c.Args {
			lines = append(lines, fmt.Sprintf("  %s%s%s", a.Name, strings.Repeat(" ", col-2-len(a.Name)), a.Desc))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(c.Flags) > 0 {
		lines := []string{"Flags:"}
		for _, f := range c.Flags {
			lines = append(lines, fmt.Sprintf("  %s%s%s", f.Name, strings.Repeat(" ", col-2-len(f.Name)), f.Desc))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if c.Description != "" {
		sections = append(sections, c.Description)
	}

	if len(c.Examples) > 0 {
		lines := []string{"Examples:"}
		for _, e := range c.Examples {
			lines = append(lines, "  "+e)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n") + "\n"
}

// FormatUsage renders the top-level usage text (for focusbot --help).
func FormatUsage(top Command, subs []Command) string {
	var b strings.Builder

	fmt.Fprintf(&b, "focusbot %s — %s\n", Version, top.Synopsis)
	b.WriteString("\nUsage:\n")

	type entry struct {
		usage string
		brief string
	}
	entries := make([]entry, 0, len(subs)+1)
	for _, s := range subs {
		entries = append(entries, entry{s.Usage, s.Brief})
	}
	entries = append(entries, entry{"focusbot help [command]", "Show help for a command"})

	maxWidth := 0
	for _, e := range entries {
		maxWidth = max(maxWidth, len(e.usage))
	}
	for _, e := range entries {
		gap := maxWidth - len(e.usage) + 3
		fmt.Fprintf(&b, "  %s%s%s\n", e.usage, strings.Repeat(" ", gap), e.brief)
	}

	if len(top.Flags) > 0 {
		b.WriteString("\nGlobal flags:\n")
		for _, f := range top.Flags {
			fmt.Fprintf(&b, "  %s   %s\n", f.Name, f.Desc)
		}
	}

	b.WriteString(`
Configuration: ~/.config/focusbot/config.toml
Secrets (environment or .env): TELEGRAM_BOT_TOKEN, ALLOWED_USER_IDS,
  and the API keys named by llm.api_key_env and transcription.api_key_env
`)
	return b.String()
}
