// Package help holds the focusbot command reference shared by --help
// output and the generated man pages.
package help

import "strings"

// Version is the focusbot release version, set at build time via -ldflags.
var Version = "dev"

// Flag describes a command-line flag.
type Flag struct {
	Name string // e.g. "--offline" or "--config <path>"
	Desc string
}

// Arg describes a positional argument.
type Arg struct {
	Name string
	Desc string
}

// Command describes a focusbot subcommand (or the binary itself when Name is "").
type Command struct {
	Name        string   // "run", "prompts seed"; "" for top-level
	Synopsis    string   // one-line description (lowercase, for --help header)
	Brief       string   // short description for usage table (capitalized)
	Usage       string   // full usage line
	Args        []Arg
	Flags       []Flag
	Description string   // multi-line prose (stored verbatim)
	Examples    []string // one per line, without leading 2-space indent
	SeeAlso     []string // man page cross-refs, e.g. "focusbot(1)"
}

// ManName returns the man page name: "focusbot" for top-level,
// "focusbot-<name>" for subcommands.
func (c Command) ManName() string {
	if c.Name == "" {
		return "focusbot"
	}
	return "focusbot-" + strings.ReplaceAll(c.Name, " ", "-")
}

// TopLevel is the focusbot binary itself.
var TopLevel = Command{
	Name:     "",
	Synopsis: "Telegram capture bot for an Obsidian vault",
	Flags: []Flag{
		{Name: "--config <path>", Desc: "Config file (default: ~/.config/focusbot/config.toml)"},
	},
}

var CmdRun = Command{
	Name:     "run",
	Synopsis: "run the Telegram bot",
	Brief:    "Run the Telegram bot",
	Usage:    "focusbot run",
	Description: `Long-polls the Telegram Bot API and handles messages from the users in
ALLOWED_USER_IDS.

Text messages are captured as notes right away. Voice messages start a
draft that later voice or text messages refine until the user says
"save" (or reacts with a thumbs up) or "cancel". Notes that contain
links get a summary of each page appended in the background, and the
summary is published to Telegraph.

Stops cleanly on SIGINT or SIGTERM, letting queued enrichments finish.`,
	SeeAlso: []string{"focusbot(1)", "focusbot-check(1)", "focusbot-config-init(1)"},
}

var CmdCapture = Command{
	Name:     "capture",
	Synopsis: "capture text as a note without Telegram",
	Brief:    "Capture text as a note",
	Usage:    "focusbot capture <text>",
	Args: []Arg{
		{Name: "text", Desc: "Note text; remaining arguments are joined with spaces"},
	},
	Flags: []Flag{
		{Name: "--enrich", Desc: "Append link summaries before exiting"},
	},
	Description: `Runs the same capture path as a Telegram text message: the model picks a
title and tags, the note is written to the vault (to Bookmarks/ when the
text contains a link) and recorded in the ledger.`,
	Examples: []string{
		`focusbot capture "call the plumber about the leak"`,
		`focusbot capture --enrich https://go.dev/blog/routing-enhancements`,
	},
	SeeAlso: []string{"focusbot(1)", "focusbot-enrich(1)"},
}

var CmdEnrich = Command{
	Name:     "enrich",
	Synopsis: "append link summaries to an existing note",
	Brief:    "Append link summaries to a note",
	Usage:    "focusbot enrich <note> [url...]",
	Args: []Arg{
		{Name: "note", Desc: "Path to the note, absolute or relative to the vault"},
		{Name: "url", Desc: "Links to summarize (default: links found in the note)"},
	},
	Description: `Fetches metadata and content for each link, summarizes articles and
video transcripts, and appends one section per link to the note. A note
is enriched at most once; the ledger remembers notes already handled.`,
	SeeAlso: []string{"focusbot(1)", "focusbot-capture(1)"},
}

var CmdCheck = Command{
	Name:     "check",
	Synopsis: "validate config and environment health",
	Brief:    "Validate config and environment",
	Usage:    "focusbot check [--offline]",
	Flags: []Flag{
		{Name: "--offline", Desc: "Skip the Telegram getMe round trip"},
	},
	Description: `Runs diagnostic checks and prints a pass/warn/FAIL report:

  config          config file and required settings
  vault           notes directory exists
  obsidian        .obsidian/ present
  bookmarks       Bookmarks/ notes and published pages
  state           .focusbot/ state directory
  ledger          capture ledger readable, unfinished enrichments
  telegram        bot token valid, allow-list set
  llm             model API key set
  transcription   speech-to-text key set
  yt-dlp          transcript helper installed
  prompts         prompt overrides found

Exits with status 1 if any check fails.`,
	SeeAlso: []string{"focusbot(1)", "focusbot-config-init(1)"},
}

var CmdPromptsSeed = Command{
	Name:     "prompts seed",
	Synopsis: "write the default prompts for editing",
	Brief:    "Write default prompts to the prompts dir",
	Usage:    "focusbot prompts seed",
	Description: `Writes each built-in prompt to <prompts_dir>/Focus Bot/<name>.md. Files
that already exist are left alone. A running bot picks up edits to
these files without a restart.`,
	SeeAlso: []string{"focusbot(1)", "focusbot-run(1)"},
}

var CmdConfigInit = Command{
	Name:     "config init",
	Synopsis: "write a default config file",
	Brief:    "Write a default config file",
	Usage:    "focusbot config init [notes-dir]",
	Args: []Arg{
		{Name: "notes-dir", Desc: "Vault directory (default: ~/obsidian/notes)"},
	},
	Description: `Writes ~/.config/focusbot/config.toml (or under $XDG_CONFIG_HOME) unless
it already exists. Secrets stay in the environment or a .env file.`,
	SeeAlso: []string{"focusbot(1)", "focusbot-check(1)"},
}

var CmdVersion = Command{
	Name:     "version",
	Synopsis: "print version",
	Brief:    "Print version",
	Usage:    "focusbot version",
	SeeAlso:  []string{"focusbot(1)"},
}

// Subcommands is the ordered list of all subcommands.
var Subcommands = []Command{
	CmdRun,
	CmdCapture,
	CmdEnrich,
	CmdCheck,
	CmdPromptsSeed,
	CmdConfigInit,
	CmdVersion,
}

// Lookup finds a subcommand by name.
func Lookup(name string) (Command, bool) {
	for _, c := range Subcommands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}
