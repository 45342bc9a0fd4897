package help

import (
	"fmt"
	"strings"
	"time"
)

// manPage accumulates roff source for one page.
type manPage struct {
	strings.Builder
}

func newManPage(name, date string) *manPage {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	p := &manPage{}
	fmt.Fprintf(p, ".TH %s 1 %q %q %q\n", strings.ToUpper(name), date, "focusbot "+Version, "Focus Bot Manual")
	return p
}

func (p *manPage) section(title string) {
	p.WriteString(".SH " + title + "\n")
}

// item writes a tagged paragraph: term in bold, desc below it.
func (p *manPage) item(term, desc string) {
	fmt.Fprintf(p, ".TP\n.B %s\n%s\n", term, escapeRoff(desc))
}

func (p *manPage) seeAlso(refs []string) {
	if len(refs) == 0 {
		return
	}
	p.section("SEE ALSO")
	lines := make([]string, len(refs))
	for i, ref := range refs {
		name, sect, ok := strings.Cut(ref, "(")
		if !ok {
			lines[i] = ".B " + escapeRoff(ref)
			continue
		}
		lines[i] = fmt.Sprintf(".BR %s (%s", escapeRoff(name), sect)
	}
	p.WriteString(strings.Join(lines, ",\n") + "\n")
}

// FormatRoff renders a subcommand's man page. An empty date means today.
func FormatRoff(c Command, date string) string {
	p := newManPage(c.ManName(), date)

	p.section("NAME")
	fmt.Fprintf(p, "%s \\- %s\n", c.ManName(), escapeRoff(c.Synopsis))
	p.section("SYNOPSIS")
	p.WriteString(".B " + escapeRoff(c.Usage) + "\n")

	if c.Description != "" {
		p.section("DESCRIPTION")
		writeRoffParagraphs(&p.Builder, c.Description)
	}

	if len(c.Args)+len(c.Flags) > 0 {
		p.section("OPTIONS")
		for _, a := range c.Args {
			p.item(escapeRoff(a.Name), a.Desc)
		}
		for _, f := range c.Flags {
			p.item(escapeRoff(f.Name), f.Desc)
		}
	}

	if len(c.Examples) > 0 {
		p.section("EXAMPLES")
		p.WriteString(".nf\n")
		for _, e := range c.Examples {
			p.WriteString(escapeRoff(e) + "\n")
		}
		p.WriteString(".fi\n")
	}

	p.seeAlso(c.SeeAlso)
	return p.String()
}

// FormatRoffTopLevel renders focusbot.1, which lists every subcommand.
func FormatRoffTopLevel(top Command, subs []Command, date string) string {
	p := newManPage(top.ManName(), date)

	p.section("NAME")
	fmt.Fprintf(p, "focusbot \\- %s\n", escapeRoff(top.Synopsis))
	p.section("SYNOPSIS")
	p.WriteString(".B focusbot\n.I command\n.RI [ options ]\n")

	p.section("DESCRIPTION")
	p.WriteString(".B focusbot\n" +
		"is a Telegram bot that turns text and voice messages into notes in an\n" +
		"Obsidian vault. Voice notes become drafts refined over several\n" +
		"messages; links are summarized and appended in the background.\n")

	if len(top.Flags) > 0 {
		p.section("GLOBAL OPTIONS")
		for _, f := range top.Flags {
			p.item(escapeRoff(f.Name), f.Desc)
		}
	}

	p.section("COMMANDS")
	refs := make([]string, 0, len(subs))
	for _, s := range subs {
		p.item(`"`+escapeRoff(s.Usage)+`"`, s.Brief)
		refs = append(refs, s.ManName()+"(1)")
	}

	p.section("ENVIRONMENT")
	p.item("TELEGRAM_BOT_TOKEN", "Bot API token.")
	p.item("ALLOWED_USER_IDS", "Comma-separated Telegram user ids allowed to use the bot.")
	p.item("NOTES_DIR", "Overrides notes_dir.")

	p.section("FILES")
	p.WriteString("~/.config/focusbot/config.toml\n")

	p.seeAlso(refs)
	return p.String()
}

// escapeRoff escapes backslashes, line-leading dots and hyphens.
func escapeRoff(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n.", "\n\\&.")
	if strings.HasPrefix(s, ".") {
		s = "\\&" + s
	}
	return strings.ReplaceAll(s, "-", "\\-")
}

// writeRoffParagraphs turns runs of blank lines into one .PP break.
func writeRoffParagraphs(b *strings.Builder, text string) {
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if !blank {
				b.WriteString(".PP\n")
			}
			blank = true
			continue
		}
		blank = false
		b.WriteString(escapeRoff(line) + "\n")
	}
}
