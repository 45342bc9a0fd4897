package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/check"
	"github.com/suykerbuyk/focusbot/internal/config"
	"github.com/suykerbuyk/focusbot/internal/extract"
	"github.com/suykerbuyk/focusbot/internal/help"
	"github.com/suykerbuyk/focusbot/internal/logging"
	"github.com/suykerbuyk/focusbot/internal/noteparse"
	"github.com/suykerbuyk/focusbot/internal/prompts"
	"github.com/suykerbuyk/focusbot/internal/telegram"
)

func newCaptureCmd(load configLoader) *cobra.Command {
	var enrich bool
	cmd := &cobra.Command{
		Use:  "capture <text>",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.vault.EnsureLayout(); err != nil {
				return err
			}

			res, err := a.capture.Capture(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved: %s\n  %s\n", res.Title, a.vault.Rel(res.FilePath))

			if !enrich || len(res.URLs) == 0 {
				return nil
			}
			if err := a.enricher.Enrich(cmd.Context(), res.FilePath, res.URLs, nil); err != nil {
				return err
			}
			fmt.Fprintf(out, "Enriched: %d links\n", len(res.URLs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&enrich, "enrich", false, "Append link summaries before exiting")
	return briefed(cmd, help.CmdCapture)
}

func newEnrichCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:  "enrich <note> [url...]",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.NotesDir, path)
			}
			content, err := a.vault.Read(path)
			if err != nil {
				return err
			}

			urls := args[1:]
			if len(urls) == 0 {
				urls = noteURLs(content)
			}
			if len(urls) == 0 {
				return fmt.Errorf("%s has no links to enrich", a.vault.Rel(path))
			}

			if entry, ok, err := a.ledger.Get(cmd.Context(), path); err == nil && ok && !entry.EnrichedAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already enriched on %s\n",
					a.vault.Rel(path), entry.EnrichedAt.Local().Format("2006-01-02 15:04"))
				return nil
			}

			a.logger.Info("enriching note", zap.String("note", path), zap.Strings("urls", urls))
			if err := a.enricher.Enrich(cmd.Context(), path, urls, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enriched: %s\n", a.vault.Rel(path))
			return nil
		},
	}
	return briefed(cmd, help.CmdEnrich)
}

// noteURLs returns the note's frontmatter url followed by links in its body.
func noteURLs(content string) []string {
	note := noteparse.Parse(content)
	var text string
	if u := note.Fields()["url"]; u != "" {
		text = u + "\n"
	}
	return extract.URLs(text + note.Body)
}

func newCheckCmd(load configLoader, cfgPath *string) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:  "check",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			var client *telegram.Client
			if !offline && cfg.Telegram.Token != "" {
				client = telegram.NewClient(nil, cfg.Telegram.BaseURL, cfg.Telegram.Token, seconds(cfg.Telegram.RequestTimeoutSeconds))
			}

			report := check.Run(cmd.Context(), *cfgPath, cfg, client)
			fmt.Fprint(cmd.OutOrStdout(), report.Format())
			if report.HasFailures() {
				return errSilent
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Telegram getMe round trip")
	return briefed(cmd, help.CmdCheck)
}

func newPromptsSeedCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:  "seed",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.PromptsDir == "" {
				return errors.New("prompts_dir is not set (config file or PROMPTS_DIR)")
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			lib := prompts.New(cfg.PromptsDir, logger)
			written, err := lib.Seed()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(written) == 0 {
				fmt.Fprintf(out, "All prompts already present in %s\n", config.CompressHome(lib.Dir()))
				return nil
			}
			for _, path := range written {
				fmt.Fprintf(out, "  created %s\n", config.CompressHome(path))
			}
			return nil
		},
	}
	return briefed(cmd, help.CmdPromptsSeed)
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "init [notes-dir]",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notesDir := config.DefaultConfig().NotesDir
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				notesDir = abs
			}
			path, err := config.WriteDefault(notesDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", config.CompressHome(path))
			return nil
		},
	}
	return briefed(cmd, help.CmdConfigInit)
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "version",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "focusbot %s\n", help.Version)
		},
	}
	return briefed(cmd, help.CmdVersion)
}
