package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suykerbuyk/focusbot/internal/archive"
	"github.com/suykerbuyk/focusbot/internal/classify"
	"github.com/suykerbuyk/focusbot/internal/enrichment"
	"github.com/suykerbuyk/focusbot/internal/health"
	"github.com/suykerbuyk/focusbot/internal/help"
	"github.com/suykerbuyk/focusbot/internal/session"
	"github.com/suykerbuyk/focusbot/internal/telegram"
	"github.com/suykerbuyk/focusbot/internal/transcribe"
)

// shutdownGrace bounds how long queued enrichments may run after a signal.
const shutdownGrace = 2 * time.Minute

func newRunCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:  "run",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := telegram.NewClient(&http.Client{}, cfg.Telegram.BaseURL, cfg.Telegram.Token,
				seconds(cfg.Telegram.RequestTimeoutSeconds))

			a, err := newApp(ctx, cfg, client)
			if err != nil {
				return err
			}
			defer a.Close()
			log := a.logger

			if err := a.vault.EnsureLayout(); err != nil {
				return err
			}
			if written, err := a.prompts.Seed(); err != nil {
				log.Warn("seed prompts", zap.Error(err))
			} else if len(written) > 0 {
				log.Info("seeded prompts", zap.Strings("files", written))
			}

			store := session.NewStore()
			engine := session.NewEngine(store, session.Deps{
				Classifier: classify.New(a.llm, a.prompts, cfg.LLM.CaptureModel),
				Messenger:  client,
				Notes:      a.capture,
				Archiver:   archive.NewDrafts(cfg.DraftArchiveDir(), cfg.Archive.Compress),
				Logger:     log,
			})

			var dispatcher *enrichment.Dispatcher
			var dispatch telegram.Dispatcher
			if cfg.Enrichment.Enabled {
				dispatcher = enrichment.NewDispatcher(a.enricher, log)
				if err := dispatcher.Start(ctx); err != nil {
					return err
				}
				dispatch = dispatcher
			}

			src := &health.Source{
				Started:  time.Now(),
				Sessions: store.Len,
				Pending: func() int64 {
					if dispatcher == nil {
						return 0
					}
					return dispatcher.Pending()
				},
				Ledger: a.ledger,
				Logger: log,
			}

			bot := telegram.New(telegram.Deps{
				Client:      client,
				Engine:      engine,
				Capture:     a.capture,
				Transcriber: transcribe.New(cfg.Transcription, &http.Client{}),
				Dispatcher:  dispatch,
				Status:      src.Status,
				Allowed:     cfg.IsAllowed,
				NotifyUsers: notifyUsers(cfg.Telegram.NotifyOnStart, cfg.Telegram.AllowedUserIDs),
				Exchange:    a.exchange,
				PollTimeout: seconds(cfg.Telegram.PollTimeoutSeconds),
				Logger:      log,
			})
			bot.Announce(ctx)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return bot.Run(gctx) })
			g.Go(func() error {
				if err := a.prompts.Watch(gctx); err != nil {
					log.Warn("prompt watcher stopped", zap.Error(err))
				}
				return nil
			})
			if cfg.Health.Enabled {
				g.Go(func() error {
					return health.NewServer(cfg.Health.Addr, src, log).Run(gctx)
				})
			}

			log.Info("focusbot running",
				zap.String("version", help.Version),
				zap.String("notes_dir", cfg.NotesDir),
				zap.Int("allowed_users", len(cfg.Telegram.AllowedUserIDs)),
				zap.Bool("enrichment", cfg.Enrichment.Enabled))
			runErr := g.Wait()

			log.Info("shutting down")
			if dispatcher != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := dispatcher.Close(closeCtx); err != nil {
					log.Warn("enrichment shutdown", zap.Error(err), zap.Int64("abandoned", dispatcher.Pending()))
				}
			}
			return runErr
		},
	}
	return briefed(cmd, help.CmdRun)
}

func notifyUsers(enabled bool, ids []int64) []int64 {
	if !enabled {
		return nil
	}
	return ids
}
