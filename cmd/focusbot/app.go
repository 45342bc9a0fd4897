package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/capture"
	"github.com/suykerbuyk/focusbot/internal/config"
	"github.com/suykerbuyk/focusbot/internal/enrichment"
	"github.com/suykerbuyk/focusbot/internal/extract"
	"github.com/suykerbuyk/focusbot/internal/index"
	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/logging"
	"github.com/suykerbuyk/focusbot/internal/prompts"
	"github.com/suykerbuyk/focusbot/internal/publish"
	"github.com/suykerbuyk/focusbot/internal/summarize"
	"github.com/suykerbuyk/focusbot/internal/vault"
)

// app holds the components shared by the bot and the one-shot commands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	exchange *llm.ExchangeLog
	prompts  *prompts.Library
	vault    *vault.Vault
	ledger   *index.Ledger
	llm      llm.Client
	capture  *capture.Service
	enricher *enrichment.Orchestrator

	closers []func() error
}

// newApp wires storage, model and enrichment from cfg. acker may be nil
// when nobody is waiting on a chat reaction.
func newApp(ctx context.Context, cfg config.Config, acker enrichment.Acker) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.logger, err = logging.New(cfg.Logging)
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, func() error {
		_ = a.logger.Sync()
		return nil
	})

	if cfg.Logging.TranscriptLog != "" {
		w := logging.Rotator(cfg.Logging.TranscriptLog)
		a.exchange = llm.NewExchangeLog(w)
		a.closers = append(a.closers, w.Close)
	}

	a.prompts = prompts.New(cfg.PromptsDir, a.logger)
	a.vault = vault.New(cfg.NotesDir)

	a.ledger, err = index.Open(cfg.IndexPath())
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, a.ledger.Close)

	a.llm, err = llm.New(ctx, cfg.LLM, a.exchange)
	if err != nil {
		return a, fmt.Errorf("llm: %w", err)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	fetcher := extract.NewFetcher(extract.Options{
		HTTPClient:      httpClient,
		MetadataTimeout: seconds(cfg.Enrichment.MetadataTimeoutSeconds),
		ArticleTimeout:  seconds(cfg.Enrichment.ArticleTimeoutSeconds),
		MinArticleChars: cfg.Enrichment.MinArticleChars,
		MaxArticleChars: cfg.Enrichment.MaxSummaryInputChars,
		CacheTTL:        time.Duration(cfg.Enrichment.CacheTTLMinutes) * time.Minute,
	}, a.logger)

	a.capture = capture.New(capture.Deps{
		Vault:    a.vault,
		Fetcher:  fetcher,
		Client:   a.llm,
		Prompts:  a.prompts,
		Model:    cfg.LLM.CaptureModel,
		Recorder: a.ledger,
		Logger:   a.logger,
	})

	var publisher enrichment.Publisher
	if cfg.Publish.Enabled {
		publisher = publish.NewTelegraph(cfg.Publish, httpClient, a.logger)
	}
	a.enricher = enrichment.New(enrichment.Deps{
		Pages:           fetcher,
		Transcripts:     extract.NewTranscripts(cfg.YouTube.YtDlpPath, seconds(cfg.YouTube.TimeoutSeconds), a.logger),
		Summarizer:      summarize.New(a.llm, a.prompts, cfg.LLM.EnrichmentModel, cfg.Enrichment.MaxSummaryInputChars),
		Notes:           a.vault,
		Publisher:       publisher,
		Ledger:          a.ledger,
		Acker:           acker,
		MaxConcurrency:  cfg.Enrichment.MaxConcurrency,
		MinArticleChars: cfg.Enrichment.MinArticleChars,
		Logger:          a.logger,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
