// Package enrichment appends fetched and summarized link content to a
// freshly captured note, publishes the summary, and tells the user when
// it is done.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suykerbuyk/focusbot/internal/extract"
	"github.com/suykerbuyk/focusbot/internal/noteparse"
	"github.com/suykerbuyk/focusbot/internal/render"
	"github.com/suykerbuyk/focusbot/internal/summarize"
	"github.com/suykerbuyk/focusbot/internal/vault"
)

// ErrNoteWriteFailed means the enriched body could not be written back.
var ErrNoteWriteFailed = errors.New("note write failed")

// Reactions set on the captured message.
const (
	ReactionCaptured = "👍"
	ReactionEnriched = "💯"
)

// Ack identifies the chat message that triggered a capture.
type Ack struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Acker signals progress back to the chat.
type Acker interface {
	React(ctx context.Context, chatID, messageID int64, emoji string) error
	Notify(ctx context.Context, chatID int64, text string) error
}

type PageFetcher interface {
	Metadata(ctx context.Context, rawURL string) (extract.Metadata, error)
	ArticleText(ctx context.Context, rawURL string) (string, error)
}

type TranscriptFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, kind summarize.Kind, title, text string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, title, text, sourceURL string) (string, error)
}

// NoteStore reads and writes note files.
type NoteStore interface {
	Read(path string) (string, error)
	Write(path, content string) error
}

// Ledger tracks which notes were enriched.
type Ledger interface {
	BeginEnrichment(ctx context.Context, path string) (bool, error)
	FinishEnrichment(ctx context.Context, path string, sections int) error
	ReleaseEnrichment(ctx context.Context, path string) error
	Enriched(ctx context.Context, path string) (bool, error)
	SetPublished(ctx context.Context, path, url string) error
}

type Deps struct {
	Pages       PageFetcher
	Transcripts TranscriptFetcher
	Summarizer  Summarizer
	Notes       NoteStore
	Publisher   Publisher // optional
	Ledger      Ledger    // optional
	Acker       Acker     // optional

	MaxConcurrency  int
	MinArticleChars int
	Logger          *zap.Logger
}

type Orchestrator struct {
	pages       PageFetcher
	transcripts TranscriptFetcher
	summarizer  Summarizer
	notes       NoteStore
	publisher   Publisher
	ledger      Ledger
	acker       Acker

	maxConcurrency  int
	minArticleChars int
	logger          *zap.Logger
}

func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.MaxConcurrency <= 0 {
		d.MaxConcurrency = 4
	}
	if d.MinArticleChars <= 0 {
		d.MinArticleChars = 200
	}
	return &Orchestrator{
		pages:           d.Pages,
		transcripts:     d.Transcripts,
		summarizer:      d.Summarizer,
		notes:           d.Notes,
		publisher:       d.Publisher,
		ledger:          d.Ledger,
		acker:           d.Acker,
		maxConcurrency:  d.MaxConcurrency,
		minArticleChars: d.MinArticleChars,
		logger:          logger.Named("enrichment"),
	}
}

// Enrich appends one section per enrichable URL to the note at notePath.
// Failures for single URLs are logged and skipped. When ack is non-nil the
// captured message gets the enriched reaction once the note is final; a
// failed note write suppresses it.
func (o *Orchestrator) Enrich(ctx context.Context, notePath string, urls []string, ack *Ack) error {
	log := o.logger.With(zap.String("note", notePath))

	if o.ledger != nil {
		claimed, err := o.ledger.BeginEnrichment(ctx, notePath)
		if err != nil {
			log.Warn("ledger claim failed", zap.Error(err))
		} else if !claimed {
			log.Info("already enriched")
			// A redelivered request for a finished note re-sets the same
			// reaction; an unfinished pass acks on its own.
			if done, err := o.ledger.Enriched(ctx, notePath); err == nil && done {
				o.ack(ctx, ack)
			}
			return nil
		}
	}

	if len(urls) == 0 {
		o.finish(ctx, notePath, 0)
		o.ack(ctx, ack)
		return nil
	}

	log.Info("enriching", zap.Int("urls", len(urls)))
	sections := o.sections(ctx, urls)
	if len(sections) == 0 {
		log.Info("no enrichment content")
		o.finish(ctx, notePath, 0)
		o.ack(ctx, ack)
		return nil
	}

	content, err := o.notes.Read(notePath)
	if err == nil {
		err = o.notes.Write(notePath, noteparse.AppendBody(content, render.JoinSections(sections)))
	}
	if err != nil {
		log.Error("update note", zap.Error(err))
		if o.ledger != nil {
			if rerr := o.ledger.ReleaseEnrichment(ctx, notePath); rerr != nil {
				log.Warn("release ledger claim", zap.Error(rerr))
			}
		}
		return fmt.Errorf("%w: %s: %w", ErrNoteWriteFailed, notePath, err)
	}
	log.Info("note updated", zap.Int("sections", len(sections)))
	o.finish(ctx, notePath, len(sections))

	if pageURL := o.publish(ctx, notePath, sections, urls[0]); pageURL != "" && ack != nil && o.acker != nil {
		if err := o.acker.Notify(ctx, ack.ChatID, pageURL); err != nil {
			log.Warn("send published url", zap.Error(err))
		}
	}

	o.ack(ctx, ack)
	return nil
}

// sections enriches urls concurrently and returns the non-empty sections
// in URL order.
func (o *Orchestrator) sections(ctx context.Context, urls []string) []string {
	results := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			section, err := o.enrichURL(ctx, u)
			if err != nil {
				o.logger.Warn("enrich url", zap.String("url", u), zap.Error(err))
				return nil
			}
			results[i] = section
			return nil
		})
	}
	g.Wait()

	var out []string
	for _, s := range results {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) enrichURL(ctx context.Context, rawURL string) (string, error) {
	video := extract.IsVideo(rawURL)

	var (
		meta             extract.Metadata
		content          string
		metaErr, bodyErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		meta, metaErr = o.pages.Metadata(ctx, rawURL)
		return nil
	})
	g.Go(func() error {
		if video {
			content, bodyErr = o.transcripts.Fetch(ctx, rawURL)
		} else {
			content, bodyErr = o.pages.ArticleText(ctx, rawURL)
		}
		return nil
	})
	g.Wait()

	if metaErr != nil && bodyErr != nil {
		return "", errors.Join(metaErr, bodyErr)
	}
	if metaErr != nil {
		o.logger.Debug("metadata", zap.String("url", rawURL), zap.Error(metaErr))
	}
	if bodyErr != nil {
		o.logger.Debug("content", zap.String("url", rawURL), zap.Error(bodyErr))
	}

	section := render.Section{
		Title:       meta.Title,
		Description: meta.Description,
		Site:        meta.SiteName,
	}
	if section.Site == "" {
		if video {
			section.Site = "YouTube"
		} else {
			section.Site = extract.Domain(rawURL)
		}
	}

	kind := summarize.Article
	substantial := utf8.RuneCountInString(content) >= o.minArticleChars
	if video {
		kind = summarize.Video
		substantial = content != ""
	}
	if substantial {
		summary, err := o.summarizer.Summarize(ctx, kind, meta.Title, content)
		if err != nil {
			o.logger.Warn("summarize", zap.String("url", rawURL), zap.Error(err))
		} else {
			section.Summary = summary
		}
	}

	return render.EnrichmentSection(section), nil
}

// publish posts the summary and records the page in the note's
// frontmatter. It returns the page URL, or "" when nothing was published.
func (o *Orchestrator) publish(ctx context.Context, notePath string, sections []string, sourceURL string) string {
	if o.publisher == nil {
		return ""
	}
	text := render.SummaryText(sections)
	if text == "" {
		return ""
	}

	log := o.logger.With(zap.String("note", notePath))
	pageURL, err := o.publisher.Publish(ctx, vault.Title(notePath), text, sourceURL)
	if err != nil {
		log.Warn("publish summary", zap.Error(err))
		return ""
	}
	log.Info("published", zap.String("url", pageURL))

	content, err := o.notes.Read(notePath)
	if err == nil {
		err = o.notes.Write(notePath, noteparse.AddFrontmatterLine(content, noteparse.QuotedField("telegraph", pageURL)))
	}
	if err != nil {
		log.Warn("record published url in note", zap.Error(err))
	}
	if o.ledger != nil {
		if err := o.ledger.SetPublished(ctx, notePath, pageURL); err != nil {
			log.Warn("record published url in ledger", zap.Error(err))
		}
	}
	return pageURL
}

func (o *Orchestrator) finish(ctx context.Context, notePath string, sections int) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.FinishEnrichment(ctx, notePath, sections); err != nil {
		o.logger.Warn("ledger finish failed", zap.String("note", notePath), zap.Error(err))
	}
}

func (o *Orchestrator) ack(ctx context.Context, ack *Ack) {
	if ack == nil || o.acker == nil {
		return
	}
	if err := o.acker.React(ctx, ack.ChatID, ack.MessageID, ReactionEnriched); err != nil {
		o.logger.Warn("set reaction", zap.Error(err))
	}
}
