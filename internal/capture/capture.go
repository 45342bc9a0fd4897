// Package capture turns a text message into a new note in the vault.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/extract"
	"github.com/suykerbuyk/focusbot/internal/index"
	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/prompts"
	"github.com/suykerbuyk/focusbot/internal/render"
	"github.com/suykerbuyk/focusbot/internal/vault"
)

// ErrInvalidMetadata means the model's note metadata failed validation.
var ErrInvalidMetadata = errors.New("invalid note metadata")

// Result describes a captured note.
type Result struct {
	Title    string
	FilePath string
	URLs     []string
}

type metadata struct {
	Title string   `json:"title" validate:"required,min=1,max=100"`
	Tags  []string `json:"tags" validate:"min=1,max=8,dive,required"`
	Body  string   `json:"body" validate:"required"`
}

// MetadataFetcher looks up page metadata for a URL.
type MetadataFetcher interface {
	Metadata(ctx context.Context, rawURL string) (extract.Metadata, error)
}

// Recorder keeps a ledger of captured notes.
type Recorder interface {
	RecordCapture(ctx context.Context, e index.Entry) error
}

type Deps struct {
	Vault    *vault.Vault
	Fetcher  MetadataFetcher // optional
	Client   llm.Client
	Prompts  *prompts.Library
	Model    string
	Recorder Recorder // optional
	Logger   *zap.Logger
}

type Service struct {
	vault    *vault.Vault
	fetcher  MetadataFetcher
	client   llm.Client
	prompts  *prompts.Library
	model    string
	recorder Recorder
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		vault:    d.Vault,
		fetcher:  d.Fetcher,
		client:   d.Client,
		prompts:  d.Prompts,
		model:    d.Model,
		recorder: d.Recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("capture"),
		now:      time.Now,
	}
}

// Capture writes text as a new note. Notes sharing a URL are filed under
// Bookmarks/ with the first URL in their frontmatter.
func (s *Service) Capture(ctx context.Context, text string) (Result, error) {
	urls := extract.URLs(text)

	var primary string
	var meta extract.Metadata
	if len(urls) > 0 {
		primary = urls[0]
		if s.fetcher != nil {
			m, err := s.fetcher.Metadata(ctx, primary)
			if err != nil {
				s.logger.Debug("prefetch metadata", zap.String("url", primary), zap.Error(err))
			}
			meta = m
		}
	}

	md, err := s.extractMetadata(ctx, text, urls, meta)
	if err != nil {
		return Result{}, err
	}

	content := render.CaptureNote(render.NoteData{
		Captured: s.now(),
		Source:   render.SourceText,
		URL:      primary,
		Tags:     md.Tags,
		Body:     md.Body,
	})
	path, err := s.vault.Create(md.Title, primary != "", content)
	if err != nil {
		return Result{}, err
	}

	s.record(ctx, index.Entry{Path: path, Title: md.Title, Source: render.SourceText, URLs: urls})
	s.logger.Info("captured", zap.String("path", s.vault.Rel(path)), zap.Int("urls", len(urls)))
	return Result{Title: md.Title, FilePath: path, URLs: urls}, nil
}

// SaveDraft writes a finished voice draft to the vault root.
func (s *Service) SaveDraft(ctx context.Context, title string, tags []string, body string) (string, error) {
	content := render.CaptureNote(render.NoteData{
		Captured: s.now(),
		Source:   render.SourceVoice,
		Tags:     tags,
		Body:     body,
	})
	path, err := s.vault.Create(title, false, content)
	if err != nil {
		return "", err
	}
	s.record(ctx, index.Entry{Path: path, Title: title, Source: render.SourceVoice})
	return path, nil
}

// DiscardDraft removes a draft note that a later revision superseded.
func (s *Service) DiscardDraft(_ context.Context, path string) error {
	if err := s.vault.Remove(path); err != nil {
		return err
	}
	s.logger.Info("discarded superseded draft", zap.String("path", s.vault.Rel(path)))
	return nil
}

func (s *Service) record(ctx context.Context, e index.Entry) {
	if s.recorder == nil {
		return
	}
	e.CapturedAt = s.now()
	if err := s.recorder.RecordCapture(ctx, e); err != nil {
		s.logger.Warn("record capture", zap.String("path", e.Path), zap.Error(err))
	}
}

func (s *Service) extractMetadata(ctx context.Context, text string, urls []string, meta extract.Metadata) (metadata, error) {
	prompt := s.prompts.Get(prompts.NoteCapture, map[string]string{
		"message":    text,
		"urlContext": URLContext(urls, meta),
	})

	resp, err := s.client.Complete(ctx, llm.Request{
		Label:  string(prompts.NoteCapture),
		Model:  s.model,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return metadata{}, fmt.Errorf("metadata extraction: %w", err)
	}

	raw, err := llm.ExtractJSON(resp)
	if err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	var md metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	md.Title = strings.TrimSpace(md.Title)
	if err := s.validate.Struct(md); err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return md, nil
}

// URLContext describes shared links for the note-capture prompt.
func URLContext(urls []string, meta extract.Metadata) string {
	if len(urls) == 0 {
		return ""
	}
	lines := []string{"This message contains URL(s): " + strings.Join(urls, ", ")}
	if meta.Title != "" {
		lines = append(lines, fmt.Sprintf("Page title: %q", meta.Title))
	}
	if meta.Description != "" {
		lines = append(lines, fmt.Sprintf("Page description: %q", meta.Description))
	}
	if meta.SiteName != "" {
		lines = append(lines, "Site: "+meta.SiteName)
	}
	lines = append(lines, "The message is sharing a link/bookmark. Use the page title/description to generate a descriptive note title.")
	return "\n\n" + strings.Join(lines, "\n")
}
