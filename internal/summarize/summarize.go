// Package summarize condenses video transcripts and article text.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suykerbuyk/focusbot/internal/extract"
	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/prompts"
)

var ErrSummarizationFailed = errors.New("summarization failed")

// DefaultMaxInput is the input cap used when none is configured.
const DefaultMaxInput = 50_000

type Kind string

const (
	Video   Kind = "video"
	Article Kind = "article"
)

type Summarizer struct {
	client   llm.Client
	prompts  *prompts.Library
	model    string
	maxInput int
}

func New(client llm.Client, lib *prompts.Library, model string, maxInput int) *Summarizer {
	if maxInput <= 0 {
		maxInput = DefaultMaxInput
	}
	return &Summarizer{client: client, prompts: lib, model: model, maxInput: maxInput}
}

// Summarize returns a plain-text summary of text. title may be empty.
func (s *Summarizer) Summarize(ctx context.Context, kind Kind, title, text string) (string, error) {
	prompt, err := s.prompt(kind, title, extract.Truncate(text, s.maxInput))
	if err != nil {
		return "", err
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		Label:  string(kind) + " summary",
		Model:  s.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", fmt.Errorf("%w: empty response", ErrSummarizationFailed)
	}
	return resp, nil
}

func (s *Summarizer) prompt(kind Kind, title, text string) (string, error) {
	switch kind {
	case Video:
		return s.prompts.Get(prompts.VideoSummary, map[string]string{
			"titleContext": titleContext("Video", title),
			"transcript":   text,
		}), nil
	case Article:
		return s.prompts.Get(prompts.ArticleSummary, map[string]string{
			"titleContext": titleContext("Article", title),
			"articleText":  text,
		}), nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrSummarizationFailed, kind)
	}
}

func titleContext(label, title string) string {
	if title == "" {
		return ""
	}
	return fmt.Sprintf("%s title: %q\n\n", label, title)
}
