// Package llm sends single-turn completion requests to a hosted model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/suykerbuyk/focusbot/internal/config"
)

// ErrNoAPIKey is returned by New when the configured key variable is unset.
var ErrNoAPIKey = errors.New("llm API key not set")

// Request is one prompt/response exchange.
type Request struct {
	Label  string // short name for logs, e.g. "voice-assistant"
	Model  string
	System string
	Prompt string
	JSON   bool // ask the provider for a JSON object response
}

// Client completes a prompt and returns the raw response text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the client selected by cfg. Every call is bounded by
// cfg.TimeoutSeconds and, when log is non-nil, recorded in the exchange log.
func New(ctx context.Context, cfg config.LLMConfig, log *ExchangeLog) (Client, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, cfg.APIKeyEnv)
	}

	var c Client
	switch cfg.Provider {
	case "openai", "":
		c = NewOpenAI(cfg.BaseURL, apiKey, http.DefaultClient)
	case "gemini":
		g, err := NewGemini(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		c = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if cfg.TimeoutSeconds > 0 {
		c = WithTimeout(c, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	if log != nil {
		c = WithExchangeLog(c, log)
	}
	return c, nil
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every Complete call on c.
func WithTimeout(c Client, d time.Duration) Client {
	return &timeoutClient{next: c, timeout: d}
}

func (t *timeoutClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON returns the outermost {...} span of s. Models sometimes wrap
// JSON in prose or code fences.
func ExtractJSON(s string) (string, error) {
	m := jsonObjectRe.FindString(s)
	if m == "" {
		return "", errors.New("no JSON object in response")
	}
	return m, nil
}
