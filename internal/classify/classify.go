// Package classify turns one turn of user input into a draft, save, or
// cancel intent using the voice-assistant prompt.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/prompts"
)

// ErrMalformedResponse means the model answered with something other than
// one of the three recognised JSON shapes.
var ErrMalformedResponse = errors.New("malformed classifier response")

// Result is Draft, Save or Cancel.
type Result interface {
	isResult()
}

// Draft is a complete replacement of the note being drafted.
type Draft struct {
	Title string   `json:"title" validate:"required,min=1,max=100"`
	Tags  []string `json:"tags" validate:"min=1,max=8,dive,required"`
	Body  string   `json:"body" validate:"required"`
}

type Save struct{}

type Cancel struct{}

func (Draft) isResult()  {}
func (Save) isResult()   {}
func (Cancel) isResult() {}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a drafting conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the draft the input refers to.
type State struct {
	Title   string
	Tags    []string
	Body    string
	History []Turn
}

// Classifier asks the model for the user's intent.
type Classifier struct {
	client   llm.Client
	prompts  *prompts.Library
	model    string
	validate *validator.Validate
}

func New(client llm.Client, lib *prompts.Library, model string) *Classifier {
	return &Classifier{
		client:   client,
		prompts:  lib,
		model:    model,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Classify returns the intent behind input given the current draft, or
// nil when nothing is being drafted. The raw JSON object is returned too,
// for the conversation history.
func (c *Classifier) Classify(ctx context.Context, input string, state *State) (Result, string, error) {
	resp, err := c.client.Complete(ctx, llm.Request{
		Label:  string(prompts.VoiceAssistant),
		Model:  c.model,
		System: c.prompts.Get(prompts.VoiceAssistant, nil),
		Prompt: BuildPrompt(input, state),
		JSON:   true,
	})
	if err != nil {
		return nil, "", err
	}
	return c.Parse(resp)
}

// Parse validates a model response.
func (c *Classifier) Parse(resp string) (Result, string, error) {
	raw, err := llm.ExtractJSON(resp)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch head.Action {
	case "draft":
		var d Draft
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		d.Title = strings.TrimSpace(d.Title)
		if err := c.validate.Struct(d); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return d, raw, nil
	case "save":
		return Save{}, raw, nil
	case "cancel":
		return Cancel{}, raw, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown action %q", ErrMalformedResponse, head.Action)
	}
}

// BuildPrompt renders the conversation so far, the current note and the
// new input.
func BuildPrompt(input string, state *State) string {
	var parts []string
	if state != nil {
		parts = append(parts, "--- Conversation so far ---")
		for _, t := range state.History {
			label := "User"
			if t.Role == RoleAssistant {
				label = "Assistant"
			}
			parts = append(parts, label+": "+t.Content)
		}
		parts = append(parts, "--- End conversation ---")
		parts = append(parts, fmt.Sprintf("\nCurrent note state:\nTitle: %s\nTags: %s\nBody:\n%s",
			state.Title, strings.Join(state.Tags, ", "), state.Body))
	}
	parts = append(parts, "\nNew user input:\n"+input)
	return strings.TrimPrefix(strings.Join(parts, "\n"), "\n")
}
