package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var divider = strings.Repeat("─", 60)

// ExchangeLog is a plain-text debug log of transcripts and model
// exchanges, written for humans tailing a file.
type ExchangeLog struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewExchangeLog(w io.Writer) *ExchangeLog {
	return &ExchangeLog{w: w, now: time.Now}
}

// Transcript records a voice transcription.
func (l *ExchangeLog) Transcript(text string) {
	if l == nil {
		return
	}
	l.write(fmt.Sprintf("[%s] TRANSCRIPT\n%s\n\n", l.stamp(), text))
}

// Exchange records one prompt and its response.
func (l *ExchangeLog) Exchange(label, prompt, response string) {
	if l == nil {
		return
	}
	if response == "" {
		response = "(no response)"
	}
	l.write(fmt.Sprintf("[%s] %s\n%s\nPROMPT:\n%s\n%s\n%s\nRESPONSE:\n%s\n%s\n%s\n\n",
		l.stamp(), label, divider, divider, prompt, divider, divider, response, divider))
}

func (l *ExchangeLog) stamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

func (l *ExchangeLog) write(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, entry)
}

type loggedClient struct {
	next Client
	log  *ExchangeLog
}

// WithExchangeLog records every exchange made through c.
func WithExchangeLog(c Client, log *ExchangeLog) Client {
	return &loggedClient{next: c, log: log}
}

func (l *loggedClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := l.next.Complete(ctx, req)
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}
	label := req.Label
	if label == "" {
		label = "LLM"
	}
	if err != nil {
		l.log.Exchange(strings.ToUpper(label), prompt, "(error: "+err.Error()+")")
	} else {
		l.log.Exchange(strings.ToUpper(label), prompt, resp)
	}
	return resp, err
}
