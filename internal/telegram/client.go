// Package telegram is a small Bot API client and the long-polling bot
// that routes updates to capture and drafting.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxAttempts   = 5
	maxRetryDelay = 60 * time.Second
	maxFileBytes  = 20 << 20
)

// APIError is an ok=false reply from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *APIError) retryable() bool {
	switch {
	case e.Code == http.StatusTooManyRequests:
		return e.RetryAfter <= maxRetryDelay
	case e.Code >= 500:
		return true
	}
	return false
}

type Client struct {
	http           *http.Client
	baseURL        string
	token          string
	requestTimeout time.Duration
	wait           func(ctx context.Context, d time.Duration) error
}

func NewClient(httpClient *http.Client, baseURL, token string, requestTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Client{
		http:           httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		token:          token,
		requestTimeout: requestTimeout,
		wait:           sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// call posts params as JSON and decodes the result into out, retrying
// flood-control and server errors.
func (c *Client) call(ctx context.Context, method string, params, out any, timeout time.Duration) error {
	for attempt := 1; ; attempt++ {
		err := c.do(ctx, method, params, out, timeout)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.retryable() || attempt >= maxAttempts {
			return err
		}
		delay := apiErr.RetryAfter
		if delay <= 0 {
			delay = time.Duration(attempt) * time.Second
		}
		if werr := c.wait(ctx, delay); werr != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method string, params, out any, timeout time.Duration) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/bot"+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, c.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, c.redact(err))
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// redact keeps the bot token out of transport errors, which embed the URL.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && c.token != "" {
		ue.URL = strings.ReplaceAll(ue.URL, c.token, "<token>")
	}
	return err
}

func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", struct{}{}, &u, c.requestTimeout)
	return u, err
}

// GetUpdates long-polls for message and reaction updates and returns them
// with the offset that acknowledges them.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	params := map[string]any{
		"timeout":         secs,
		"allowed_updates": []string{"message", "message_reaction"},
	}
	if offset > 0 {
		params["offset"] = offset
	}

	var updates []Update
	if err := c.do(ctx, "getUpdates", params, &updates, time.Duration(secs)*time.Second+5*time.Second); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// SendMessage sends HTML text and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, &msg, c.requestTimeout)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessage replaces the text of a sent message. Editing to identical
// text is not an error.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	err := c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil, c.requestTimeout)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

// React replaces the bot's reaction on a message with emoji.
func (c *Client) React(ctx context.Context, chatID, messageID int64, emoji string) error {
	return c.call(ctx, "setMessageReaction", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"reaction":   []ReactionType{{Type: "emoji", Emoji: emoji}},
	}, nil, c.requestTimeout)
}

// Notify sends text without waiting for the message id.
func (c *Client) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendMessage(ctx, chatID, text)
	return err
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  action,
	}, nil, c.requestTimeout)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil, c.requestTimeout)
}

func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f, c.requestTimeout)
	return f, err
}

// Download fetches a file previously resolved with GetFile.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, errors.New("telegram download: empty file path")
	}
	reqCtx, cancel := context.WithTimeout(ctx, 4*c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/file/bot"+c.token+"/"+filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", c.redact(err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", c.redact(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram download: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", maxFileBytes)
	}
	return data, nil
}

// DownloadFile resolves fileID and downloads its contents.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, f.FilePath)
}
