// Package publish posts enrichment summaries to Telegraph as read-only
// pages.
package publish

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
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/config"
)

var ErrPublishFailed = errors.New("publish failed")

const maxTitle = 256

// Telegraph creates pages through the Telegraph API. The access token is
// taken from config or obtained with createAccount on first use.
type Telegraph struct {
	baseURL    string
	shortName  string
	authorName string
	http       *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

func NewTelegraph(cfg config.PublishConfig, httpClient *http.Client, logger *zap.Logger) *Telegraph {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Telegraph{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		shortName:  cfg.ShortName,
		authorName: cfg.AuthorName,
		http:       httpClient,
		logger:     logger.Named("publish"),
		token:      cfg.AccessToken,
	}
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Publish creates a page with text rendered from Markdown and a link to
// sourceURL, returning the page URL.
func (t *Telegraph) Publish(ctx context.Context, title, text, sourceURL string) (string, error) {
	token, err := t.accessToken(ctx)
	if err != nil {
		return "", err
	}

	nodes, err := Nodes(text)
	if err != nil {
		return "", fmt.Errorf("%w: render: %v", ErrPublishFailed, err)
	}
	if sourceURL != "" {
		nodes = append(nodes, Node{Tag: "p", Children: []any{
			"Source: ",
			Node{Tag: "a", Attrs: map[string]string{"href": sourceURL}, Children: []any{sourceURL}},
		}})
	}
	content, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("%w: marshal content: %v", ErrPublishFailed, err)
	}

	form := url.Values{
		"access_token": {token},
		"title":        {clampTitle(title)},
		"author_name":  {t.authorName},
		"content":      {string(content)},
	}
	var page struct {
		URL string `json:"url"`
	}
	if err := t.call(ctx, "createPage", form, &page); err != nil {
		return "", err
	}
	if page.URL == "" {
		return "", fmt.Errorf("%w: createPage returned no url", ErrPublishFailed)
	}
	return page.URL, nil
}

func (t *Telegraph) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" {
		return t.token, nil
	}

	var acct struct {
		AccessToken string `json:"access_token"`
	}
	form := url.Values{"short_name": {t.shortName}, "author_name": {t.authorName}}
	if err := t.call(ctx, "createAccount", form, &acct); err != nil {
		return "", err
	}
	if acct.AccessToken == "" {
		return "", fmt.Errorf("%w: createAccount returned no token", ErrPublishFailed)
	}
	t.token = acct.AccessToken
	t.logger.Info("created telegraph account", zap.String("short_name", t.shortName))
	return t.token, nil
}

func (t *Telegraph) call(ctx context.Context, method string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrPublishFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrPublishFailed, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d: %s", ErrPublishFailed, method, resp.StatusCode, bytes.TrimSpace(body))
	}

	var r apiResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrPublishFailed, method, err)
	}
	if !r.OK {
		return fmt.Errorf("%w: %s: %s", ErrPublishFailed, method, r.Error)
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", ErrPublishFailed, method, err)
	}
	return nil
}

func clampTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Summary"
	}
	for utf8.RuneCountInString(title) > maxTitle {
		_, size := utf8.DecodeLastRuneInString(title)
		title = title[:len(title)-size]
	}
	return title
}
