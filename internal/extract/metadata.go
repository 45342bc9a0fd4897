package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrFetchFailed wraps every network or HTTP failure while fetching a page.
var ErrFetchFailed = errors.New("fetch failed")

const (
	userAgent        = "FocusBot/1.0 (Obsidian note capture)"
	articleUserAgent = "Mozilla/5.0 (compatible; FocusBot/1.0)"
	maxHeadBytes     = 50_000
	maxPageBytes     = 5 << 20
)

// Metadata is what a page says about itself. Empty fields are unknown.
type Metadata struct {
	Title       string
	Description string
	SiteName    string
}

// OEmbedProvider maps URLs matching Pattern to an oEmbed Endpoint.
type OEmbedProvider struct {
	Pattern  *regexp.Regexp
	Endpoint string
}

// DefaultOEmbedProviders covers sites that block HTML scraping.
func DefaultOEmbedProviders() []OEmbedProvider {
	return []OEmbedProvider{
		{
			Pattern:  regexp.MustCompile(`^https?://(?:www\.)?(?:youtube\.com/watch|youtu\.be/)`),
			Endpoint: "https://www.youtube.com/oembed",
		},
		{
			Pattern:  regexp.MustCompile(`^https?://(?:www\.)?vimeo\.com/`),
			Endpoint: "https://vimeo.com/api/oembed.json",
		},
	}
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	HTTPClient      *http.Client
	MetadataTimeout time.Duration
	ArticleTimeout  time.Duration
	MinArticleChars int
	MaxArticleChars int
	CacheTTL        time.Duration
	OEmbed          []OEmbedProvider
}

// Fetcher fetches page metadata and article text over HTTP. Metadata is
// cached so a capture's prefetch is reused by the enrichment that follows.
type Fetcher struct {
	client          *http.Client
	cache           *cache.Cache
	logger          *zap.Logger
	metadataTimeout time.Duration
	articleTimeout  time.Duration
	minArticleChars int
	maxArticleChars int
	oembed          []OEmbedProvider
}

func NewFetcher(opts Options, logger *zap.Logger) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 10 * time.Second
	}
	if opts.ArticleTimeout <= 0 {
		opts.ArticleTimeout = 15 * time.Second
	}
	if opts.MinArticleChars <= 0 {
		opts.MinArticleChars = 200
	}
	if opts.MaxArticleChars <= 0 {
		opts.MaxArticleChars = 50_000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.OEmbed == nil {
		opts.OEmbed = DefaultOEmbedProviders()
	}
	return &Fetcher{
		client:          opts.HTTPClient,
		cache:           cache.New(opts.CacheTTL, 10*time.Minute),
		logger:          logger.Named("extract"),
		metadataTimeout: opts.MetadataTimeout,
		articleTimeout:  opts.ArticleTimeout,
		minArticleChars: opts.MinArticleChars,
		maxArticleChars: opts.MaxArticleChars,
		oembed:          opts.OEmbed,
	}
}

// Metadata returns the title, description and site name of rawURL. Known
// video hosts are asked over oEmbed first; everything else, and oEmbed
// misses, fall back to the page's OpenGraph and HTML meta tags.
func (f *Fetcher) Metadata(ctx context.Context, rawURL string) (Metadata, error) {
	if v, ok := f.cache.Get(rawURL); ok {
		return v.(Metadata), nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.metadataTimeout)
	defer cancel()

	for _, p := range f.oembed {
		if !p.Pattern.MatchString(rawURL) {
			continue
		}
		meta, err := f.fetchOEmbed(ctx, p.Endpoint, rawURL)
		if err != nil {
			f.logger.Warn("oembed failed", zap.String("url", rawURL), zap.Error(err))
		} else if meta.Title != "" {
			f.cache.SetDefault(rawURL, meta)
			return meta, nil
		}
		break
	}

	meta, err := f.fetchHTMLMetadata(ctx, rawURL)
	if err != nil {
		return Metadata{}, err
	}
	if meta.Title != "" {
		f.cache.SetDefault(rawURL, meta)
	}
	return meta, nil
}

func (f *Fetcher) fetchOEmbed(ctx context.Context, endpoint, rawURL string) (Metadata, error) {
	q := url.Values{}
	q.Set("url", rawURL)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("%w: oembed status %d", ErrFetchFailed, resp.StatusCode)
	}

	var data struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ProviderName string `json:"provider_name"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&data); err != nil {
		return Metadata{}, fmt.Errorf("decode oembed: %w", err)
	}

	meta := Metadata{Title: data.Title, SiteName: data.ProviderName}
	if data.AuthorName != "" {
		meta.Description = "by " + data.AuthorName
	}
	return meta, nil
}

func (f *Fetcher) fetchHTMLMetadata(ctx context.Context, rawURL string) (Metadata, error) {
	body, err := f.getHTML(ctx, rawURL, userAgent, maxHeadBytes)
	if err != nil {
		return Metadata{}, err
	}
	if body == nil {
		return Metadata{}, nil
	}
	return ParseMetadata(string(body)), nil
}

// getHTML fetches rawURL and returns up to limit bytes of its body. A
// non-HTML response yields (nil, nil).
func (f *Fetcher) getHTML(ctx context.Context, rawURL, agent string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", agent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetchFailed, resp.StatusCode, rawURL)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		f.logger.Debug("non-HTML content", zap.String("url", rawURL), zap.String("content_type", ct))
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return body, nil
}

// ParseMetadata reads OpenGraph and standard meta tags from an HTML
// document, which may be truncated.
func ParseMetadata(doc string) Metadata {
	metas := make(map[string]string)
	var title string
	inTitle := false

	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return buildMetadata(metas, title)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Meta:
				var key, content string
				hasContent := false
				for _, a := range tok.Attr {
					switch strings.ToLower(a.Key) {
					case "property", "name":
						if key == "" {
							key = strings.ToLower(a.Val)
						}
					case "content":
						content = a.Val
						hasContent = true
					}
				}
				if key != "" && hasContent {
					if _, ok := metas[key]; !ok {
						metas[key] = content
					}
				}
			case atom.Title:
				inTitle = title == "" && tt == html.StartTagToken
			case atom.Body:
				return buildMetadata(metas, title)
			}
		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = false
			case atom.Head:
				return buildMetadata(metas, title)
			}
		}
	}
}

func buildMetadata(metas map[string]string, title string) Metadata {
	m := Metadata{
		Title:       metas["og:title"],
		Description: metas["og:description"],
		SiteName:    metas["og:site_name"],
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(title)
	}
	if m.Description == "" {
		m.Description = metas["description"]
	}
	return m
}

// ArticleText fetches rawURL and returns its readable text. It returns ""
// without error when the page is not HTML or too short to be an article.
func (f *Fetcher) ArticleText(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.articleTimeout)
	defer cancel()

	body, err := f.getHTML(ctx, rawURL, articleUserAgent, maxPageBytes)
	if err != nil || body == nil {
		return "", err
	}
	return ExtractText(string(body), f.minArticleChars, f.maxArticleChars), nil
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
}

// ExtractText strips markup and boilerplate elements from an HTML document
// and collapses whitespace. Text shorter than minChars yields ""; text
// longer than maxChars is cut and suffixed with "...".
func ExtractText(doc string, minChars, maxChars int) string {
	var words []string
	skipDepth := 0

	z := html.NewTokenizer(strings.NewReader(doc))
loop:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[atom.Lookup(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[atom.Lookup(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				words = append(words, strings.Fields(string(z.Text()))...)
			}
		}
	}

	text := strings.Join(words, " ")
	if utf8.RuneCountInString(text) < minChars {
		return ""
	}
	return Truncate(text, maxChars)
}

// Truncate cuts s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
