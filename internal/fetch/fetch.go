// Package fetch retrieves web pages and reduces them to readable text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/textutil"
	"golang.org/x/net/html"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxBody bounds how much of a page is read.
	maxBody   = 4 << 20
	userAgent = "siteanswer/1.0 (+https://github.com/seanblong/siteanswer)"
)

var (
	containerSel = cascadia.MustCompile("article, main, #content")
	paragraphSel = cascadia.MustCompile("p")
)

// ErrNoContent is returned when a page parsed but held no readable text.
var ErrNoContent = errors.New("no readable content")

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Fetcher downloads pages with a bounded timeout.
type Fetcher struct {
	http    Doer
	timeout time.Duration
}

// New creates a Fetcher. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// NewWithDoer creates a Fetcher with a custom HTTP client for testing.
func NewWithDoer(d Doer, timeout time.Duration) *Fetcher {
	f := New(timeout)
	f.http = d
	return f
}

// ReadableText returns the readable text of the page at rawURL, or "" when
// the page cannot be fetched or parsed. An empty result means "no usable
// content", never a reason to abort the caller.
func (f *Fetcher) ReadableText(ctx context.Context, rawURL string) string {
	text, err := f.Fetch(ctx, rawURL)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("url", rawURL).Msg("page fetch degraded to empty")
		return ""
	}
	return text
}

// Fetch is ReadableText with the failure reason.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	text, err := Extract(body, u)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", rawURL, err)
	}
	return text, nil
}

// Extract reduces an HTML document to readable text. Content inside
// article, main or #content wins; otherwise every paragraph is used; as a
// last resort the readability article text is taken.
func Extract(body []byte, pageURL *url.URL) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	if text := joinText(outermost(containerSel.MatchAll(doc))); text != "" {
		return text, nil
	}
	if text := joinText(paragraphSel.MatchAll(doc)); text != "" {
		return text, nil
	}

	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := textutil.CollapseSpace(article.TextContent); text != "" {
			return text, nil
		}
	}
	return "", ErrNoContent
}

// outermost drops matches nested inside another match so text is not
// counted twice when, say, an article sits inside main.
func outermost(nodes []*html.Node) []*html.Node {
	in := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		in[n] = true
	}
	out := nodes[:0]
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil; p = p.Parent {
			if in[p] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

func joinText(nodes []*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		collectText(&b, n)
		b.WriteByte(' ')
	}
	return textutil.CollapseSpace(b.String())
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
