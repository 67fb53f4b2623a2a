// Package answer resolves chat questions: on-page content first, then,
// with the user's consent, the web.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/ai"
	"github.com/seanblong/siteanswer/internal/intent"
	"github.com/seanblong/siteanswer/internal/search"
	"github.com/seanblong/siteanswer/internal/textutil"
	"github.com/seanblong/siteanswer/internal/websearch"
	"github.com/seanblong/siteanswer/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	// AskWebPrompt is the answer when the site has nothing and web search
	// needs the user's consent.
	AskWebPrompt = "I couldn’t find that on this site. Want me to search the web for you?"
	// NothingOnWeb is the answer when an allowed web search found nothing usable.
	NothingOnWeb = "I couldn’t find anything on the web either."

	linksHeader    = "Here are useful links:"
	siteAnswerMax  = 320
	webResultCount = 2
	pageTextMax    = 3000
)

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, q string) websearch.Outcome
}

// PageReader returns readable page text, or "" when there is none.
type PageReader interface {
	ReadableText(ctx context.Context, url string) string
}

// Request is one question from the chat widget.
type Request struct {
	Question string
	Chunks   []models.Chunk
	// AllowWeb is true only after the user agreed to a web search.
	AllowWeb bool
}

// Engine escalates a question from site content to the web.
type Engine struct {
	search   Searcher
	pages    PageReader
	rewriter ai.Client
}

// NewEngine creates an Engine. A nil rewriter disables rewriting.
func NewEngine(s Searcher, pages PageReader, rewriter ai.Client) *Engine {
	if rewriter == nil {
		rewriter = ai.NoopClient{}
	}
	return &Engine{search: s, pages: pages, rewriter: rewriter}
}

// Resolve answers req. The search provider is only contacted when
// req.AllowWeb is set and the site has no confident match. A search that
// fails returns an *UpstreamError.
func (e *Engine) Resolve(ctx context.Context, req Request) (Envelope, error) {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return Envelope{}, ErrMissingQuestion
	}
	log := zerolog.Ctx(ctx)

	if def, ok := intent.DefinitionFor(q); ok {
		log.Debug().Str("q", q).Msg("definition override")
		return Site(def.Answer, def.Source), nil
	}

	if cand, ok := search.Best(q, req.Chunks); ok {
		log.Debug().Str("q", q).Str("chunk", cand.ID).Int("score", cand.Score).Int("unique", cand.UniqueMatches).Msg("local match")
		return e.siteAnswer(ctx, q, cand)
	}

	if !req.AllowWeb {
		return None(AskWebPrompt, true), nil
	}
	return e.webAnswer(ctx, q)
}

func (e *Engine) siteAnswer(ctx context.Context, q string, cand search.Candidate) (Envelope, error) {
	passage := cand.Title + "\n\n" + cand.Text
	text, err := e.rewrite(ctx, q, passage)
	if err != nil {
		return Envelope{}, err
	}
	if text == "" {
		text = textutil.Sentenceify(cand.Text, siteAnswerMax)
	}
	href := cand.Href
	if href == "" {
		href = "#"
	}
	return Site(text, models.Source{Title: cand.Title, URL: href}), nil
}

func (e *Engine) webAnswer(ctx context.Context, q string) (Envelope, error) {
	out := e.search.Search(ctx, q)
	if out.Failed() {
		return Envelope{}, &UpstreamError{Message: out.Error}
	}
	top := out.Results
	if len(top) > webResultCount {
		top = top[:webResultCount]
	}
	if len(top) == 0 {
		return None(NothingOnWeb, false), nil
	}

	texts := make([]string, len(top))
	var g errgroup.Group
	for i, r := range top {
		g.Go(func() error {
			texts[i] = e.pages.ReadableText(ctx, r.URL)
			return nil
		})
	}
	_ = g.Wait()

	var pages []string
	for i, r := range top {
		if texts[i] == "" {
			continue
		}
		pages = append(pages, "# "+r.Title+"\n"+textutil.Clip(texts[i], pageTextMax))
	}

	text, err := e.rewrite(ctx, q, strings.Join(pages, "\n\n"))
	if err != nil {
		return Envelope{}, err
	}
	if text == "" {
		text = linkList(top)
	}

	sources := make([]models.Source, len(top))
	for i, r := range top {
		sources[i] = models.Source{Title: r.Title, URL: r.URL}
	}
	return Web(text, sources), nil
}

// rewrite returns "" when the answer should fall back to a template.
// Provider failures degrade; only a cancelled request is returned.
func (e *Engine) rewrite(ctx context.Context, q, passage string) (string, error) {
	text, err := e.rewriter.Rewrite(ctx, q, passage)
	switch {
	case err == nil:
		return strings.TrimSpace(text), nil
	case errors.Is(err, ai.ErrUnavailable):
		return "", nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("rewrite: %w", ctx.Err())
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Msg("rewrite failed, using fallback")
		return "", nil
	}
}

func linkList(results []models.SearchResult) string {
	parts := make([]string, 0, len(results)+1)
	parts = append(parts, linksHeader)
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("%d. %s — %s\n%s", i+1, r.Title, r.Snippet, r.URL))
	}
	return strings.Join(parts, "\n\n")
}
