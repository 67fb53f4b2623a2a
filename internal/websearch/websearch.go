// Package websearch queries Google Programmable Search (CSE) and caches the
// outcome of every query, errors included.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/cache"
	"github.com/seanblong/siteanswer/internal/textutil"
	"github.com/seanblong/siteanswer/pkg/models"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"
	// MaxResults is the num parameter sent with every query.
	MaxResults = 5
	// KeyPrefix namespaces search entries in a shared cache.
	KeyPrefix = "cse:"

	missingConfig = "Missing GOOGLE_CSE_KEY/GOOGLE_CSE_CX"
	maxErrBody    = 200
)

// Outcome is what a search produced. A non-empty Error means the provider
// could not be used; Results is then empty.
type Outcome struct {
	Results []models.SearchResult `json:"results"`
	Error   string                `json:"error,omitempty"`
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool { return o.Error != "" }

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config holds provider credentials and endpoint.
type Config struct {
	APIKey   string
	EngineID string
	Endpoint string
	Timeout  time.Duration
}

// Observer receives cache hit/miss notifications.
type Observer interface {
	CacheLookup(hit bool)
}

// Client runs cached web searches.
type Client struct {
	config   Config
	cache    cache.Cache[Outcome]
	http     Doer
	observer Observer
}

// Option customises a Client.
type Option func(*Client)

// WithDoer replaces the HTTP client.
func WithDoer(d Doer) Option { return func(c *Client) { c.http = d } }

// WithObserver attaches cache metrics.
func WithObserver(o Observer) Option { return func(c *Client) { c.observer = o } }

// New creates a Client. The cache is required so tests and callers decide
// its lifetime explicitly.
func New(config Config, store cache.Cache[Outcome], opts ...Option) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	c := &Client{
		config: config,
		cache:  store,
		http:   &http.Client{Timeout: config.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both credentials are present.
func (c *Client) Configured() bool {
	return c.config.APIKey != "" && c.config.EngineID != ""
}

// Search returns the outcome for q, consulting the cache first. Cached
// errors are returned as-is until they expire. Missing credentials and
// provider rejections are cached; transport failures are not.
func (c *Client) Search(ctx context.Context, q string) Outcome {
	log := zerolog.Ctx(ctx)
	key := KeyPrefix + q

	if out, ok := c.cache.Get(ctx, key); ok {
		c.lookup(true)
		log.Debug().Str("key", key).Bool("error", out.Failed()).Msg("search cache hit")
		return out
	}
	c.lookup(false)

	if !c.Configured() {
		out := Outcome{Results: []models.SearchResult{}, Error: missingConfig}
		c.cache.Set(ctx, key, out)
		return out
	}

	out, cacheable := c.query(ctx, q)
	if cacheable {
		c.cache.Set(ctx, key, out)
	}
	if out.Failed() {
		log.Warn().Str("q", q).Str("error", out.Error).Msg("web search failed")
	}
	return out
}

func (c *Client) query(ctx context.Context, q string) (Outcome, bool) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return failure(fmt.Sprintf("CSE endpoint: %v", err)), false
	}
	params := url.Values{}
	params.Set("key", c.config.APIKey)
	params.Set("cx", c.config.EngineID)
	params.Set("q", q)
	params.Set("num", fmt.Sprint(MaxResults))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failure(fmt.Sprintf("CSE request: %v", err)), false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("CSE request failed: %v", err)), false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Sprintf("CSE read body: %v", err)), false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(fmt.Sprintf("CSE error %d: %s", resp.StatusCode, textutil.Clip(string(body), maxErrBody))), true
	}

	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return failure(fmt.Sprintf("CSE decode: %v", err)), true
	}

	results := make([]models.SearchResult, 0, len(raw.Items))
	for _, it := range raw.Items {
		results = append(results, models.SearchResult{Title: it.Title, Snippet: it.Snippet, URL: it.Link})
	}
	return Outcome{Results: results}, true
}

func (c *Client) lookup(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(hit)
	}
}

func failure(msg string) Outcome {
	return Outcome{Results: []models.SearchResult{}, Error: msg}
}
