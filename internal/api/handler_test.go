package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/answer"
	"github.com/seanblong/siteanswer/internal/cache"
	"github.com/seanblong/siteanswer/internal/intent"
	"github.com/seanblong/siteanswer/internal/metrics"
	"github.com/seanblong/siteanswer/internal/store"
	"github.com/seanblong/siteanswer/internal/websearch"
	"github.com/seanblong/siteanswer/pkg/models"
)

// MockResolver implements Resolver for testing
type MockResolver struct {
	ResolveFunc func(ctx context.Context, req answer.Request) (answer.Envelope, error)
	requests    []answer.Request
}

func (m *MockResolver) Resolve(ctx context.Context, req answer.Request) (answer.Envelope, error) {
	m.requests = append(m.requests, req)
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, req)
	}
	return answer.None(answer.AskWebPrompt, true), nil
}

// MockSearcher implements answer.Searcher for testing
type MockSearcher struct {
	mu    sync.Mutex
	calls int
}

func (m *MockSearcher) Search(ctx context.Context, q string) websearch.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return websearch.Outcome{Results: []models.SearchResult{}}
}

// MockQuestionLog implements store.QuestionLog for testing
type MockQuestionLog struct {
	mu      sync.Mutex
	entries []store.Entry
	err     error
}

func (m *MockQuestionLog) Record(ctx context.Context, e store.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

type noPages struct{}

func (noPages) ReadableText(context.Context, string) string { return "" }

var robotChunk = models.Chunk{
	ID:    "robot",
	Title: "Our Robot",
	Text:  "Our robot uses a differential drive base with two large motors and a color sensor for line following along the mat.",
	Href:  "#robot",
}

func newTestHandler(o Options) http.Handler {
	o.Logger = zerolog.Nop()
	return NewHandler(o)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAnswerBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing q", `{}`, "Missing q"},
		{"blank q", `{"q":"   "}`, "Missing q"},
		{"invalid json", `{"q":`, "Invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &MockResolver{}
			rec := post(t, newTestHandler(Options{Engine: resolver}), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rec.Code)
			}
			if got := decode(t, rec)["error"]; got != tt.wantErr {
				t.Errorf("Expected error %q, got %v", tt.wantErr, got)
			}
			if len(resolver.requests) != 0 {
				t.Error("Expected resolver not to be called")
			}
		})
	}
}

func TestAnswerLocalMatch(t *testing.T) {
	engine := answer.NewEngine(&MockSearcher{}, noPages{}, nil)
	h := newTestHandler(Options{Engine: engine})

	rec := post(t, h, `{"q":"what color sensor does the robot use","siteChunks":[{"id":"robot","title":"Our Robot","text":"Our robot uses a differential drive base with two large motors and a color sensor for line following along the mat.","href":"#robot"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["used"] != "site" {
		t.Errorf("Expected used=site, got %v", out["used"])
	}
	sources := out["sources"].([]any)
	if len(sources) != 1 || sources[0].(map[string]any)["url"] != "#robot" {
		t.Errorf("Unexpected sources %v", sources)
	}
	if _, ok := out["askWeb"]; ok {
		t.Error("Expected askWeb to be absent on a site answer")
	}
}

func TestAnswerWithoutConsentNeverSearches(t *testing.T) {
	searcher := &MockSearcher{}
	engine := answer.NewEngine(searcher, noPages{}, nil)
	h := newTestHandler(Options{Engine: engine})

	rec := post(t, h, `{"q":"when is the regional qualifier tournament","siteChunks":[],"allowWeb":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	out := decode(t, rec)
	if out["used"] != "none" || out["askWeb"] != true {
		t.Errorf("Expected consent prompt, got %v", out)
	}
	if out["answer"] != answer.AskWebPrompt {
		t.Errorf("Unexpected answer %v", out["answer"])
	}
	if searcher.calls != 0 {
		t.Errorf("Expected no web search, got %d calls", searcher.calls)
	}
}

func TestAnswerMissingSearchCredentials(t *testing.T) {
	client := websearch.New(websearch.Config{}, cache.NewMemory[websearch.Outcome](cache.DefaultSize, cache.DefaultTTL))
	engine := answer.NewEngine(client, noPages{}, nil)
	h := newTestHandler(Options{Engine: engine})

	rec := post(t, h, `{"q":"regional qualifier dates","allowWeb":true}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Missing GOOGLE_CSE_KEY/GOOGLE_CSE_CX" {
		t.Errorf("Unexpected error %v", got)
	}
}

func TestAnswerUnexpectedError(t *testing.T) {
	resolver := &MockResolver{
		ResolveFunc: func(ctx context.Context, req answer.Request) (answer.Envelope, error) {
			return answer.Envelope{}, errors.New("boom")
		},
	}
	rec := post(t, newTestHandler(Options{Engine: resolver}), `{"q":"anything at all"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "boom" {
		t.Errorf("Unexpected error %v", got)
	}
}

func TestAnswerPanicIsRecovered(t *testing.T) {
	resolver := &MockResolver{
		ResolveFunc: func(ctx context.Context, req answer.Request) (answer.Envelope, error) {
			panic("nil chunk")
		},
	}
	rec := post(t, newTestHandler(Options{Engine: resolver}), `{"q":"anything at all"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "nil chunk" {
		t.Errorf("Unexpected error %v", got)
	}
}

func TestAnswerFallsBackToConfiguredChunks(t *testing.T) {
	resolver := &MockResolver{}
	h := newTestHandler(Options{Engine: resolver, Chunks: []models.Chunk{robotChunk}})

	post(t, h, `{"q":"robot drive","allowWeb":true}`)
	post(t, h, `{"q":"robot drive","siteChunks":[{"id":"home","title":"Home","text":"x","href":"#home"}]}`)

	if len(resolver.requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(resolver.requests))
	}
	first := resolver.requests[0]
	if len(first.Chunks) != 1 || first.Chunks[0].ID != "robot" || !first.AllowWeb {
		t.Errorf("Expected configured chunks with allowWeb, got %+v", first)
	}
	if second := resolver.requests[1]; len(second.Chunks) != 1 || second.Chunks[0].ID != "home" {
		t.Errorf("Expected request chunks to win, got %+v", second.Chunks)
	}
}

func TestAnswerRosterFastPath(t *testing.T) {
	resolver := &MockResolver{}
	roster := intent.NewRoster([]models.TeamMember{
		{Name: "Ava Chen", Role: "Media Lead", Dino: "Triceratops"},
		{Name: "Leo Park", Role: "Outreach Captain", Dino: "Velociraptor"},
	})
	h := newTestHandler(Options{Engine: resolver, Roster: roster})

	rec := post(t, h, `{"q":"who are the team members?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	out := decode(t, rec)
	if out["used"] != "site" {
		t.Errorf("Expected site answer, got %v", out["used"])
	}
	if !strings.Contains(out["answer"].(string), "Ava Chen, Leo Park") {
		t.Errorf("Unexpected answer %v", out["answer"])
	}
	if len(resolver.requests) != 0 {
		t.Error("Expected the roster to short-circuit the engine")
	}
}

func TestAnswerRecordsMetricsAndQuestions(t *testing.T) {
	m := metrics.New()
	questions := &MockQuestionLog{err: errors.New("db down")}
	h := newTestHandler(Options{Engine: &MockResolver{}, Metrics: m, Questions: questions})

	rec := post(t, h, `{"q":"  sponsor list  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 even when the log fails, got %d", rec.Code)
	}
	if len(questions.entries) != 1 {
		t.Fatalf("Expected 1 recorded question, got %d", len(questions.entries))
	}
	e := questions.entries[0]
	if e.Question != "sponsor list" || e.Used != "none" || e.State != "await_consent" || e.Status != 200 {
		t.Errorf("Unexpected entry %+v", e)
	}

	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mrec.Body.String(), `siteanswer_answers_total{state="await_consent",used="none"} 1`) {
		t.Error("Expected the answer to be counted")
	}
}

func TestUnknownAPIRouteIs404(t *testing.T) {
	h := newTestHandler(Options{Engine: &MockResolver{}, StaticDir: t.TempDir()})
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/unknown", nil),
		httptest.NewRequest(http.MethodGet, "/api/answer", nil),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestStaticFilesWithSPAFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}
	h := newTestHandler(Options{Engine: &MockResolver{}, StaticDir: dir})

	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>app</html>"},
		{"/assets/app.js", "console.log(1)"},
		{"/team/roster", "<html>app</html>"},
		{"/etc/passwd", "<html>app</html>"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.path, rec.Code)
			continue
		}
		if rec.Body.String() != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.want, rec.Body.String())
		}
	}
}

func TestHealthzAndCORS(t *testing.T) {
	h := newTestHandler(Options{Engine: &MockResolver{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected healthz 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"q":"hello there"}`))
	req.Header.Set("Origin", "https://team.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard CORS origin, got %q", got)
	}
}

func TestAnswerRateLimited(t *testing.T) {
	resolver := &MockResolver{}
	h := newTestHandler(Options{Engine: resolver, Limiter: NewRateLimiter(0.001, 2, false)})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"q":"robot drive"}`))
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the burst is spent, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Errorf("Expected another client to be unaffected, got %d", code)
	}
	if len(resolver.requests) != 3 {
		t.Errorf("Expected limited requests to skip the engine, got %d calls", len(resolver.requests))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if got := clientIP(req, false); got != "192.0.2.7" {
		t.Errorf("Expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req, false); got != "192.0.2.7" {
		t.Errorf("Expected forwarded header to be ignored, got %q", got)
	}
	if got := clientIP(req, true); got != "10.0.0.1" {
		t.Errorf("Expected proxy-appended address, got %q", got)
	}
	if NewRateLimiter(0, 5, false) != nil {
		t.Error("Expected a zero rate to disable limiting")
	}
}

func TestAnswerRateLimitIgnoresSpoofedForwarding(t *testing.T) {
	resolver := &MockResolver{}
	h := newTestHandler(Options{Engine: resolver, Limiter: NewRateLimiter(0.001, 2, false)})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"q":"robot drive"}`))
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[2] != http.StatusTooManyRequests || codes[3] != http.StatusTooManyRequests {
		t.Errorf("Expected rotating X-Forwarded-For to share one bucket, got %v", codes)
	}
}
