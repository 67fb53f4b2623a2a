// Package api serves the answer endpoint and the built site.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/siteanswer/internal/answer"
	"github.com/seanblong/siteanswer/internal/intent"
	"github.com/seanblong/siteanswer/internal/metrics"
	"github.com/seanblong/siteanswer/internal/store"
	"github.com/seanblong/siteanswer/pkg/models"
)

const maxBodyBytes = 2 << 20

// Resolver answers one question.
type Resolver interface {
	Resolve(ctx context.Context, req answer.Request) (answer.Envelope, error)
}

// Options wires the handler's collaborators. Roster, Metrics, Questions
// and Limiter may be nil.
type Options struct {
	Engine      Resolver
	Roster      *intent.Roster
	Chunks      []models.Chunk
	StaticDir   string
	CORSOrigins []string
	Metrics     *metrics.Metrics
	Questions   store.QuestionLog
	Limiter     *RateLimiter
	Logger      zerolog.Logger
}

type answerRequest struct {
	Q          string         `json:"q"`
	SiteChunks []models.Chunk `json:"siteChunks"`
	AllowWeb   bool           `json:"allowWeb"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	Options
}

// NewHandler returns the full HTTP handler: routes, CORS, panic recovery
// and access logging.
func NewHandler(o Options) http.Handler {
	h := &handler{Options: o}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if o.Metrics != nil {
		mux.Handle("/metrics", o.Metrics.Handler())
	}
	mux.HandleFunc("POST /api/answer", h.answer)
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	mux.Handle("/", spa{dir: o.StaticDir})

	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	logger := o.Logger
	return hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(recoverer(c.Handler(mux))),
	)
}

func (h *handler) answer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := hlog.FromRequest(r)

	if !h.Limiter.Allow(r) {
		h.fail(w, start, http.StatusTooManyRequests, "Too many requests")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, start, http.StatusBadRequest, "Invalid JSON")
		return
	}
	q := strings.TrimSpace(req.Q)
	if q == "" {
		h.fail(w, start, http.StatusBadRequest, "Missing q")
		return
	}

	if m, ok := h.Roster.Lookup(q); ok {
		h.respond(r.Context(), w, start, req, answer.Site(m.Answer, m.Source))
		return
	}

	chunks := req.SiteChunks
	if len(chunks) == 0 {
		chunks = h.Chunks
	}
	env, err := h.Engine.Resolve(r.Context(), answer.Request{Question: q, Chunks: chunks, AllowWeb: req.AllowWeb})
	var upstream *answer.UpstreamError
	switch {
	case err == nil:
		h.respond(r.Context(), w, start, req, env)
	case errors.Is(err, answer.ErrMissingQuestion):
		h.fail(w, start, http.StatusBadRequest, "Missing q")
	case errors.As(err, &upstream):
		log.Warn().Str("q", q).Str("error", upstream.Message).Msg("web search failed")
		h.fail(w, start, http.StatusBadGateway, upstream.Message)
		h.record(r.Context(), req, answer.Envelope{}, http.StatusBadGateway, start)
	default:
		log.Error().Err(err).Str("q", q).Msg("answer failed")
		h.fail(w, start, http.StatusInternalServerError, err.Error())
	}
}

func (h *handler) respond(ctx context.Context, w http.ResponseWriter, start time.Time, req answerRequest, env answer.Envelope) {
	writeJSON(w, http.StatusOK, env)
	if h.Metrics != nil {
		h.Metrics.Answer(string(env.Used()), string(env.State()))
		h.Metrics.Observe(http.StatusOK, time.Since(start))
	}
	zerolog.Ctx(ctx).Debug().Str("used", string(env.Used())).Str("state", string(env.State())).Dur("dur", time.Since(start)).Msg("answered")
	h.record(ctx, req, env, http.StatusOK, start)
}

func (h *handler) fail(w http.ResponseWriter, start time.Time, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
	if h.Metrics != nil {
		h.Metrics.Observe(status, time.Since(start))
	}
}

func (h *handler) record(ctx context.Context, req answerRequest, env answer.Envelope, status int, start time.Time) {
	if h.Questions == nil {
		return
	}
	err := h.Questions.Record(ctx, store.Entry{
		Question: strings.TrimSpace(req.Q),
		Used:     string(env.Used()),
		State:    string(env.State()),
		AllowWeb: req.AllowWeb,
		Status:   status,
		Duration: time.Since(start),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record question")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recoverer turns a panic into a 500 JSON response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Str("panic", fmt.Sprint(rec)).Str("path", r.URL.Path).Msg("panic recovered")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(rec)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// spa serves files from dir and falls back to index.html for unknown paths.
type spa struct {
	dir string
}

func (s spa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.dir == "" {
		http.NotFound(w, r)
		return
	}
	name := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	index := filepath.Join(s.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
