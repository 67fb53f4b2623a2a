package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/ai"
	"github.com/seanblong/siteanswer/internal/answer"
	"github.com/seanblong/siteanswer/internal/api"
	"github.com/seanblong/siteanswer/internal/cache"
	"github.com/seanblong/siteanswer/internal/config"
	"github.com/seanblong/siteanswer/internal/fetch"
	"github.com/seanblong/siteanswer/internal/indexer"
	"github.com/seanblong/siteanswer/internal/intent"
	"github.com/seanblong/siteanswer/internal/metrics"
	"github.com/seanblong/siteanswer/internal/store"
	"github.com/seanblong/siteanswer/internal/websearch"
	"github.com/seanblong/siteanswer/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("siteanswer-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Int("team", len(cfg.Team)).Msg("starting siteanswer api")

	// Create AI client configuration
	var clientConfig *ai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			ProjectID: cfg.ProjectID,
			Provider:  ai.ProviderOpenAI,
		}
	case "vertexai", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Provider: ai.ProviderVertexAI,
		}
		// API keys select express mode, which rejects a project or location
		if cfg.APIKey == "" {
			clientConfig.ProjectID = cfg.ProjectID
			clientConfig.Location = cfg.Location
		}
	case "none", "stub", "":
		clientConfig = &ai.ClientConfig{Provider: ai.ProviderNone}
	default:
		log.Fatalf("unsupported provider: %s", cfg.Provider)
	}

	rewriter, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	ctx := context.Background()
	m := metrics.New()

	// Search cache: shared Redis when configured, in-process otherwise
	var searchCache cache.Cache[websearch.Outcome]
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		searchCache = cache.NewRedis[websearch.Outcome](rc, "siteanswer:", cfg.Cache.Size, cfg.Cache.TTL, logger)
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("using redis search cache")
	} else {
		searchCache = cache.NewMemory[websearch.Outcome](cfg.Cache.Size, cfg.Cache.TTL)
	}

	searcher := websearch.New(websearch.Config{
		APIKey:   cfg.Search.APIKey,
		EngineID: cfg.Search.EngineID,
		Endpoint: cfg.Search.Endpoint,
	}, searchCache, websearch.WithObserver(m))
	if !searcher.Configured() {
		logger.Warn().Msg("web search credentials missing; web answers will fail until GOOGLE_CSE_KEY and GOOGLE_CSE_CX are set")
	}

	engine := answer.NewEngine(searcher, fetch.New(cfg.FetchTimeout), rewriter)

	var chunks []models.Chunk
	if cfg.ChunksFile != "" {
		chunks, err = indexer.LoadFile(cfg.ChunksFile)
		if err != nil {
			log.Fatalf("Failed to load chunks: %v", err)
		}
		logger.Info().Int("chunks", len(chunks)).Str("file", cfg.ChunksFile).Msg("loaded site chunks")
	}

	var questions store.QuestionLog
	if cfg.Database != "" {
		st, err := store.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatalf("Failed to reach database: %v", err)
		}
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		questions = st
	}

	var roster *intent.Roster
	if len(cfg.Team) > 0 {
		roster = intent.NewRoster(cfg.Team)
	}

	handler := api.NewHandler(api.Options{
		Engine:      engine,
		Roster:      roster,
		Chunks:      chunks,
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
		Questions:   questions,
		Limiter:     api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TrustProxy),
		Logger:      logger,
	})

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().Str("addr", s.Addr).Str("static_dir", cfg.StaticDir).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
