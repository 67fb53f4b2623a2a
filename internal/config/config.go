package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/seanblong/siteanswer/pkg/models"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider     string                 `yaml:"provider"`
	APIKey       string                 `yaml:"providerApiKey" envconfig:"OPENAI_API_KEY"`
	Model        string                 `yaml:"providerModel" envconfig:"PROVIDER_MODEL"`
	ProjectID    string                 `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location     string                 `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Search       SearchSpecification    `yaml:"search"`
	Cache        CacheSpecification     `yaml:"cache"`
	FetchTimeout time.Duration          `yaml:"fetchTimeout" split_words:"true"`
	Database     string                 `yaml:"database" envconfig:"DB_URL"`
	StaticDir    string                 `yaml:"staticDir" split_words:"true"`
	ChunksFile   string                 `yaml:"chunksFile" split_words:"true"`
	Sections     []string               `yaml:"sections"`
	Team         []models.TeamMember    `yaml:"team" ignored:"true"`
	CORSOrigins  []string               `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`
	RateLimit    RateLimitSpecification `yaml:"rateLimit" split_words:"true"`
	LogLevel     string                 `yaml:"logLevel" split_words:"true"`
	Port         int                    `yaml:"port" envconfig:"PORT"`

	flags *pflag.FlagSet `ignored:"true"`
}

type SearchSpecification struct {
	APIKey   string `yaml:"apiKey" envconfig:"GOOGLE_CSE_KEY"`
	EngineID string `yaml:"engineID" envconfig:"GOOGLE_CSE_CX"`
	Endpoint string `yaml:"endpoint"`
}

type CacheSpecification struct {
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redisURL" envconfig:"REDIS_URL"`
}

type RateLimitSpecification struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`

	// TrustProxy keys clients by X-Forwarded-For. Enable only behind a proxy
	// that sets the header.
	TrustProxy bool `yaml:"trustProxy" split_words:"true"`
}

const envPrefix = "SITEANSWER"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/siteanswer.yaml",
				"config/config.yaml",
				"./siteanswer.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file; provider keys are also read unprefixed
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	// an OpenAI key alone turns rewriting on; no key and no provider leaves it off
	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = "none"
		if cfg.APIKey != "" {
			cfg.Provider = "openai"
		}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Specification{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Cache.Size <= 0 {
		return Specification{}, fmt.Errorf("cache size must be positive, got %d", cfg.Cache.Size)
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return Specification{}, fmt.Errorf("rate limit must not be negative")
	}
	if cfg.Cache.TTL <= 0 {
		return Specification{}, fmt.Errorf("cache ttl must be positive, got %s", cfg.Cache.TTL)
	}
	for i, m := range cfg.Team {
		if strings.TrimSpace(m.Name) == "" {
			return Specification{}, fmt.Errorf("team member %d has no name", i)
		}
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Rewrite provider (none, openai, vertexai); defaults to openai when an API key is set")
	fs.String("provider-api-key", c.APIKey, "Rewrite provider API key")
	fs.String("provider-model", c.Model, "Rewrite model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.String("search-api-key", c.Search.APIKey, "Google Programmable Search API key")
	fs.String("search-engine-id", c.Search.EngineID, "Google Programmable Search engine id (cx)")

	fs.Int("cache-size", c.Cache.Size, "Maximum cached web searches")
	fs.Duration("cache-ttl", c.Cache.TTL, "Lifetime of a cached web search")
	fs.String("redis-url", c.Cache.RedisURL, "Optional Redis URL for a shared search cache")
	fs.Duration("fetch-timeout", c.FetchTimeout, "Timeout for fetching a web result page")

	fs.String("db-url", c.Database, "Optional database URL (DSN) for the question log")
	fs.String("static-dir", c.StaticDir, "Directory of the built site to serve")
	fs.String("chunks-file", c.ChunksFile, "JSON chunks used when a request sends none")
	fs.StringSlice("cors-origins", c.CORSOrigins, "Allowed CORS origins")
	fs.Float64("rate-limit-rps", c.RateLimit.RPS, "Answer requests per second per client (0 disables)")
	fs.Int("rate-limit-burst", c.RateLimit.Burst, "Answer request burst per client")
	fs.Bool("rate-limit-trust-proxy", c.RateLimit.TrustProxy, "Key rate limits by X-Forwarded-For (only behind a proxy)")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-model", &c.Model)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setStr("search-api-key", &c.Search.APIKey)
	setStr("search-engine-id", &c.Search.EngineID)

	setInt("cache-size", &c.Cache.Size)
	setDur("cache-ttl", &c.Cache.TTL)
	setStr("redis-url", &c.Cache.RedisURL)
	setDur("fetch-timeout", &c.FetchTimeout)

	setStr("db-url", &c.Database)
	setStr("static-dir", &c.StaticDir)
	setStr("chunks-file", &c.ChunksFile)
	if fs.Changed("cors-origins") {
		c.CORSOrigins, _ = fs.GetStringSlice("cors-origins")
	}

	if fs.Changed("rate-limit-rps") {
		c.RateLimit.RPS, _ = fs.GetFloat64("rate-limit-rps")
	}
	setInt("rate-limit-burst", &c.RateLimit.Burst)
	if fs.Changed("rate-limit-trust-proxy") {
		c.RateLimit.TrustProxy, _ = fs.GetBool("rate-limit-trust-proxy")
	}

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Location = "us-central1"
	c.Cache.Size = 100
	c.Cache.TTL = 10 * time.Minute
	c.FetchTimeout = 10 * time.Second
	c.StaticDir = "dist"
	c.CORSOrigins = []string{"*"}
	c.RateLimit.RPS = 2
	c.RateLimit.Burst = 10
	c.Port = 8787
}
