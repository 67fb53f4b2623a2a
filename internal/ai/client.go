package ai

import (
	"context"
	"errors"
)

// ErrUnavailable means no rewrite provider is configured. Callers fall back
// to a deterministic answer without logging it as a failure.
var ErrUnavailable = errors.New("rewrite unavailable")

// Client rewrites selected context into a short natural-language answer.
type Client interface {
	Rewrite(ctx context.Context, question, passage string) (string, error)
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderNone     Provider = "none"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey    string
	Model     string
	ProjectID string
	Provider  Provider
	Location  string
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderNone, "":
		return NoopClient{}, nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// NoopClient is used when rewriting is disabled.
type NoopClient struct{}

// Rewrite always reports ErrUnavailable.
func (NoopClient) Rewrite(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
