package ai

import (
	"context"
	"testing"
)

// Test configuration defaults in NewVertexAIClient
func TestNewVertexAIClient_Configuration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		config        *ClientConfig
		expectError   bool
		expectedModel string
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
		},
		{
			name:          "default model",
			config:        &ClientConfig{APIKey: "test-api-key"},
			expectedModel: "gemini-2.0-flash",
		},
		{
			name:          "custom model",
			config:        &ClientConfig{APIKey: "test-api-key", Model: "gemini-2.5-flash"},
			expectedModel: "gemini-2.5-flash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewVertexAIClient(ctx, tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.config.Model != tt.expectedModel {
				t.Errorf("Expected model %q, got %q", tt.expectedModel, client.config.Model)
			}
			if client.config.Location != "" {
				t.Errorf("Expected no location with an API key, got %q", client.config.Location)
			}
		})
	}
}
