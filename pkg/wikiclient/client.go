// Package wikiclient provides the main entry point for creating Wiki.js API clients
package wikiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/wikijs/internal/client"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
)

// New creates a new Wiki.js client. A base URL without a scheme is assumed
// to be https. The caller owns the returned client and must Close it.
func New(ctx context.Context, config *wikijs.Config, opts ...wikijs.PipelineOption) (wikijs.Client, error) {
	if config == nil {
		return nil, wikijs.ErrConfigRequired
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, wikijs.ErrBaseURLRequired
	}

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	normalized := *config
	normalized.BaseURL = baseURL

	c, err := client.New(ctx, &normalized, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithAPIKey creates a client with default pipeline settings that
// authenticates with an API key.
func NewWithAPIKey(ctx context.Context, baseURL, apiKey string) (wikijs.Client, error) {
	return New(ctx, &wikijs.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
}
