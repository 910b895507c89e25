//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/pkg/wikiclient"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/stretchr/testify/require"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	URL     string
	APIKey  string
	NATSURL string
	Verbose bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		URL:     os.Getenv("WIKIJS_URL"),
		APIKey:  os.Getenv("WIKIJS_API_KEY"),
		NATSURL: os.Getenv("NATS_URL"),
		Verbose: os.Getenv("WIKIJS_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips the test when no wiki is configured
func (c *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if c.URL == "" || c.APIKey == "" {
		t.Skip("WIKIJS_URL and WIKIJS_API_KEY must be set for integration tests")
	}
}

// NewClient creates a client against the configured wiki and closes it when
// the test ends
func (c *TestConfig) NewClient(t *testing.T, name string) wikijs.Client {
	t.Helper()

	config := &wikijs.Config{
		BaseURL: c.URL,
		APIKey:  c.APIKey,
		Debug:   c.Verbose,
	}

	if c.NATSURL != "" {
		config.Invalidation = &wikijs.InvalidationConfig{NATSURL: c.NATSURL, Name: name}
	}

	client, err := wikiclient.New(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// GenerateTestName creates a unique page path segment for test isolation
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
