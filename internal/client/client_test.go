package client_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/auth"
	"github.com/fivetwenty-io/wikijs/internal/client"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a base URL", func(t *testing.T) {
		t.Parallel()

		_, err := client.New(context.Background(), &wikijs.Config{})
		require.ErrorIs(t, err, wikijs.ErrBaseURLRequired)
	})

	t.Run("rejects an invalid pipeline", func(t *testing.T) {
		t.Parallel()

		cfg := wikijs.DefaultPipelineConfig()
		cfg.CacheMaxEntries = 0

		_, err := client.New(context.Background(), &wikijs.Config{BaseURL: "http://wiki.example.com", Pipeline: cfg})
		require.ErrorIs(t, err, wikijs.ErrInvalidConfig)
	})

	t.Run("registers metrics", func(t *testing.T) {
		t.Parallel()

		wiki := newFakeWiki(t, func(graphQLCall) (int, string) {
			return http.StatusOK, `{"data":{"site":{"config":{"title":"Docs"}}}}`
		})
		registry := prometheus.NewRegistry()
		c := newTestClient(t, wiki, func(cfg *wikijs.Config) { cfg.MetricsRegisterer = registry })

		_, err := c.TestConnection(context.Background())
		require.NoError(t, err)

		families, err := registry.Gather()
		require.NoError(t, err)

		names := make(map[string]bool, len(families))
		for _, family := range families {
			names[family.GetName()] = true
		}

		assert.True(t, names["wikijs_pipeline_requests_total"])
		assert.True(t, names["wikijs_cache_entries"])

		_, err = client.New(context.Background(), &wikijs.Config{BaseURL: wiki.server.URL, MetricsRegisterer: registry})
		require.Error(t, err, "registering twice on one registry must fail")
	})

	t.Run("failed construction leaves the registry clean", func(t *testing.T) {
		t.Parallel()

		registry := prometheus.NewRegistry()
		invalid := wikijs.DefaultPipelineConfig()
		invalid.LimiterRate = 0

		_, err := client.New(context.Background(), &wikijs.Config{
			BaseURL:           "http://wiki.example.com",
			Pipeline:          invalid,
			MetricsRegisterer: registry,
		})
		require.ErrorIs(t, err, wikijs.ErrInvalidConfig)

		c, err := client.New(context.Background(), &wikijs.Config{BaseURL: "http://wiki.example.com", MetricsRegisterer: registry})
		require.NoError(t, err)
		require.NoError(t, c.Close())
	})

	t.Run("close unregisters metrics", func(t *testing.T) {
		t.Parallel()

		registry := prometheus.NewRegistry()
		cfg := &wikijs.Config{BaseURL: "http://wiki.example.com", MetricsRegisterer: registry}

		first, err := client.New(context.Background(), cfg)
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second, err := client.New(context.Background(), cfg)
		require.NoError(t, err)
		require.NoError(t, second.Close())
	})
}

func TestClient_TestConnection(t *testing.T) {
	t.Parallel()

	wiki := newFakeWiki(t, func(call graphQLCall) (int, string) {
		if !has(call.Query, "site") {
			return http.StatusBadRequest, `{}`
		}

		return http.StatusOK, `{"data":{"site":{"config":{"title":"Team Docs"}}}}`
	})
	c := newTestClient(t, wiki)

	info, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Team Docs", info.Title)
	assert.Equal(t, "Bearer test-key", wiki.lastAuth())

	_, err = c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), wiki.hits.Load(), "connection tests are never cached")
}

func TestClient_WithoutAPIKey(t *testing.T) {
	t.Parallel()

	wiki := newFakeWiki(t, func(graphQLCall) (int, string) {
		return http.StatusOK, `{"data":{"site":{"config":{"title":"Public"}}}}`
	})
	c := newTestClient(t, wiki, func(cfg *wikijs.Config) { cfg.APIKey = "" })

	_, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Empty(t, wiki.lastAuth())
}

func TestClient_GraphQLFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		class     wikijs.ErrorClass
		wantCalls int32
	}{
		{
			name:      "forbidden code",
			status:    http.StatusOK,
			body:      `{"errors":[{"message":"Forbidden","extensions":{"code":"FORBIDDEN"}}]}`,
			class:     wikijs.ClassAuth,
			wantCalls: 1,
		},
		{
			name:      "validation error",
			status:    http.StatusOK,
			body:      `{"errors":[{"message":"Cannot query field"},{"message":"Unknown argument"}]}`,
			class:     wikijs.ClassClient,
			wantCalls: 1,
		},
		{
			name:      "http 401",
			status:    http.StatusUnauthorized,
			body:      `{"message":"bad token"}`,
			class:     wikijs.ClassAuth,
			wantCalls: 1,
		},
		{
			name:      "null data",
			status:    http.StatusOK,
			body:      `{"data":null}`,
			class:     wikijs.ClassTransientServer,
			wantCalls: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wiki := newFakeWiki(t, func(graphQLCall) (int, string) { return tt.status, tt.body })
			c := newTestClient(t, wiki, func(cfg *wikijs.Config) { cfg.Pipeline.BreakerFailureThreshold = 10 })

			_, err := c.TestConnection(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.class, wikijs.ClassOf(err))
			assert.Equal(t, tt.wantCalls, wiki.hits.Load())
		})
	}
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	wiki := newFakeWiki(t, func(graphQLCall) (int, string) { return http.StatusOK, `{}` })

	c, err := client.New(context.Background(), &wikijs.Config{BaseURL: wiki.server.URL})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

// jwtKey builds an unsigned API key whose exp claim is expiresAt.
func jwtKey(expiresAt time.Time) string {
	encode := base64.RawURLEncoding.EncodeToString

	return encode([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." +
		encode([]byte(fmt.Sprintf(`{"api":1,"grp":1,"exp":%d}`, expiresAt.Unix()))) + ".signature"
}

func TestClient_APIKeyExpiry(t *testing.T) {
	t.Parallel()

	wiki := newFakeWiki(t, func(graphQLCall) (int, string) {
		return http.StatusOK, `{"data":{"site":{"config":{"title":"Docs"}}}}`
	})

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	c := newTestClient(t, wiki, func(cfg *wikijs.Config) { cfg.APIKey = jwtKey(expiresAt) })
	assert.True(t, expiresAt.Equal(c.APIKeyExpiry()))

	_, err := c.TestConnection(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, c.APIKeyExpiry().IsZero(), "closing forgets the key")

	_, err = c.TestConnection(context.Background())
	require.ErrorIs(t, err, auth.ErrNoToken)
	assert.True(t, wikijs.IsUnauthorized(err))
	assert.Equal(t, int32(1), wiki.hits.Load())

	opaque := newTestClient(t, wiki)
	assert.True(t, opaque.APIKeyExpiry().IsZero())

	anonymous := newTestClient(t, wiki, func(cfg *wikijs.Config) { cfg.APIKey = "" })
	assert.True(t, anonymous.APIKeyExpiry().IsZero())
}
