package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/client"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/stretchr/testify/require"
)

// instantClock never blocks: Sleep advances the clock instead.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	return nil
}

type graphQLCall struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// fakeWiki answers GraphQL requests through a single responder and records
// every call it receives.
type fakeWiki struct {
	server *httptest.Server
	hits   atomic.Int32

	mu    sync.Mutex
	calls []graphQLCall
	auth  []string
}

type responder func(call graphQLCall) (int, string)

func newFakeWiki(t *testing.T, respond responder) *fakeWiki {
	t.Helper()

	wiki := &fakeWiki{}
	wiki.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		wiki.hits.Add(1)

		var call graphQLCall

		if err := json.NewDecoder(request.Body).Decode(&call); err != nil {
			writer.WriteHeader(http.StatusBadRequest)

			return
		}

		wiki.mu.Lock()
		wiki.calls = append(wiki.calls, call)
		wiki.auth = append(wiki.auth, request.Header.Get("Authorization"))
		wiki.mu.Unlock()

		status, body := respond(call)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)
		_, _ = writer.Write([]byte(body))
	}))
	t.Cleanup(wiki.server.Close)

	return wiki
}

func (w *fakeWiki) lastCall() graphQLCall {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.calls[len(w.calls)-1]
}

func (w *fakeWiki) lastAuth() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.auth[len(w.auth)-1]
}

func testPipelineConfig() *wikijs.PipelineConfig {
	cfg := wikijs.DefaultPipelineConfig()
	cfg.LimiterCapacity = 100
	cfg.LimiterRate = 100
	cfg.CacheCleanupInterval = 0

	return cfg
}

func newTestClient(t *testing.T, wiki *fakeWiki, mutate ...func(*wikijs.Config)) *client.Client {
	t.Helper()

	cfg := &wikijs.Config{
		BaseURL:  wiki.server.URL,
		APIKey:   "test-key",
		Pipeline: testPipelineConfig(),
	}

	for _, m := range mutate {
		m(cfg)
	}

	c, err := client.New(context.Background(), cfg,
		wikijs.WithClock(newInstantClock()),
		wikijs.WithJitterSource(func() float64 { return 1 }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func has(query, fragment string) bool {
	return strings.Contains(query, fragment)
}

const pageJSON = `{
	"id": 42,
	"path": "docs/intro",
	"locale": "en",
	"title": "Intro",
	"description": "First steps",
	"content": "# Intro",
	"contentType": "markdown",
	"editor": "markdown",
	"isPublished": true,
	"isPrivate": false,
	"tags": [{"tag": "guide"}, {"tag": "start"}],
	"authorId": 1,
	"authorName": "Administrator",
	"authorEmail": "admin@example.com",
	"createdAt": "2024-03-01T10:00:00.000Z",
	"updatedAt": "2024-03-02T11:30:00.000Z"
}`

const okResult = `"responseResult": {"succeeded": true, "errorCode": 0, "slug": "ok", "message": "Operation succeeded."}`
