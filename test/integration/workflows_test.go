//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPageWorkflow_Lifecycle creates, reads, updates and deletes a page
func TestPageWorkflow_Lifecycle(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	client := config.NewClient(t, "integration-lifecycle")
	ctx := context.Background()

	path := "integration/" + GenerateTestName("lifecycle")

	// 1. Create
	created, err := client.Pages().Create(ctx, &wikijs.PageCreate{
		Title:       "Integration Lifecycle",
		Path:        path,
		Content:     "# Integration\n\nCreated by the integration suite.",
		IsPublished: true,
		Tags:        []string{"integration"},
	})
	require.NoError(t, err)
	require.Positive(t, created.ID)

	defer func() {
		_ = client.Pages().Delete(ctx, created.ID)
	}()

	// 2. Read twice; the second read is a cache hit
	before := client.Pipeline().Cache().Stats()

	first, err := client.Pages().GetByPath(ctx, path, "en")
	require.NoError(t, err)
	assert.Equal(t, created.ID, first.ID)

	_, err = client.Pages().GetByPath(ctx, path, "en")
	require.NoError(t, err)

	after := client.Pipeline().Cache().Stats()
	assert.Equal(t, before.Hits+1, after.Hits)

	// 3. Update and observe the change through the same path lookup
	title := "Integration Lifecycle (updated)"
	_, err = client.Pages().Update(ctx, created.ID, &wikijs.PageUpdate{Title: &title})
	require.NoError(t, err)

	updated, err := client.Pages().GetByPath(ctx, path, "en")
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	// 4. Search eventually finds it once the wiki has indexed it
	require.Eventually(t, func() bool {
		result, err := client.Pages().Search(ctx, "Integration Lifecycle", nil)
		if err != nil {
			return false
		}

		client.Pipeline().Cache().InvalidateAll()

		for _, hit := range result.Results {
			if hit.Path == path {
				return true
			}
		}

		return false
	}, 30*time.Second, time.Second)

	// 5. Delete
	require.NoError(t, client.Pages().Delete(ctx, created.ID))

	_, err = client.Pages().Get(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, wikijs.IsNotFound(err))
}

// TestPageWorkflow_SharedInvalidation checks that a write through one client
// evicts the cached read held by another
func TestPageWorkflow_SharedInvalidation(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	if config.NATSURL == "" {
		t.Skip("NATS_URL must be set for invalidation tests")
	}

	reader := config.NewClient(t, "integration-reader")
	writer := config.NewClient(t, "integration-writer")
	ctx := context.Background()

	created, err := writer.Pages().Create(ctx, &wikijs.PageCreate{
		Title:   "Integration Invalidation",
		Path:    "integration/" + GenerateTestName("invalidation"),
		Content: "v1",
	})
	require.NoError(t, err)

	defer func() {
		_ = writer.Pages().Delete(ctx, created.ID)
	}()

	_, err = reader.Pages().Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reader.Pipeline().Cache().Len())

	content := "v2"
	_, err = writer.Pages().Update(ctx, created.ID, &wikijs.PageUpdate{Content: &content})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return reader.Pipeline().Cache().Len() == 0
	}, 5*time.Second, 50*time.Millisecond)

	page, err := reader.Pages().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", page.Content)
}
