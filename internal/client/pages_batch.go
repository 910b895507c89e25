package client

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
)

// GetByTags implements wikijs.PagesClient.GetByTags. Any-match runs one
// listing per tag and merges them in title order.
func (p *PagesClient) GetByTags(ctx context.Context, tags []string, matchAll bool, limit int) ([]wikijs.Page, error) {
	wanted := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !slices.Contains(wanted, tag) {
			wanted = append(wanted, tag)
		}
	}

	if len(wanted) == 0 {
		return nil, wikijs.ErrTagsRequired
	}

	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", wikijs.ErrInvalidListOpts)
	}

	if matchAll || len(wanted) == 1 {
		return p.List(ctx, &wikijs.PageListOptions{Tags: wanted, Limit: limit})
	}

	lists := pool.NewWithResults[[]wikijs.Page]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(min(p.client.batchConcurrency, len(wanted)))

	for _, tag := range wanted {
		lists.Go(func(ctx context.Context) ([]wikijs.Page, error) {
			return p.List(ctx, &wikijs.PageListOptions{Tags: []string{tag}, Limit: limit})
		})
	}

	results, err := lists.Wait()
	if err != nil {
		return nil, fmt.Errorf("getting pages by tags: %w", err)
	}

	seen := make(map[int]struct{})
	merged := make([]wikijs.Page, 0)

	for _, pages := range results {
		for _, page := range pages {
			if _, ok := seen[page.ID]; ok {
				continue
			}

			seen[page.ID] = struct{}{}
			merged = append(merged, page)
		}
	}

	slices.SortFunc(merged, func(a, b wikijs.Page) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged, nil
}

// Iterate implements wikijs.PagesClient.Iterate.
func (p *PagesClient) Iterate(ctx context.Context, opts *wikijs.PageListOptions, batchSize int) *wikijs.PageIterator {
	base := wikijs.PageListOptions{}
	if opts != nil {
		base = *opts
		base.Tags = slices.Clone(opts.Tags)
	}

	return wikijs.NewPageIterator(ctx, batchSize, func(ctx context.Context, offset, limit int) ([]wikijs.Page, error) {
		page := base
		page.Offset = offset
		page.Limit = limit

		return p.List(ctx, &page)
	})
}

// CreateMany implements wikijs.PagesClient.CreateMany.
func (p *PagesClient) CreateMany(ctx context.Context, pages []*wikijs.PageCreate) ([]wikijs.PageBatchResult, error) {
	return p.runBatch(ctx, "creating pages", len(pages), func(ctx context.Context, i int) (int, *wikijs.Page, error) {
		created, err := p.Create(ctx, pages[i])
		if err != nil {
			return 0, nil, err
		}

		return created.ID, created, nil
	})
}

// UpdateMany implements wikijs.PagesClient.UpdateMany.
func (p *PagesClient) UpdateMany(ctx context.Context, updates []wikijs.PageBatchUpdate) ([]wikijs.PageBatchResult, error) {
	return p.runBatch(ctx, "updating pages", len(updates), func(ctx context.Context, i int) (int, *wikijs.Page, error) {
		updated, err := p.Update(ctx, updates[i].ID, updates[i].Update)

		return updates[i].ID, updated, err
	})
}

// DeleteMany implements wikijs.PagesClient.DeleteMany.
func (p *PagesClient) DeleteMany(ctx context.Context, ids []int) ([]wikijs.PageBatchResult, error) {
	return p.runBatch(ctx, "deleting pages", len(ids), func(ctx context.Context, i int) (int, *wikijs.Page, error) {
		return ids[i], nil, p.Delete(ctx, ids[i])
	})
}

// runBatch calls item once per index with bounded concurrency. Each call
// goes through the shared pipeline on its own, so one failure does not stop
// the rest.
func (p *PagesClient) runBatch(
	ctx context.Context,
	action string,
	total int,
	item func(ctx context.Context, index int) (int, *wikijs.Page, error),
) ([]wikijs.PageBatchResult, error) {
	if total == 0 {
		return nil, nil
	}

	results := make([]wikijs.PageBatchResult, total)
	workers := pool.New().WithMaxGoroutines(min(p.client.batchConcurrency, total))

	for i := range total {
		workers.Go(func() {
			id, page, err := item(ctx, i)
			results[i] = wikijs.PageBatchResult{Index: i, ID: id, Page: page, Err: err}
		})
	}

	workers.Wait()

	var (
		errs   error
		failed int
	)

	for _, result := range results {
		if result.Err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("item %d: %w", result.Index, result.Err))
		}
	}

	if errs == nil {
		return results, nil
	}

	p.client.logger.Warn("Batch partially failed", map[string]interface{}{
		"action": action,
		"total":  total,
		"failed": failed,
	})

	return results, &wikijs.BatchError{Action: action, Total: total, Failed: failed, Err: errs}
}
