package wikijs

import (
	"context"

	"github.com/fivetwenty-io/wikijs/internal/constants"
)

// PageFetcher returns up to limit pages starting at offset.
type PageFetcher func(ctx context.Context, offset, limit int) ([]Page, error)

// PageIterator walks a page listing one batch at a time. It is not safe for
// concurrent use.
type PageIterator struct {
	ctx       context.Context //nolint:containedctx // bound to the iteration
	fetch     PageFetcher
	batchSize int

	buffer []Page
	offset int
	done   bool
	err    error
}

// NewPageIterator creates an iterator over fetch. A non-positive batchSize
// uses the default.
func NewPageIterator(ctx context.Context, batchSize int, fetch PageFetcher) *PageIterator {
	if batchSize <= 0 {
		batchSize = constants.DefaultPageBatchSize
	}

	return &PageIterator{ctx: ctx, fetch: fetch, batchSize: batchSize}
}

// HasNext reports whether Next would return a page. A fetch failure makes it
// return true so that Next can surface the error.
func (it *PageIterator) HasNext() bool {
	if len(it.buffer) > 0 {
		return true
	}

	if it.err != nil {
		return true
	}

	if it.done {
		return false
	}

	it.fill()

	return len(it.buffer) > 0 || it.err != nil
}

// Next returns the next page, ErrIteratorDone when the listing is exhausted,
// or the error of the failed fetch.
func (it *PageIterator) Next() (Page, error) {
	if !it.HasNext() {
		return Page{}, ErrIteratorDone
	}

	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true

		return Page{}, err
	}

	page := it.buffer[0]
	it.buffer = it.buffer[1:]

	return page, nil
}

// All drains the iterator.
func (it *PageIterator) All() ([]Page, error) {
	var pages []Page

	err := it.ForEach(func(page Page) error {
		pages = append(pages, page)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pages, nil
}

// ForEach calls fn for every remaining page and stops at the first error.
func (it *PageIterator) ForEach(fn func(Page) error) error {
	for it.HasNext() {
		page, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(page)
		if err != nil {
			return err
		}
	}

	return nil
}

func (it *PageIterator) fill() {
	err := it.ctx.Err()
	if err != nil {
		it.err = err

		return
	}

	batch, err := it.fetch(it.ctx, it.offset, it.batchSize)
	if err != nil {
		it.err = err

		return
	}

	it.buffer = batch
	it.offset += len(batch)

	// A short batch is the last one.
	if len(batch) < it.batchSize {
		it.done = true
	}
}
