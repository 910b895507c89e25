package wikijs

import (
	"context"
	"fmt"
	"time"
)

// Operation describes one logical request. Endpoint wrappers build a fresh
// Operation per call; the pipeline never modifies it.
type Operation struct {
	// TargetKey buckets limiter and breaker state, e.g. "pages".
	TargetKey string
	// Fingerprint identifies a cacheable read, e.g. "get:page/42".
	Fingerprint string
	// Cacheable marks idempotent reads whose results may be cached.
	Cacheable bool
	// Resources are the resource ids a cached result depends on.
	Resources []string
	// TagsFor derives extra resource ids from the result, for reads whose
	// ids are only known after the fetch.
	TagsFor func(result any) []string
	// TTL overrides the cache default when positive.
	TTL time.Duration
	// Invalidates lists the resource ids evicted after a successful call.
	Invalidates []string
	// Execute performs the transport call.
	Execute func(ctx context.Context) (any, error)
}

// Validate checks that the operation can be executed.
func (op *Operation) Validate() error {
	switch {
	case op.TargetKey == "":
		return fmt.Errorf("%w: target key is required", ErrInvalidOperation)
	case op.Execute == nil:
		return fmt.Errorf("%w: execute function is required", ErrInvalidOperation)
	case op.Cacheable && op.Fingerprint == "":
		return fmt.Errorf("%w: cacheable operation %q has no fingerprint", ErrInvalidOperation, op.TargetKey)
	}

	return nil
}

func (op *Operation) tags(result any) []string {
	if op.TagsFor == nil {
		return op.Resources
	}

	derived := op.TagsFor(result)
	if len(derived) == 0 {
		return op.Resources
	}

	tags := make([]string, 0, len(op.Resources)+len(derived))
	tags = append(tags, op.Resources...)

	return append(tags, derived...)
}
