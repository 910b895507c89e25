// Package wikijs provides types, interfaces, and the request pipeline for
// working with the Wiki.js GraphQL API.
//
// # Overview
//
// The wikijs package defines the domain types (Page, PageCreate, PageUpdate),
// the client interfaces, and the Pipeline through which every request flows.
// A concrete client is built by the wikiclient package, which wires
// configuration, HTTP transport, logging, metrics and optional NATS based
// cache invalidation.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/wikijs/pkg/wikiclient"
//	  "github.com/fivetwenty-io/wikijs/pkg/wikijs"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := wikiclient.New(ctx, &wikijs.Config{
//	    BaseURL: "https://wiki.example.com",
//	    APIKey:  "eyJhbGciOi...",
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  page, err := cli.Pages().Get(ctx, 42)
//	  if err != nil { log.Fatal(err) }
//	  _ = page
//	}
//
// # Pipeline
//
// Pipeline.Execute takes an Operation and runs it through, in order:
//
//   - the ResultCache, for cacheable reads; a hit returns immediately
//   - the CircuitBreaker for the operation's target key
//   - the TokenBucketLimiter for the same key, which may wait for a token
//   - the transport call, retried per the RetryPolicy on transient failures
//
// After a successful call the breaker records the success, cacheable results
// are stored tagged with their resource ids, and the ids listed in
// Operation.Invalidates are evicted before Execute returns.
//
// # Errors
//
// Transport failures arrive as *APIError with an ErrorClass. Only transient
// classes are retried or counted by the breaker. The pipeline's own outcomes
// are distinguishable with errors.Is:
//
//	_, err := cli.Pages().Get(ctx, 42)
//	switch {
//	case errors.Is(err, wikijs.ErrCircuitOpen):
//	case errors.Is(err, wikijs.ErrRateLimitTimeout):
//	case errors.Is(err, wikijs.ErrRetriesExhausted):
//	case errors.Is(err, wikijs.ErrCancelled):
//	case wikijs.IsNotFound(err):
//	}
package wikijs
