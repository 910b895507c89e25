// Package wikiclient provides the primary entry point for constructing a
// Wiki.js GraphQL client that implements the wikijs.Client interface.
//
// Every call made through the returned client passes through one shared
// request pipeline: a result cache for reads, a per-target token bucket, a
// per-target circuit breaker and retries with exponential backoff. Writes
// invalidate the cached reads they affect.
//
// Quick start
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
//
//	  cli, err := wikiclient.NewWithAPIKey(ctx, "https://wiki.example.com", "eyJhbGciOi...")
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  page, err := cli.Pages().GetByPath(ctx, "docs/intro", "en")
//	  if err != nil { log.Fatal(err) }
//	  _ = page
//	}
//
// # Tuning the pipeline
//
// Config.Pipeline overrides the defaults from wikijs.DefaultPipelineConfig:
//
//	cfg := wikijs.DefaultPipelineConfig()
//	cfg.CacheDefaultTTL = time.Minute
//	cfg.RetryMaxAttempts = 5
//
//	cli, err := wikiclient.New(ctx, &wikijs.Config{
//	  BaseURL:  "https://wiki.example.com",
//	  APIKey:   apiKey,
//	  Pipeline: cfg,
//	})
//
// # Metrics and shared invalidation
//
// Set Config.MetricsRegisterer to export Prometheus metrics for the pipeline
// and cache. Set Config.Invalidation to share cache invalidations between
// processes over NATS; each process drops cached reads that another process
// has written.
package wikiclient
