package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/auth"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/internal/http"
	"github.com/fivetwenty-io/wikijs/internal/invalidation"
	"github.com/fivetwenty-io/wikijs/internal/metrics"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
)

// Client implements the wikijs.Client interface.
type Client struct {
	httpClient  *http.Client
	pipeline    *wikijs.Pipeline
	logger      wikijs.Logger
	bus         *invalidation.Bus
	apiKey      *auth.StaticTokenManager
	recorder    *metrics.Recorder
	stopSweeper context.CancelFunc
	closeOnce   sync.Once

	batchConcurrency int

	pages *PagesClient
}

var _ wikijs.Client = (*Client)(nil)

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *wikijs.Config, logger wikijs.Logger) []http.Option {
	httpOpts := []http.Option{http.WithLogger(logger)}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	return httpOpts
}

// New creates a Wiki.js client. Every request it makes goes through one
// shared pipeline. When config.Invalidation is set the client connects to
// NATS before returning; Close releases the connection.
func New(ctx context.Context, config *wikijs.Config, opts ...wikijs.PipelineOption) (*Client, error) {
	if config.BaseURL == "" {
		return nil, wikijs.ErrBaseURLRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = wikijs.NopLogger{}
	}

	var (
		apiKey       *auth.StaticTokenManager
		tokenManager auth.TokenManager
	)

	if config.APIKey != "" {
		apiKey = auth.NewStaticTokenManager(config.APIKey)
		tokenManager = apiKey
	}

	client := &Client{
		httpClient: http.NewClient(config.BaseURL, tokenManager, createHTTPClientOptions(config, logger)...),
		logger:     logger,
		apiKey:     apiKey,

		batchConcurrency: constants.DefaultBatchConcurrency,
	}

	if config.BatchConcurrency > 0 {
		client.batchConcurrency = config.BatchConcurrency
	}

	pipelineOpts := []wikijs.PipelineOption{wikijs.WithLogger(logger)}

	var recorder *metrics.Recorder

	if config.MetricsRegisterer != nil {
		var err error

		recorder, err = metrics.NewRecorder(config.MetricsRegisterer)
		if err != nil {
			return nil, fmt.Errorf("creating metrics recorder: %w", err)
		}

		pipelineOpts = append(pipelineOpts, wikijs.WithMetrics(recorder))
	}

	if config.Invalidation != nil {
		bus, err := invalidation.Dial(config.Invalidation, logger)
		if err != nil {
			client.release(recorder)

			return nil, fmt.Errorf("creating invalidation bus: %w", err)
		}

		client.bus = bus
		pipelineOpts = append(pipelineOpts, wikijs.WithInvalidationBroadcaster(bus))
	}

	pipeline, err := wikijs.NewPipeline(config.Pipeline, append(pipelineOpts, opts...)...)
	if err != nil {
		client.release(recorder)

		return nil, fmt.Errorf("creating request pipeline: %w", err)
	}

	client.pipeline = pipeline

	client.recorder = recorder

	if recorder != nil {
		if err := recorder.TrackCache(pipeline.Cache()); err != nil {
			client.release(recorder)

			return nil, fmt.Errorf("tracking cache metrics: %w", err)
		}
	}

	if client.bus != nil {
		if err := client.bus.Subscribe(pipeline.Cache()); err != nil {
			client.release(recorder)

			return nil, fmt.Errorf("subscribing to invalidations: %w", err)
		}
	}

	interval := wikijs.DefaultPipelineConfig().CacheCleanupInterval
	if config.Pipeline != nil {
		interval = config.Pipeline.CacheCleanupInterval
	}

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pipeline.Cache().StartSweeper(sweepCtx, interval)
	client.stopSweeper = cancel

	client.pages = NewPagesClient(client)

	if config.Debug {
		logger.Debug("Wiki.js client created", map[string]interface{}{
			"base_url":     config.BaseURL,
			"api_key":      auth.MaskToken(config.APIKey),
			"invalidation": client.bus != nil,
			"metrics":      recorder != nil,
		})
	}

	return client, nil
}

// Pages implements wikijs.Client.Pages.
func (c *Client) Pages() wikijs.PagesClient {
	return c.pages
}

// Pipeline implements wikijs.Client.Pipeline.
func (c *Client) Pipeline() *wikijs.Pipeline {
	return c.pipeline
}

// APIKeyExpiry implements wikijs.Client.APIKeyExpiry.
func (c *Client) APIKeyExpiry() time.Time {
	if c.apiKey == nil {
		return time.Time{}
	}

	return c.apiKey.ExpiresAt()
}

// TestConnection implements wikijs.Client.TestConnection.
func (c *Client) TestConnection(ctx context.Context) (*wikijs.SiteInfo, error) {
	op := wikijs.Operation{
		TargetKey: constants.TargetSite,
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Site struct {
					Config struct {
						Title string `json:"title"`
					} `json:"config"`
				} `json:"site"`
			}

			if err := c.graphQL(ctx, `{ site { config { title } } }`, nil, &data); err != nil {
				return nil, err
			}

			return &wikijs.SiteInfo{Title: data.Site.Config.Title}, nil
		},
	}

	info, err := wikijs.ExecuteAs[*wikijs.SiteInfo](ctx, c.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("testing connection: %w", err)
	}

	return info, nil
}

// Close stops background work, releases the NATS connection, unregisters
// the client's metrics and forgets the API key. It is safe to call more than
// once.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		if c.stopSweeper != nil {
			c.stopSweeper()
		}

		if c.apiKey != nil {
			c.apiKey.Forget()
		}

		if c.recorder != nil {
			c.recorder.Unregister()
		}

		err = c.closeBus()
	})

	return err
}

// release undoes the work of a New that failed part way.
func (c *Client) release(recorder *metrics.Recorder) {
	if recorder != nil {
		recorder.Unregister()
	}

	_ = c.closeBus()
}

func (c *Client) closeBus() error {
	if c.bus == nil {
		return nil
	}

	if err := c.bus.Close(); err != nil {
		return fmt.Errorf("closing invalidation bus: %w", err)
	}

	return nil
}
