package wikijs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PagesClient provides access to page operations.
type PagesClient interface {
	Get(ctx context.Context, id int) (*Page, error)
	GetByPath(ctx context.Context, path, locale string) (*Page, error)
	List(ctx context.Context, opts *PageListOptions) ([]Page, error)
	Search(ctx context.Context, query string, opts *PageSearchOptions) (*PageSearchResponse, error)
	Create(ctx context.Context, page *PageCreate) (*Page, error)
	Update(ctx context.Context, id int, update *PageUpdate) (*Page, error)
	Delete(ctx context.Context, id int) error

	// GetByTags returns pages carrying all of tags, or any of them when
	// matchAll is false. A zero limit returns every match.
	GetByTags(ctx context.Context, tags []string, matchAll bool, limit int) ([]Page, error)
	// Iterate walks a listing batchSize pages at a time. Limit and Offset in
	// opts are ignored.
	Iterate(ctx context.Context, opts *PageListOptions, batchSize int) *PageIterator

	// CreateMany, UpdateMany and DeleteMany run one call per item
	// concurrently. Every item gets a result; when any item fails the error
	// is a *BatchError.
	CreateMany(ctx context.Context, pages []*PageCreate) ([]PageBatchResult, error)
	UpdateMany(ctx context.Context, updates []PageBatchUpdate) ([]PageBatchResult, error)
	DeleteMany(ctx context.Context, ids []int) ([]PageBatchResult, error)
}

// Client is a Wiki.js API client.
type Client interface {
	Pages() PagesClient
	// TestConnection runs a minimal site query through the pipeline.
	TestConnection(ctx context.Context) (*SiteInfo, error)
	// APIKeyExpiry returns when the configured API key expires, or the zero
	// time when the key carries no expiry.
	APIKeyExpiry() time.Time
	// Pipeline exposes the shared request pipeline for diagnostics.
	Pipeline() *Pipeline
	Close() error
}

// InvalidationConfig enables cross-process cache invalidation over NATS.
type InvalidationConfig struct {
	NATSURL string `json:"nats_url" yaml:"nats_url"`
	Subject string `json:"subject"  yaml:"subject"`
	// Name identifies this client on the NATS connection.
	Name string `json:"name" yaml:"name"`
}

// Config represents client configuration for building a wikijs.Client.
type Config struct {
	BaseURL     string        `json:"base_url"     yaml:"base_url"`
	APIKey      string        `json:"-"            yaml:"-"`
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
	UserAgent   string        `json:"user_agent"   yaml:"user_agent"`
	Debug       bool          `json:"debug"        yaml:"debug"`

	// BatchConcurrency bounds the calls a batch operation runs at once.
	BatchConcurrency int `json:"batch_concurrency,omitempty" yaml:"batch_concurrency,omitempty"`

	Logger Logger `json:"-" yaml:"-"`

	// Pipeline configures caching and resilience. Nil uses defaults.
	Pipeline *PipelineConfig `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`

	// MetricsRegisterer receives the client's Prometheus collectors when set.
	MetricsRegisterer prometheus.Registerer `json:"-" yaml:"-"`

	// Invalidation enables NATS invalidation broadcast when set.
	Invalidation *InvalidationConfig `json:"invalidation,omitempty" yaml:"invalidation,omitempty"`
}
