package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultAttemptTimeout bounds a single transport attempt inside the pipeline.
	DefaultAttemptTimeout = 30 * time.Second

	// GraphQLPath is the Wiki.js GraphQL endpoint path.
	GraphQLPath = "/graphql"
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryBaseDelay is the backoff delay before the first retry.
	DefaultRetryBaseDelay = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 30 * time.Second

	// DefaultRetryMaxElapsed is the total time after which no further retries are scheduled.
	DefaultRetryMaxElapsed = 60 * time.Second

	// MaxRetryAfter caps server supplied Retry-After hints.
	MaxRetryAfter = time.Hour
)

// DefaultRetryStatusCodes are the HTTP status codes retried by default.
func DefaultRetryStatusCodes() []int {
	return []int{429, 500, 502, 503, 504}
}

// Rate limiting.
const (
	// DefaultRateLimitCapacity is the default token bucket size.
	DefaultRateLimitCapacity = 10

	// DefaultRateLimitRate is the default refill rate in tokens per second.
	DefaultRateLimitRate = 10.0

	// DefaultRateLimitTimeout is how long a call may wait for a token.
	DefaultRateLimitTimeout = 5 * time.Second
)

// Cache configuration.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCleanupInterval is how often expired entries are swept.
	DefaultCacheCleanupInterval = time.Minute
)

// Circuit breaker configuration.
const (
	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)

// Circuit breaker state names.
const (
	// StatusClosed indicates a closed state.
	StatusClosed = "closed"

	// StatusOpen indicates an open state.
	StatusOpen = "open"

	// StatusHalfOpen indicates a half-open state.
	StatusHalfOpen = "half-open"
)

// Cross-process invalidation.
const (
	// DefaultInvalidationSubject is the NATS subject carrying cache invalidations.
	DefaultInvalidationSubject = "wikijs.cache.invalidate"

	// NATSReconnectWait is the delay between NATS reconnect attempts.
	NATSReconnectWait = 2 * time.Second
)

// Page defaults.
const (
	// DefaultLocale is used when a page locale is not specified.
	DefaultLocale = "en"

	// DefaultEditor is the editor recorded for pages created through the client.
	DefaultEditor = "markdown"

	// TargetPages is the breaker and limiter key for page operations.
	TargetPages = "pages"

	// TargetSite is the breaker and limiter key for site queries.
	TargetSite = "site"
)

// Client identification.
const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "wikijs-go/1.0"

	// EnvPrefix is the environment variable prefix read by the configuration loader.
	EnvPrefix = "WIKIJS"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Configuration file location under the user's home directory.
const (
	ConfigDirName  = ".wikijs"
	ConfigFileName = "config"
	ConfigFileType = "yml"
)

// Batch calls and pagination.
const (
	// DefaultBatchConcurrency bounds the calls a batch operation runs at once.
	DefaultBatchConcurrency = 5

	// DefaultPageBatchSize is the number of pages an iterator fetches per request.
	DefaultPageBatchSize = 50
)
