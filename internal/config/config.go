// Package config loads client settings from a YAML file, WIKIJS_*
// environment variables and command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/internal/logging"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Configuration keys. Nested keys map to WIKIJS_<SECTION>_<NAME> variables.
const (
	KeyURL         = "url"
	KeyAPIKey      = "api_key"
	KeyTimeout     = "timeout"
	KeyUserAgent   = "user_agent"
	KeyDebug       = "debug"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
	KeyCacheSize   = "cache.max_entries"
	KeyCacheTTL    = "cache.ttl"
	KeyCacheSweep  = "cache.cleanup_interval"
	KeyLimitBurst  = "limiter.capacity"
	KeyLimitRate   = "limiter.rate"
	KeyLimitWait   = "limiter.timeout"
	KeyRetryMax    = "retry.max_attempts"
	KeyRetryBase   = "retry.base_delay"
	KeyRetryCap    = "retry.max_delay"
	KeyRetryBudget = "retry.max_elapsed"
	KeyRetryCodes  = "retry.status_codes"
	KeyBreakerFail = "breaker.failure_threshold"
	KeyBreakerWait = "breaker.recovery_timeout"
	KeyBreakerOK   = "breaker.success_threshold"
	KeyAttemptWait = "attempt_timeout"
	KeyNATSURL     = "nats.url"
	KeyNATSSubject = "nats.subject"
	KeyNATSName    = "nats.name"
)

// Static errors for err113 compliance.
var (
	ErrInvalidStatusCode = errors.New("invalid retry status code")
)

// Settings is the decoded configuration.
type Settings struct {
	URL       string                     `json:"url"               yaml:"url"`
	APIKey    string                     `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout   time.Duration              `json:"timeout"           yaml:"timeout"`
	UserAgent string                     `json:"user_agent"        yaml:"user_agent"`
	Debug     bool                       `json:"debug"             yaml:"debug"`
	Log       logging.Config             `json:"log"               yaml:"log"`
	Pipeline  wikijs.PipelineConfig      `json:"pipeline"          yaml:"pipeline"`
	NATS      *wikijs.InvalidationConfig `json:"nats,omitempty"    yaml:"nats,omitempty"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	defaults := wikijs.DefaultPipelineConfig()

	v.SetDefault(KeyTimeout, constants.DefaultHTTPTimeout)
	v.SetDefault(KeyUserAgent, constants.DefaultUserAgent)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyCacheSize, defaults.CacheMaxEntries)
	v.SetDefault(KeyCacheTTL, defaults.CacheDefaultTTL)
	v.SetDefault(KeyCacheSweep, defaults.CacheCleanupInterval)
	v.SetDefault(KeyLimitBurst, defaults.LimiterCapacity)
	v.SetDefault(KeyLimitRate, defaults.LimiterRate)
	v.SetDefault(KeyLimitWait, defaults.LimiterTimeout)
	v.SetDefault(KeyRetryMax, defaults.RetryMaxAttempts)
	v.SetDefault(KeyRetryBase, defaults.RetryBaseDelay)
	v.SetDefault(KeyRetryCap, defaults.RetryMaxDelay)
	v.SetDefault(KeyRetryBudget, defaults.RetryMaxElapsed)
	v.SetDefault(KeyRetryCodes, defaults.RetryStatusCodes)
	v.SetDefault(KeyBreakerFail, defaults.BreakerFailureThreshold)
	v.SetDefault(KeyBreakerWait, defaults.BreakerRecoveryTimeout)
	v.SetDefault(KeyBreakerOK, defaults.BreakerSuccessThreshold)
	v.SetDefault(KeyAttemptWait, defaults.AttemptTimeout)
	v.SetDefault(KeyNATSSubject, constants.DefaultInvalidationSubject)
}

// Load prepares v and reads the config file. An explicit path must exist;
// otherwise ~/.wikijs/config.yml is read when present.
func Load(v *viper.Viper, path string) error {
	SetDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}

		return nil
	}

	dir, err := DefaultDir()
	if err != nil {
		return err
	}

	v.AddConfigPath(dir)
	v.SetConfigName(constants.ConfigFileName)
	v.SetConfigType(constants.ConfigFileType)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("reading config file: %w", err)
	}

	return nil
}

// DefaultDir returns ~/.wikijs.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName), nil
}

// Decode reads Settings out of v and validates the pipeline section.
func Decode(v *viper.Viper) (*Settings, error) {
	codes, err := intSlice(v.Get(KeyRetryCodes))
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		URL:       v.GetString(KeyURL),
		APIKey:    v.GetString(KeyAPIKey),
		Timeout:   v.GetDuration(KeyTimeout),
		UserAgent: v.GetString(KeyUserAgent),
		Debug:     v.GetBool(KeyDebug),
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Pipeline: wikijs.PipelineConfig{
			CacheMaxEntries:         v.GetInt(KeyCacheSize),
			CacheDefaultTTL:         v.GetDuration(KeyCacheTTL),
			CacheCleanupInterval:    v.GetDuration(KeyCacheSweep),
			LimiterCapacity:         v.GetInt(KeyLimitBurst),
			LimiterRate:             v.GetFloat64(KeyLimitRate),
			LimiterTimeout:          v.GetDuration(KeyLimitWait),
			RetryMaxAttempts:        v.GetInt(KeyRetryMax),
			RetryBaseDelay:          v.GetDuration(KeyRetryBase),
			RetryMaxDelay:           v.GetDuration(KeyRetryCap),
			RetryMaxElapsed:         v.GetDuration(KeyRetryBudget),
			RetryStatusCodes:        codes,
			BreakerFailureThreshold: v.GetInt(KeyBreakerFail),
			BreakerRecoveryTimeout:  v.GetDuration(KeyBreakerWait),
			BreakerSuccessThreshold: v.GetInt(KeyBreakerOK),
			AttemptTimeout:          v.GetDuration(KeyAttemptWait),
		},
	}

	if url := v.GetString(KeyNATSURL); url != "" {
		settings.NATS = &wikijs.InvalidationConfig{
			NATSURL: url,
			Subject: v.GetString(KeyNATSSubject),
			Name:    v.GetString(KeyNATSName),
		}
	}

	if err := settings.Pipeline.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// ClientConfig converts settings into a client configuration.
func (s *Settings) ClientConfig(logger wikijs.Logger) *wikijs.Config {
	pipeline := s.Pipeline

	return &wikijs.Config{
		BaseURL:      s.URL,
		APIKey:       s.APIKey,
		HTTPTimeout:  s.Timeout,
		UserAgent:    s.UserAgent,
		Debug:        s.Debug,
		Logger:       logger,
		Pipeline:     &pipeline,
		Invalidation: s.NATS,
	}
}

// WriteFile saves settings as YAML, creating the directory if needed. The API
// key is only written when includeKey is set.
func WriteFile(path string, settings *Settings, includeKey bool) error {
	out := *settings
	if !includeKey {
		out.APIKey = ""
	}

	data, err := yaml.Marshal(fileLayout(&out))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileLayout mirrors the key structure Load expects.
func fileLayout(s *Settings) map[string]interface{} {
	p := s.Pipeline

	layout := map[string]interface{}{
		"url":        s.URL,
		"timeout":    s.Timeout.String(),
		"user_agent": s.UserAgent,
		"debug":      s.Debug,
		"log":        map[string]interface{}{"level": s.Log.Level, "format": s.Log.Format},
		"cache": map[string]interface{}{
			"max_entries":      p.CacheMaxEntries,
			"ttl":              p.CacheDefaultTTL.String(),
			"cleanup_interval": p.CacheCleanupInterval.String(),
		},
		"limiter": map[string]interface{}{
			"capacity": p.LimiterCapacity,
			"rate":     p.LimiterRate,
			"timeout":  p.LimiterTimeout.String(),
		},
		"retry": map[string]interface{}{
			"max_attempts": p.RetryMaxAttempts,
			"base_delay":   p.RetryBaseDelay.String(),
			"max_delay":    p.RetryMaxDelay.String(),
			"max_elapsed":  p.RetryMaxElapsed.String(),
			"status_codes": p.RetryStatusCodes,
		},
		"breaker": map[string]interface{}{
			"failure_threshold": p.BreakerFailureThreshold,
			"recovery_timeout":  p.BreakerRecoveryTimeout.String(),
			"success_threshold": p.BreakerSuccessThreshold,
		},
		"attempt_timeout": p.AttemptTimeout.String(),
	}

	if s.APIKey != "" {
		layout["api_key"] = s.APIKey
	}

	if s.NATS != nil {
		layout["nats"] = map[string]interface{}{
			"url":     s.NATS.NATSURL,
			"subject": s.NATS.Subject,
			"name":    s.NATS.Name,
		}
	}

	return layout
}

// intSlice accepts a YAML list or a comma separated environment value.
func intSlice(raw interface{}) ([]int, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []int:
		return value, nil
	case string:
		var codes []int

		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			code, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidStatusCode, part)
			}

			codes = append(codes, code)
		}

		return codes, nil
	case []interface{}:
		codes := make([]int, 0, len(value))

		for _, item := range value {
			switch n := item.(type) {
			case int:
				codes = append(codes, n)
			case int64:
				codes = append(codes, int(n))
			case float64:
				codes = append(codes, int(n))
			case string:
				code, err := strconv.Atoi(strings.TrimSpace(n))
				if err != nil {
					return nil, fmt.Errorf("%w: %q", ErrInvalidStatusCode, n)
				}

				codes = append(codes, code)
			default:
				return nil, fmt.Errorf("%w: %v", ErrInvalidStatusCode, item)
			}
		}

		return codes, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatusCode, raw)
	}
}
