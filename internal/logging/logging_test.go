package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fivetwenty-io/wikijs/internal/logging"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ wikijs.Logger = (*logging.Logger)(nil)

func TestNewAcceptsKnownLevelsAndFormats(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"", "debug", "info", "warn", "WARNING", "error"} {
		for _, format := range []string{"", "text", "json", "JSON"} {
			logger, err := logging.New(logging.Config{Level: level, Format: format}, &bytes.Buffer{})
			require.NoError(t, err, "level=%q format=%q", level, format)
			require.NotNil(t, logger.Slog())
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := logging.New(logging.Config{Level: "verbose"}, nil)
	require.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := logging.New(logging.Config{Format: "binary"}, nil)
	require.Error(t, err)
}

func TestLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(logging.Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Warn("Circuit breaker opened", map[string]interface{}{"target": "pages", "failures": 5})

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "Circuit breaker opened", record["msg"])
	assert.Equal(t, "wikijs", record["component"])
	assert.Equal(t, "pages", record["target"])
	assert.InDelta(t, 5, record["failures"], 0)
}

func TestLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(logging.Config{Level: "info"}, &buf)
	require.NoError(t, err)

	logger.Debug("HTTP Request", map[string]interface{}{"url": "https://wiki.example.com/graphql"})
	assert.Empty(t, buf.String())

	logger.Info("Cache invalidated", nil)
	assert.True(t, strings.Contains(buf.String(), "Cache invalidated"))
}

func TestLoggerSortsFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(logging.Config{Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Error("failed", map[string]interface{}{"zeta": 1, "alpha": 2})
	assert.Less(t, strings.Index(buf.String(), "alpha="), strings.Index(buf.String(), "zeta="))
}
