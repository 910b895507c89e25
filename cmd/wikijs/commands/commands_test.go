package commands_test

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/cmd/wikijs/commands"
	"github.com/fivetwenty-io/wikijs/internal/config"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVersionCommand(t *testing.T) {
	resetViper(t, "")
	viper.Set(commands.KeyOutput, constants.FormatYAML)

	out, err := run(commands.NewVersionCommand("1.2.3", "abc123", "2026-01-01"), "")
	require.NoError(t, err)

	var info commands.VersionInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, commands.VersionInfo{Version: "1.2.3", Commit: "abc123", Built: "2026-01-01"}, info)
}

func TestOutputRenderer_UnknownFormat(t *testing.T) {
	resetViper(t, "")
	viper.Set(commands.KeyOutput, "xml")

	_, err := run(commands.NewVersionCommand("1", "2", "3"), "")
	require.ErrorIs(t, err, constants.ErrInvalidOutput)
}

func TestStatusCommand(t *testing.T) {
	t.Run("reports the site and pipeline", func(t *testing.T) {
		server, _ := fakeWiki(t, map[string]string{
			"site": `{"data":{"site":{"config":{"title":"Team Docs"}}}}`,
		})
		resetViper(t, server.URL)
		viper.Set(commands.KeyOutput, constants.FormatJSON)

		out, err := run(commands.NewStatusCommand(), "")
		require.NoError(t, err)

		var status commands.Status
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Equal(t, "Team Docs", status.SiteTitle)
		assert.Equal(t, server.URL, status.URL)
		require.Len(t, status.Circuits, 1)
		assert.Equal(t, constants.TargetSite, status.Circuits[0].TargetKey)
	})

	t.Run("shows the API key expiry", func(t *testing.T) {
		server, _ := fakeWiki(t, map[string]string{
			"site": `{"data":{"site":{"config":{"title":"Team Docs"}}}}`,
		})
		resetViper(t, server.URL)
		viper.Set(commands.KeyOutput, constants.FormatJSON)

		expiresAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":` + strconv.FormatInt(expiresAt.Unix(), 10) + `}`))
		viper.Set(config.KeyAPIKey, "header."+payload+".signature")

		out, err := run(commands.NewStatusCommand(), "")
		require.NoError(t, err)

		var status commands.Status
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		require.NotNil(t, status.APIKeyExpires)
		assert.True(t, expiresAt.Equal(*status.APIKeyExpires))
	})

	t.Run("reports invalid configuration without a request", func(t *testing.T) {
		server, hits := fakeWiki(t, map[string]string{
			"site": `{"data":{"site":{"config":{"title":"Team Docs"}}}}`,
		})
		resetViper(t, server.URL)
		viper.Set(config.KeyCacheSize, 0)

		_, err := run(commands.NewStatusCommand(), "")
		require.ErrorIs(t, err, wikijs.ErrInvalidConfig)
		assert.Zero(t, hits.Load())
	})

	t.Run("fails when the wiki rejects the key", func(t *testing.T) {
		server, _ := fakeWiki(t, map[string]string{
			"site": `{"errors":[{"message":"Forbidden","extensions":{"code":"FORBIDDEN"}}]}`,
		})
		resetViper(t, server.URL)

		out, err := run(commands.NewStatusCommand(), "")
		require.ErrorIs(t, err, commands.ErrConnectionFailed)
		assert.Contains(t, out, "Closed")
	})
}

func TestCacheFlush(t *testing.T) {
	server, hits := fakeWiki(t, map[string]string{})
	resetViper(t, server.URL)
	viper.Set(commands.KeyOutput, constants.FormatJSON)

	cmd := commands.NewCacheCommand()
	require.NotNil(t, findSubcommand(cmd, "flush"))

	out, err := run(cmd, "", "flush")
	require.NoError(t, err)

	var result commands.FlushResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Flushed)
	assert.False(t, result.Broadcast)
	assert.Zero(t, hits.Load())
}

func TestConfigCommand(t *testing.T) {
	cmd := commands.NewConfigCommand()
	assert.NotNil(t, findSubcommand(cmd, "init"))
	assert.NotNil(t, findSubcommand(cmd, "show"))
	assert.NotNil(t, findSubcommand(cmd, "path"))
}

func TestConfigInit(t *testing.T) {
	resetViper(t, "")

	path := filepath.Join(t.TempDir(), "wikijs", "config.yml")

	out, err := run(commands.NewConfigCommand(), "https://wiki.example.com\nsecret-key\n", "init", "--path", path, "--save-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(constants.ConfigFilePerm), info.Mode().Perm())

	v := viper.New()
	require.NoError(t, config.Load(v, path))

	settings, err := config.Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.com", settings.URL)
	assert.Equal(t, "secret-key", settings.APIKey)
}

func TestConfigShow_MasksKey(t *testing.T) {
	resetViper(t, "https://wiki.example.com")
	viper.Set(config.KeyAPIKey, "eyJhbGciOiJIUzI1NiJ9.payload.signature")

	out, err := run(commands.NewConfigCommand(), "", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "eyJhbGciOi...****")
	assert.NotContains(t, out, "signature")
}
