package commands_test

import (
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/wikijs/cmd/wikijs/commands"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagesCommand(t *testing.T) {
	cmd := commands.NewPagesCommand()
	assert.Equal(t, "pages", cmd.Use)
	assert.Equal(t, []string{"page", "p"}, cmd.Aliases)

	for _, name := range []string{"get", "list", "search"} {
		sub := findSubcommand(cmd, name)
		require.NotNil(t, sub, "missing subcommand %s", name)
		assert.NotNil(t, sub.RunE)
	}

	list := findSubcommand(cmd, "list")
	for _, flagName := range []string{"limit", "order-by", "direction", "tag", "locale", "author"} {
		assert.NotNil(t, list.Flags().Lookup(flagName), "Flag %s should exist", flagName)
	}

	localeFlag := findSubcommand(cmd, "get").Flags().Lookup("locale")
	require.NotNil(t, localeFlag)
	assert.Equal(t, "l", localeFlag.Shorthand)
}

func TestPagesGet(t *testing.T) {
	server, _ := fakeWiki(t, map[string]string{
		"singleByPath": `{"data":{"pages":{"singleByPath":` + pageJSON + `}}}`,
		"single(":      `{"data":{"pages":{"single":` + pageJSON + `}}}`,
	})

	t.Run("by ID as JSON", func(t *testing.T) {
		resetViper(t, server.URL)
		viper.Set(commands.KeyOutput, constants.FormatJSON)

		out, err := run(commands.NewPagesCommand(), "", "get", "42")
		require.NoError(t, err)

		var page wikijs.Page
		require.NoError(t, json.Unmarshal([]byte(out), &page))
		assert.Equal(t, 42, page.ID)
		assert.Equal(t, []string{"guide"}, page.Tags)
	})

	t.Run("by path as table", func(t *testing.T) {
		resetViper(t, server.URL)

		out, err := run(commands.NewPagesCommand(), "", "get", "docs/intro")
		require.NoError(t, err)
		assert.Contains(t, out, "Intro")
		assert.Contains(t, out, "Administrator")
	})

	t.Run("requires a URL", func(t *testing.T) {
		resetViper(t, "")

		_, err := run(commands.NewPagesCommand(), "", "get", "42")
		require.ErrorIs(t, err, constants.ErrNoURLConfigured)
	})
}

func TestPagesList(t *testing.T) {
	server, _ := fakeWiki(t, map[string]string{
		"list(": `{"data":{"pages":{"list":[` + pageJSON + `]}}}`,
	})
	resetViper(t, server.URL)

	out, err := run(commands.NewPagesCommand(), "", "list", "--tag", "guide", "--order-by", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "docs/intro")

	_, err = run(commands.NewPagesCommand(), "", "list", "--direction", "sideways")
	require.ErrorIs(t, err, wikijs.ErrInvalidListOpts)
}

func TestPagesSearch(t *testing.T) {
	server, _ := fakeWiki(t, map[string]string{
		"search(": `{"data":{"pages":{"search":{"results":[{"id":"42","title":"Intro","path":"docs/intro","locale":"en"}],"totalHits":3}}}}`,
	})
	resetViper(t, server.URL)

	out, err := run(commands.NewPagesCommand(), "", "search", "getting", "started")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 hits")
}
