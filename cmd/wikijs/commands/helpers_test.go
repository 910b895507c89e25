package commands_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/wikijs/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// resetViper gives the test a clean global configuration with retries off.
func resetViper(t *testing.T, url string) {
	t.Helper()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set(config.KeyURL, url)
	viper.Set(config.KeyRetryMax, 0)
	viper.Set(config.KeyCacheSweep, 0)
	t.Cleanup(viper.Reset)
}

// fakeWiki serves canned GraphQL data keyed by a fragment of the query.
func fakeWiki(t *testing.T, responses map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	hits := &atomic.Int32{}

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)

		var body struct {
			Query string `json:"query"`
		}

		_ = json.NewDecoder(request.Body).Decode(&body)

		for fragment, response := range responses {
			if strings.Contains(body.Query, fragment) {
				_, _ = writer.Write([]byte(response))

				return
			}
		}

		writer.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	return server, hits
}

// run executes cmd with args and returns what it wrote to stdout.
func run(cmd *cobra.Command, stdin string, args ...string) (string, error) {
	var out, errOut bytes.Buffer

	if args == nil {
		args = []string{}
	}

	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()

	return out.String(), err
}

const pageJSON = `{"id":42,"path":"docs/intro","locale":"en","title":"Intro","description":"First steps",` +
	`"isPublished":true,"tags":[{"tag":"guide"}],"authorName":"Administrator",` +
	`"createdAt":"2024-03-01T10:00:00Z","updatedAt":"2024-03-02T11:30:00Z"}`
