package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the result of a connection check together with the pipeline
// state it left behind.
type Status struct {
	URL           string                   `json:"url"                       yaml:"url"`
	SiteTitle     string                   `json:"site_title,omitempty"      yaml:"site_title,omitempty"`
	Latency       time.Duration            `json:"latency"                   yaml:"latency"`
	Error         string                   `json:"error,omitempty"           yaml:"error,omitempty"`
	APIKeyExpires *time.Time               `json:"api_key_expires,omitempty" yaml:"api_key_expires,omitempty"`
	Cache         wikijs.CacheStats        `json:"cache"                     yaml:"cache"`
	Circuits      []wikijs.CircuitSnapshot `json:"circuits"                  yaml:"circuits"`
	Tokens        map[string]float64       `json:"tokens"                    yaml:"tokens"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"ping"},
		Short:   "Check connectivity and show pipeline state",
		Long:    "Query the site title through the request pipeline and report cache, circuit breaker and rate limiter state",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			return withClient(cmd, func(ctx context.Context, client wikijs.Client) error {
				status := collectStatus(ctx, settings.URL, client)

				renderer := OutputRenderer[*Status]{RenderTable: renderStatusTable}
				if err := renderer.Render(cmd.OutOrStdout(), status, outputFormat()); err != nil {
					return err
				}

				if status.Error != "" {
					return fmt.Errorf("%w: %s", ErrConnectionFailed, status.Error)
				}

				return nil
			})
		},
	}
}

func collectStatus(ctx context.Context, url string, client wikijs.Client) *Status {
	status := &Status{URL: url, Tokens: map[string]float64{}}

	if expires := client.APIKeyExpiry(); !expires.IsZero() {
		status.APIKeyExpires = &expires
	}

	start := time.Now()
	info, err := client.TestConnection(ctx)
	status.Latency = time.Since(start).Round(time.Millisecond)

	if err != nil {
		status.Error = err.Error()
	} else {
		status.SiteTitle = info.Title
	}

	pipeline := client.Pipeline()
	status.Cache = pipeline.Cache().Stats()
	status.Circuits = pipeline.Breaker().Snapshots()

	for _, target := range []string{constants.TargetSite, constants.TargetPages} {
		status.Tokens[target] = pipeline.Limiter().Tokens(target)
	}

	return status
}

func renderStatusTable(w io.Writer, status *Status) error {
	title := cases.Title(language.English)

	table := newTable(w, "Property", "Value")
	_ = table.Append("URL", status.URL)
	_ = table.Append("Site", orNotAvailable(status.SiteTitle))
	_ = table.Append("Latency", status.Latency.String())

	if status.Error != "" {
		_ = table.Append("Error", status.Error)
	}

	expires := "Never"
	if status.APIKeyExpires != nil {
		expires = status.APIKeyExpires.Local().Format(timeLayout)
	}

	_ = table.Append("API Key Expires", expires)

	_ = table.Append("Cache Entries", fmt.Sprintf("%d / %d", status.Cache.Size, status.Cache.MaxEntries))
	_ = table.Append("Cache Hit Rate", fmt.Sprintf("%.1f%%", status.Cache.HitRate()*100)) //nolint:mnd // percent

	if err := renderTable(table); err != nil {
		return err
	}

	circuits := newTable(w, "Target", "State", "Failures", "Trial Successes", "Opened", "Tokens")

	for _, snapshot := range status.Circuits {
		opened := NotAvailable
		if !snapshot.OpenedAt.IsZero() {
			opened = snapshot.OpenedAt.Format(timeLayout)
		}

		_ = circuits.Append(
			snapshot.TargetKey,
			title.String(snapshot.State.String()),
			strconv.Itoa(snapshot.ConsecutiveFailures),
			strconv.Itoa(snapshot.TrialSuccesses),
			opened,
			strconv.FormatFloat(status.Tokens[snapshot.TargetKey], 'f', 1, 64),
		)
	}

	return renderTable(circuits)
}
