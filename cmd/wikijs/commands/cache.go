package commands

import (
	"context"
	"io"
	"strconv"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/cobra"
)

// FlushResult reports a cache flush.
type FlushResult struct {
	Flushed   int    `json:"flushed"           yaml:"flushed"`
	Broadcast bool   `json:"broadcast"         yaml:"broadcast"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached results",
	}

	cmd.AddCommand(newCacheFlushCommand())

	return cmd
}

func newCacheFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Drop cached results everywhere",
		Long:  "Drop this process's cached results and, when NATS invalidation is configured, tell every other client on the subject to drop theirs",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			return withClient(cmd, func(ctx context.Context, client wikijs.Client) error {
				result := FlushResult{Flushed: client.Pipeline().Cache().Len()}

				if err := client.Pipeline().InvalidateAll(ctx); err != nil {
					return err
				}

				if settings.NATS != nil {
					result.Broadcast = true
					result.Subject = settings.NATS.Subject
				}

				renderer := OutputRenderer[FlushResult]{
					RenderTable: func(w io.Writer, result FlushResult) error {
						table := newTable(w, "Property", "Value")
						_ = table.Append("Flushed", strconv.Itoa(result.Flushed))
						_ = table.Append("Broadcast", strconv.FormatBool(result.Broadcast))
						_ = table.Append("Subject", orNotAvailable(result.Subject))

						return renderTable(table)
					},
				}

				return renderer.Render(cmd.OutOrStdout(), result, outputFormat())
			})
		},
	}
}
