package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wikijs/internal/auth"
	"github.com/fivetwenty-io/wikijs/internal/config"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Create and inspect the Wiki.js CLI configuration file",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

// configFilePath is the file in use, or the default location when none was read.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}

	dir, err := config.DefaultDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, constants.ConfigFileName+"."+constants.ConfigFileType), nil
}

// prompt reads one line from in after printing label to out.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)

	line, err := in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}

	return strings.TrimSpace(line), nil
}

// promptSecret reads a line without echo when in is a terminal.
func promptSecret(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) { //nolint:gosec // fd fits in int
		_, _ = fmt.Fprint(cmd.OutOrStdout(), label)

		secret, err := term.ReadPassword(int(file.Fd())) //nolint:gosec // fd fits in int
		_, _ = fmt.Fprintln(cmd.OutOrStdout())

		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}

		return strings.TrimSpace(string(secret)), nil
	}

	return prompt(in, cmd.OutOrStdout(), label)
}

func newConfigInitCommand() *cobra.Command {
	var (
		path    string
		saveKey bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long:  "Write the wiki URL, API key and pipeline defaults to a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())

			if settings.URL == "" {
				if settings.URL, err = prompt(in, cmd.OutOrStdout(), "Wiki URL: "); err != nil {
					return err
				}
			}

			if settings.URL == "" {
				return constants.ErrNoURLConfigured
			}

			if saveKey && settings.APIKey == "" {
				if settings.APIKey, err = promptSecret(cmd, in, "API key: "); err != nil {
					return err
				}

				if settings.APIKey == "" {
					return constants.ErrNoAPIKeyConfigured
				}
			}

			if path == "" {
				if path, err = configFilePath(); err != nil {
					return err
				}
			}

			if err := config.WriteFile(path, settings, saveKey); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "file to write (default is $HOME/.wikijs/config.yml)")
	cmd.Flags().BoolVar(&saveKey, "save-key", false, "store the API key in the file")

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration after merging file, environment and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			if settings.APIKey != "" {
				settings.APIKey = auth.MaskToken(settings.APIKey)
			}

			renderer := OutputRenderer[*config.Settings]{
				RenderTable: func(w io.Writer, s *config.Settings) error {
					p := s.Pipeline

					table := newTable(w, "Setting", "Value")
					_ = table.Append("URL", orNotAvailable(s.URL))
					_ = table.Append("API Key", orNotAvailable(s.APIKey))
					_ = table.Append("Timeout", s.Timeout.String())
					_ = table.Append("Log Level", s.Log.Level)
					_ = table.Append("Cache", fmt.Sprintf("%d entries, ttl %s", p.CacheMaxEntries, p.CacheDefaultTTL))
					_ = table.Append("Rate Limit", fmt.Sprintf("%d burst, %s/s, wait %s", p.LimiterCapacity, strconv.FormatFloat(p.LimiterRate, 'f', -1, 64), p.LimiterTimeout))
					_ = table.Append("Retries", fmt.Sprintf("%d, base %s, max %s, budget %s", p.RetryMaxAttempts, p.RetryBaseDelay, p.RetryMaxDelay, p.RetryMaxElapsed))
					_ = table.Append("Circuit Breaker", fmt.Sprintf("%d failures, recover %s, %d successes", p.BreakerFailureThreshold, p.BreakerRecoveryTimeout, p.BreakerSuccessThreshold))

					nats := NotAvailable
					if s.NATS != nil {
						nats = s.NATS.NATSURL + " " + s.NATS.Subject
					}

					_ = table.Append("Invalidation", nats)

					return renderTable(table)
				},
			}

			return renderer.Render(cmd.OutOrStdout(), settings, outputFormat())
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)

			return nil
		},
	}
}
