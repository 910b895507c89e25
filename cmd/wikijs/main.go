package main

import (
	"fmt"
	"os"

	"github.com/fivetwenty-io/wikijs/cmd/wikijs/commands"
	"github.com/fivetwenty-io/wikijs/internal/config"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "wikijs",
	Short: "Wiki.js GraphQL CLI",
	Long: `A command-line interface for the Wiki.js GraphQL API.

Reads go through a local result cache and every request is rate limited,
retried on transient failures and guarded by a circuit breaker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.wikijs/config.yml)")
	rootCmd.PersistentFlags().StringP("url", "u", "", "Wiki.js base URL")
	rootCmd.PersistentFlags().StringP("api-key", "k", "", "Wiki.js API key")
	rootCmd.PersistentFlags().StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag(config.KeyURL, rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag(config.KeyAPIKey, rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag(commands.KeyOutput, rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag(commands.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewPagesCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewCacheCommand())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")

	if err := config.Load(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if viper.GetBool(commands.KeyVerbose) && viper.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
