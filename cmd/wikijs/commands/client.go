package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fivetwenty-io/wikijs/internal/config"
	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/internal/logging"
	"github.com/fivetwenty-io/wikijs/pkg/wikiclient"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/viper"
)

// loadSettings decodes the current viper state. --verbose turns on debug
// logging for the transport and the pipeline.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if viper.GetBool(KeyVerbose) {
		settings.Debug = true
		settings.Log.Level = "debug"
	}

	return settings, nil
}

// CreateClient builds a client from the loaded configuration. Log output goes
// to logOut.
func CreateClient(ctx context.Context, logOut io.Writer) (wikijs.Client, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	if settings.URL == "" {
		return nil, constants.ErrNoURLConfigured
	}

	logger, err := logging.New(settings.Log, logOut)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	client, err := wikiclient.New(ctx, settings.ClientConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}
