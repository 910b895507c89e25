package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Viper keys owned by the CLI rather than the client configuration.
const (
	KeyOutput  = "output"
	KeyVerbose = "verbose"
)

const (
	NotAvailable = "N/A"

	defaultJSONIndent = 2
	timeLayout        = "2006-01-02 15:04:05"
)

// Static errors for err113 compliance.
var (
	ErrConnectionFailed = errors.New("connection check failed")
)

// OutputRenderer handles different output formats.
type OutputRenderer[T any] struct {
	RenderTable func(w io.Writer, data T) error
}

// Render writes data in format. JSON and YAML use the value's struct tags.
func (o *OutputRenderer[T]) Render(w io.Writer, data T, format string) error {
	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", strings.Repeat(" ", defaultJSONIndent))

		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()

		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}

		return nil
	case constants.FormatTable, "":
		return o.RenderTable(w, data)
	default:
		return fmt.Errorf("%w: %q", constants.ErrInvalidOutput, format)
	}
}

func outputFormat() string {
	return viper.GetString(KeyOutput)
}

// newTable returns a table writer with the given header.
func newTable(w io.Writer, header ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(header...)

	return table
}

func renderTable(table *tablewriter.Table) error {
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func orNotAvailable(value string) string {
	if value == "" {
		return NotAvailable
	}

	return value
}
