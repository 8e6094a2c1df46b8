// Package formatting renders connectorctl's results as tables, JSON or YAML.
//
// JSON and YAML output is the wire shape of each value (snake_case keys, auth
// configs with their "type" discriminator). Table output knows the domain
// types and falls back to a key/value listing for anything else.
package formatting

import (
	"fmt"
	"io"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatWide  OutputFormat = "wide" // table with extra columns
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ValidFormats lists the accepted --output values.
var ValidFormats = []OutputFormat{FormatTable, FormatWide, FormatJSON, FormatYAML}

// ParseFormat validates an --output value. Empty means table.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatWide, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q (valid: table, wide, json, yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool // table only
	Color     bool // table only
}

// Formatter writes values in one output format.
type Formatter interface {
	Write(w io.Writer, v interface{}) error
	Options() Options
}

// New returns the formatter for opts.Format.
func New(opts Options) Formatter {
	switch opts.Format {
	case FormatJSON:
		return &JSONFormatter{options: opts}
	case FormatYAML:
		return &YAMLFormatter{options: opts}
	default:
		return &TableFormatter{options: opts}
	}
}
