// Package render formats branchstats results for the terminal and for files.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an output format other than table, json or yaml.
var ErrUnknownFormat = errors.New("unknown output format")

// Row is one computed statistic.
type Row struct {
	Name           string  `json:"name"                 yaml:"name"`
	Condition      string  `json:"condition,omitempty"  yaml:"condition,omitempty"`
	Method         string  `json:"method"               yaml:"method"`
	Engine         string  `json:"engine"               yaml:"engine"`
	Value          float64 `json:"value"                yaml:"value"`
	Trees          int     `json:"trees,omitempty"      yaml:"trees,omitempty"`
	Covered        float64 `json:"covered,omitempty"    yaml:"covered,omitempty"`
	SequenceLength float64 `json:"sequence_length"      yaml:"sequence_length"`
	Truncated      bool    `json:"truncated,omitempty"  yaml:"truncated,omitempty"`
}

// Results writes rows in the given format. precision is the number of
// decimals shown in tables; JSON and YAML keep full precision.
func Results(w io.Writer, format string, precision int, rows []Row) error {
	switch format {
	case FormatTable:
		return resultsTable(w, precision, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func resultsTable(w io.Writer, precision int, rows []Row) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Statistic", "Condition", "Method", "Engine", "Value", "Trees", "Covered"})

	truncated := 0

	for _, r := range rows {
		covered := FormatValue(r.Covered, precision)
		if r.Truncated {
			covered += " (truncated)"
			truncated++
		}

		tbl.AppendRow(table.Row{
			r.Name, r.Condition, r.Method, r.Engine,
			FormatValue(r.Value, precision),
			humanize.Comma(int64(r.Trees)),
			covered,
		})
	}

	footer := fmt.Sprintf("%s statistics", humanize.Comma(int64(len(rows))))
	if truncated > 0 {
		footer += fmt.Sprintf(", %d truncated", truncated)
	}

	tbl.AppendFooter(table.Row{footer})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}

// FormatValue prints v with the given number of decimals.
func FormatValue(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
