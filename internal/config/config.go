// Package config loads the branchstats CLI configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// maxPrecision bounds the number of decimals printed for statistic values.
const maxPrecision = 17

// Config is the top-level configuration struct for branchstats.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Statistic     StatisticConfig     `mapstructure:"statistic"`
	Verify        VerifyConfig        `mapstructure:"verify"`
	Output        OutputConfig        `mapstructure:"output"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StatisticConfig selects the statistic computed by default.
type StatisticConfig struct {
	// Condition is a condition expression such as "private:0" or "not:shared".
	Condition string `mapstructure:"condition"`
	Method    string `mapstructure:"method"`
	// Groups names the sample groups of the input file, in order. Empty means
	// all groups in the file, or all samples when the file defines none.
	Groups []string `mapstructure:"groups"`
}

// VerifyConfig holds settings for comparing the naive and incremental engines.
type VerifyConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	Format    string `mapstructure:"format"`
	Precision int    `mapstructure:"precision"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds OTLP and metrics sink settings.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// MetricsFile is a Prometheus textfile written after each run.
	MetricsFile string `mapstructure:"metrics_file"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidTolerance indicates a negative verify tolerance.
	ErrInvalidTolerance = errors.New("verify.tolerance must be non-negative")
	// ErrInvalidFormat indicates an unsupported output format.
	ErrInvalidFormat = errors.New("output.format must be table, json or yaml")
	// ErrInvalidPrecision indicates the precision is out of range.
	ErrInvalidPrecision = errors.New("output.precision must be between 0 and 17")
	// ErrInvalidLogLevel indicates an unknown logging level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrEmptyCondition indicates a blank statistic condition.
	ErrEmptyCondition = errors.New("statistic.condition must not be empty")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Statistic.Condition) == "" {
		return ErrEmptyCondition
	}

	if c.Verify.Tolerance < 0 {
		return ErrInvalidTolerance
	}

	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if c.Output.Precision < 0 || c.Output.Precision > maxPrecision {
		return ErrInvalidPrecision
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}
