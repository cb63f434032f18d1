// Package commands implements the branchstats CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/config"
	"github.com/Sumatoshi-tech/branchstats/internal/observability"
	"github.com/Sumatoshi-tech/branchstats/pkg/version"
)

// Exit codes returned by the binary.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitFailure = 2
)

var (
	// ErrValidationFailed indicates that a document failed schema or table validation.
	ErrValidationFailed = errors.New("validation failed")
	// ErrVerifyFailed indicates that the naive and incremental engines disagree.
	ErrVerifyFailed = errors.New("engines disagree")
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrVerifyFailed):
		return ExitFailure
	default:
		return ExitError
	}
}

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	providers  observability.Providers
}

func (a *app) logger() *slog.Logger {
	if a.providers.Logger == nil {
		return slog.Default()
	}

	return a.providers.Logger
}

func (a *app) tracer() trace.Tracer {
	return a.providers.Tracer
}

// Run executes the command line args and returns the process exit code.
// Errors are printed to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	a.teardown(context.WithoutCancel(ctx))

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	return ExitCode(err)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "branchstats",
		Short: "Branch-length statistics over tree sequences",
		Long: `branchstats computes branch-length statistics over tree sequences.

The incremental engine walks the edge differences between adjacent trees and
updates only the ancestors whose leaf counts changed.

Commands:
  compute    Evaluate one or more conditions over sample groups
  diversity  Mean path length between two samples
  ystat      Three-sample Y statistic
  verify     Compare the incremental engine against full traversal
  validate   Check a tree sequence document
  convert    Convert between YAML, JSON and lz4-compressed documents
  plot       Per-tree counted length along the sequence as HTML
  serve      Expose statistics and Prometheus metrics over HTTP`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default .branchstats.yaml in . or $HOME)")

	root.AddCommand(
		newComputeCommand(a),
		newDiversityCommand(a),
		newYStatCommand(a),
		newVerifyCommand(a),
		newValidateCommand(a),
		newConvertCommand(a),
		newPlotCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON

	if cmd.Name() == "serve" {
		obsCfg.Mode = observability.ModeServe
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.cfg = cfg
	a.providers = providers

	return nil
}

func (a *app) teardown(ctx context.Context) {
	if a.providers.Shutdown == nil {
		return
	}

	err := a.providers.Shutdown(ctx)
	if err != nil {
		a.logger().Warn("observability shutdown failed", "error", err)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "branchstats %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
