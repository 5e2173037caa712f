// Package main provides the vibe-expr command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-expr/internal/expression"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config keys
const (
	keyPThreshold  = "thresholds.p_value"
	keyFCThreshold = "thresholds.fold_change"
	keyTotalGenes  = "enrichment.total_genes"
	keyPlotWidth   = "plot.width"
	keyPlotHeight  = "plot.height"
	keyLogLevel    = "log.level"
)

const configFileName = ".vibe-expr.yaml"

// logger is configured by the root command before any subcommand runs.
var logger = zap.NewNop()

// usageError marks errors caused by invalid command-line usage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", root.Name())
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "vibe-expr",
		Short: "Differential expression filtering, pathway enrichment and plots",
		Long: `vibe-expr analyzes differential gene expression tables: it filters genes by
p-value and log2 fold change, summarizes up/down regulation, tests gene lists
for pathway over-representation, and draws volcano and box plots.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile, cmd.Annotations[annotationWritesConfig] == "true"); err != nil {
				return err
			}
			if err := bindFlags(cmd, map[string]string{
				keyPThreshold:  "p-threshold",
				keyFCThreshold: "fc-threshold",
			}); err != nil {
				return err
			}
			l, err := newLogger(viper.GetString(keyLogLevel), verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/"+configFileName+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	pf.Float64("p-threshold", expression.DefaultPThreshold, "Significance cutoff: keep genes with p_value below this")
	pf.Float64("fc-threshold", expression.DefaultFCThreshold, "Effect size cutoff: keep genes with |fold_change| above this")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.AddCommand(newFilterCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newVolcanoCmd())
	cmd.AddCommand(newBoxplotCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads .env, environment variables and the YAML config file.
// With allowMissing, an explicit cfgFile that does not exist yet is not an error.
func initConfig(cfgFile string, allowMissing bool) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	viper.SetDefault(keyPThreshold, expression.DefaultPThreshold)
	viper.SetDefault(keyFCThreshold, expression.DefaultFCThreshold)
	viper.SetDefault(keyTotalGenes, 0)
	viper.SetDefault(keyPlotWidth, 10.0)
	viper.SetDefault(keyPlotHeight, 8.0)
	viper.SetDefault(keyLogLevel, "warn")

	viper.SetEnvPrefix("VIBE_EXPR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if _, err := os.Stat(cfgFile); allowMissing && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.SetConfigFile(filepath.Join(home, configFileName))
		if _, err := os.Stat(viper.ConfigFileUsed()); err != nil {
			return nil
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// bindFlags binds config keys to flags of cmd. Flags set on the command
// line take precedence over config and environment values.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// newLogger builds a console logger on stderr so stdout stays a clean table.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose && lvl > zapcore.InfoLevel {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// thresholds returns the significance thresholds from flags and config.
func thresholds() expression.Thresholds {
	return expression.Thresholds{
		PValue:     viper.GetFloat64(keyPThreshold),
		FoldChange: viper.GetFloat64(keyFCThreshold),
	}
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
