package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-expr/internal/analysis"
	"github.com/inodb/vibe-expr/internal/output"
)

func newSummaryCmd() *cobra.Command {
	var (
		engine string
		format string
	)

	cmd := &cobra.Command{
		Use:   "summary <expression-table>",
		Short: "Count significant, up- and down-regulated genes",
		Example: `  vibe-expr summary de.csv
  vibe-expr summary --format yaml --fc-threshold 2 de.tsv`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), cmd.OutOrStdout(), args[0], engine, format)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", engineNative, "Load engine: native or duckdb")
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab or yaml")

	return cmd
}

func runSummary(ctx context.Context, w io.Writer, path, engine, format string) error {
	if format != "tab" && format != "yaml" {
		return usageError{fmt.Errorf("unknown format %q (want tab or yaml)", format)}
	}

	ds, err := loadDataset(ctx, path, engine)
	if err != nil {
		return err
	}

	session := analysis.NewSession(ds.Records)
	session.SetLogger(logger)
	if _, err := session.Run(thresholds()); err != nil {
		return err
	}
	stats, err := session.Summary()
	if err != nil {
		return err
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(stats)
	}
	return output.WriteSummary(w, stats)
}
