package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-expr/internal/duckdb"
	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/output"
)

// Load engines
const (
	engineNative = "native"
	engineDuckDB = "duckdb"
)

func newFilterCmd() *cobra.Command {
	var (
		outputFile string
		engine     string
	)

	cmd := &cobra.Command{
		Use:   "filter <expression-table>",
		Short: "Write genes that pass the significance thresholds",
		Long: `Filter a differential expression table (CSV, TSV, gzipped text or XLSX)
and write genes with p_value below --p-threshold and |fold_change| above
--fc-threshold. Output is tab-delimited, or a spreadsheet when -o ends in .xlsx.`,
		Example: `  vibe-expr filter de.csv
  vibe-expr filter --p-threshold 0.01 --fc-threshold 2 de.tsv.gz -o sig.tsv
  vibe-expr filter --engine duckdb big.csv -o sig.xlsx`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd.Context(), args[0], engine, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&engine, "engine", engineNative, "Load engine: native or duckdb")

	return cmd
}

func runFilter(ctx context.Context, path, engine, outputFile string) error {
	th := thresholds()

	var (
		significant []expression.GeneRecord
		err         error
	)
	switch engine {
	case engineNative:
		var ds *expression.Dataset
		ds, err = expression.Load(path)
		if err != nil {
			return err
		}
		significant, err = expression.Filter(ds.Records, th)
	case engineDuckDB:
		significant, err = filterDuckDB(ctx, path, th)
	default:
		return usageError{fmt.Errorf("unknown engine %q (want %s or %s)", engine, engineNative, engineDuckDB)}
	}
	if err != nil {
		return err
	}

	logger.Info("filtered genes",
		zap.String("input", path),
		zap.String("engine", engine),
		zap.Int("significant", len(significant)))

	w, closeFn, err := output.Create(outputFile, output.GeneColumns)
	if err != nil {
		return err
	}
	if err := output.WriteGenes(w, significant); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func filterDuckDB(ctx context.Context, path string, th expression.Thresholds) ([]expression.GeneRecord, error) {
	store, err := duckdb.Open()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	store.SetLogger(logger)

	if _, err := store.Import(ctx, path); err != nil {
		return nil, err
	}
	return store.Filter(ctx, th)
}

// loadDataset reads an expression table with the given engine.
func loadDataset(ctx context.Context, path, engine string) (*expression.Dataset, error) {
	switch engine {
	case engineNative:
		return expression.Load(path)
	case engineDuckDB:
		return duckdb.LoadExpression(ctx, path)
	default:
		return nil, usageError{fmt.Errorf("unknown engine %q (want %s or %s)", engine, engineNative, engineDuckDB)}
	}
}
