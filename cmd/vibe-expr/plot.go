package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/output"
	"github.com/inodb/vibe-expr/internal/plot"
	"github.com/inodb/vibe-expr/internal/table"
)

func addSizeFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("width", plot.DefaultWidth, "Figure width in inches")
	cmd.Flags().Float64("height", plot.DefaultHeight, "Figure height in inches")
}

func bindSizeFlags(cmd *cobra.Command) error {
	return bindFlags(cmd, map[string]string{
		keyPlotWidth:  "width",
		keyPlotHeight: "height",
	})
}

func newVolcanoCmd() *cobra.Command {
	var (
		outputFile string
		engine     string
	)

	cmd := &cobra.Command{
		Use:   "volcano <expression-table>",
		Short: "Draw a volcano plot of fold change against significance",
		Long: `Draw log2 fold change against -log10(p-value), highlighting significant
genes, with dashed guide lines at the thresholds. The image format follows the
output extension (.png, .svg, .pdf, .jpg).`,
		Example: `  vibe-expr volcano de.csv -o volcano.png
  vibe-expr volcano --fc-threshold 2 --width 6 --height 5 de.tsv -o volcano.svg`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindSizeFlags(cmd); err != nil {
				return err
			}
			return runVolcano(cmd.Context(), args[0], engine, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "volcano.png", "Output image")
	cmd.Flags().StringVar(&engine, "engine", engineNative, "Load engine: native or duckdb")
	addSizeFlags(cmd)

	return cmd
}

func runVolcano(ctx context.Context, path, engine, outputFile string) error {
	ds, err := loadDataset(ctx, path, engine)
	if err != nil {
		return err
	}

	th := thresholds()
	p, err := plot.Volcano(ds, th)
	if err != nil {
		return err
	}
	if err := plot.Save(p, outputFile, viper.GetFloat64(keyPlotWidth), viper.GetFloat64(keyPlotHeight)); err != nil {
		return err
	}

	pts := plot.Partition(ds, th)
	logger.Info("wrote volcano plot",
		zap.String("output", outputFile),
		zap.Int("significant", len(pts.Significant)),
		zap.Int("not_significant", len(pts.NotSignificant)),
		zap.Int("skipped", pts.Skipped))
	if pts.Skipped > 0 {
		logger.Warn("genes without a plottable p-value were skipped", zap.Int("skipped", pts.Skipped))
	}
	return nil
}

func newBoxplotCmd() *cobra.Command {
	var (
		outputFile string
		column     string
		by         string
		sheet      string
	)

	cmd := &cobra.Command{
		Use:   "boxplot <table>",
		Short: "Draw a box plot of a numeric column grouped by a category",
		Long: `Draw one box per category of --by showing the distribution of --column.
Per-group statistics (n, min, quartiles, max) are written to stdout.`,
		Example: `  vibe-expr boxplot patients.csv --column blood_pressure_systolic --by treatment -o bp.png`,
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if column == "" || by == "" {
				return usageError{fmt.Errorf("--column and --by are required")}
			}
			if err := bindSizeFlags(cmd); err != nil {
				return err
			}
			return runBoxplot(cmd.OutOrStdout(), args[0], sheet, column, by, outputFile)
		},
	}

	cmd.Flags().StringVar(&column, "column", "", "Numeric column to plot")
	cmd.Flags().StringVar(&by, "by", "", "Categorical column to group by")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name for .xlsx input (default: first sheet)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "boxplot.png", "Output image")
	addSizeFlags(cmd)

	return cmd
}

func runBoxplot(w io.Writer, path, sheet, column, by, outputFile string) error {
	t, err := readTable(path, sheet)
	if err != nil {
		return err
	}

	groups, err := plot.GroupBy(t, column, by)
	if err != nil {
		return err
	}
	p, err := plot.Boxplot(groups, column, by)
	if err != nil {
		return err
	}
	if err := plot.Save(p, outputFile, viper.GetFloat64(keyPlotWidth), viper.GetFloat64(keyPlotHeight)); err != nil {
		return err
	}
	logger.Info("wrote box plot", zap.String("output", outputFile), zap.Int("groups", len(groups)))

	stats, err := plot.Describe(groups)
	if err != nil {
		return err
	}
	return output.WriteGroupStats(output.NewTabWriter(w, output.GroupStatsColumns), stats)
}

func readTable(path, sheet string) (*table.Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return expression.ReadXLSX(path, sheet)
	}
	return table.Read(path)
}
