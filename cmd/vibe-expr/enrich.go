package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-expr/internal/enrich"
	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/output"
)

func newEnrichCmd() *cobra.Command {
	var (
		pathwaysFile string
		outputFile   string
		fromTable    bool
		engine       string
		unsorted     bool
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "enrich <genes>",
		Short: "Test a gene list for pathway over-representation",
		Long: `Run a hypergeometric over-representation test of a gene list against each
pathway in a GMT or YAML pathway database. The input is a gene list with one
identifier per line ("-" for stdin), or with --from-table an expression table
whose significant genes form the list.

The background population size comes from --total-genes, the
enrichment.total_genes config key, the YAML database, or the number of
distinct genes across all pathways, in that order.`,
		Example: `  vibe-expr enrich --pathways kegg.gmt --total-genes 20000 genes.txt
  vibe-expr enrich --pathways pathways.yaml --from-table de.csv -o enrich.xlsx`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathwaysFile == "" {
				return usageError{fmt.Errorf("--pathways is required")}
			}
			if err := bindFlags(cmd, map[string]string{keyTotalGenes: "total-genes"}); err != nil {
				return err
			}
			return runEnrich(cmd.Context(), enrichOptions{
				input:      args[0],
				pathways:   pathwaysFile,
				totalGenes: viper.GetInt(keyTotalGenes),
				fromTable:  fromTable,
				engine:     engine,
				sorted:     !unsorted,
				output:     outputFile,
				workers:    workers,
			})
		},
	}

	cmd.Flags().StringVar(&pathwaysFile, "pathways", "", "Pathway database (.gmt, .yaml)")
	cmd.Flags().Int("total-genes", 0, "Background population size (0: derive)")
	cmd.Flags().BoolVar(&fromTable, "from-table", false, "Input is an expression table; use its significant genes")
	cmd.Flags().StringVar(&engine, "engine", engineNative, "Load engine for --from-table: native or duckdb")
	cmd.Flags().BoolVar(&unsorted, "unsorted", false, "Keep pathway database order instead of sorting by p-value")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Parallel workers for large pathway databases (0 = all CPUs)")

	return cmd
}

type enrichOptions struct {
	input      string
	pathways   string
	totalGenes int
	fromTable  bool
	engine     string
	sorted     bool
	output     string
	workers    int
}

func runEnrich(ctx context.Context, opts enrichOptions) error {
	genes, err := enrichInput(ctx, opts)
	if err != nil {
		return err
	}

	db, err := enrich.Load(opts.pathways, opts.totalGenes)
	if err != nil {
		return err
	}
	logger.Info("loaded pathways",
		zap.String("path", opts.pathways),
		zap.Int("pathways", len(db.Pathways)),
		zap.Int("total_genes", db.TotalGenes))

	var results []enrich.Result
	if opts.workers == 1 {
		results, err = enrich.Enrich(genes, db)
	} else {
		results, err = enrich.EnrichParallel(genes, db, opts.workers)
	}
	if err != nil {
		return err
	}
	if opts.sorted {
		enrich.SortByPValue(results)
	}
	logger.Info("enrichment complete",
		zap.Int("genes", len(genes)),
		zap.Int("pathways_hit", len(results)))

	w, closeFn, err := output.Create(opts.output, output.EnrichmentColumns)
	if err != nil {
		return err
	}
	if err := output.WriteEnrichment(w, results); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func enrichInput(ctx context.Context, opts enrichOptions) ([]string, error) {
	if !opts.fromTable {
		return enrich.ReadGeneList(opts.input)
	}

	ds, err := loadDataset(ctx, opts.input, opts.engine)
	if err != nil {
		return nil, err
	}
	significant, err := expression.Filter(ds.Records, thresholds())
	if err != nil {
		return nil, err
	}
	genes := expression.GeneIDs(significant)
	if len(significant) > 0 && len(genes) == 0 {
		return nil, &expression.MissingFieldError{Field: expression.ColGeneID}
	}
	return genes, nil
}
