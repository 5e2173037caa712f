// Package output provides table and summary formatters for analysis results.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-expr/internal/analysis"
	"github.com/inodb/vibe-expr/internal/enrich"
	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/plot"
)

// RowWriter writes a header followed by rows of string values.
type RowWriter interface {
	WriteHeader() error
	WriteRow(values []string) error
	Flush() error
}

// Column sets for each result table.
var (
	GeneColumns       = []string{"gene_id", "p_value", "fold_change", "significant"}
	EnrichmentColumns = []string{"pathway", "overlap", "pathway_size", "sample_size", "p_value", "adjusted_p_value", "overlap_genes"}
	GroupStatsColumns = []string{"group", "n", "min", "q1", "median", "q3", "max"}
)

// TabWriter writes rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer, columns []string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// WriteRow writes a single row. Empty values are written as "-".
func (tw *TabWriter) WriteRow(values []string) error {
	if len(values) != len(tw.columns) {
		return fmt.Errorf("row has %d values, expected %d", len(values), len(tw.columns))
	}
	out := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = "-"
		}
		out[i] = v
	}
	_, err := tw.w.WriteString(strings.Join(out, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// Create opens a RowWriter for path: "" or "-" is stdout, .xlsx is a
// spreadsheet, anything else a tab-delimited file. The returned close
// function must be called after Flush.
func Create(path string, columns []string) (RowWriter, func() error, error) {
	switch {
	case path == "" || path == "-":
		return NewTabWriter(os.Stdout, columns), func() error { return nil }, nil
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		return NewXLSXWriter(path, "", columns), func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return NewTabWriter(f, columns), f.Close, nil
}

// GeneRow formats a gene record for GeneColumns.
func GeneRow(r expression.GeneRecord) []string {
	return []string{
		r.GeneID,
		formatFloat(r.PValue),
		formatFloat(r.FoldChange),
		strconv.FormatBool(r.Significant),
	}
}

// EnrichmentRow formats an enrichment result for EnrichmentColumns.
func EnrichmentRow(r enrich.Result) []string {
	return []string{
		r.Pathway,
		strconv.Itoa(r.Overlap),
		strconv.Itoa(r.PathwaySize),
		strconv.Itoa(r.SampleSize),
		formatFloat(r.PValue),
		formatFloat(r.AdjustedPValue),
		strings.Join(r.OverlapGenes, ","),
	}
}

// GroupStatsRow formats group statistics for GroupStatsColumns.
func GroupStatsRow(gs plot.GroupStats) []string {
	return []string{
		gs.Group,
		strconv.Itoa(gs.N),
		formatFloat(gs.Min),
		formatFloat(gs.Q1),
		formatFloat(gs.Median),
		formatFloat(gs.Q3),
		formatFloat(gs.Max),
	}
}

// WriteGenes writes a header and one row per gene, then flushes.
func WriteGenes(w RowWriter, records []expression.GeneRecord) error {
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := w.WriteRow(GeneRow(r)); err != nil {
			return fmt.Errorf("write gene %s: %w", r.GeneID, err)
		}
	}
	return w.Flush()
}

// WriteEnrichment writes a header and one row per pathway result, then flushes.
func WriteEnrichment(w RowWriter, results []enrich.Result) error {
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := w.WriteRow(EnrichmentRow(r)); err != nil {
			return fmt.Errorf("write pathway %s: %w", r.Pathway, err)
		}
	}
	return w.Flush()
}

// WriteGroupStats writes a header and one row per group, then flushes.
func WriteGroupStats(w RowWriter, stats []plot.GroupStats) error {
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, gs := range stats {
		if err := w.WriteRow(GroupStatsRow(gs)); err != nil {
			return fmt.Errorf("write group %s: %w", gs.Group, err)
		}
	}
	return w.Flush()
}

// WriteSummary writes summary counts as key/value lines.
func WriteSummary(w io.Writer, s analysis.SummaryStats) error {
	_, err := fmt.Fprintf(w, "total_genes\t%d\nsignificant_genes\t%d\nupregulated\t%d\ndownregulated\t%d\n",
		s.TotalGenes, s.SignificantGenes, s.Upregulated, s.Downregulated)
	return err
}

// formatFloat formats a float with up to 6 significant digits.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
