// Package expression provides differential expression records, significance
// filtering and expression table loading.
package expression

import (
	"fmt"
	"math"
)

// Standard expression table column names
const (
	ColGeneID      = "gene_id"
	ColPValue      = "p_value"
	ColFoldChange  = "fold_change"
	ColSignificant = "significant"
)

// GeneIDColumns lists accepted gene identifier column names in priority order.
var GeneIDColumns = []string{ColGeneID, "gene", "gene_name", "gene_symbol", "Hugo_Symbol"}

// Default thresholds
const (
	DefaultPThreshold  = 0.05
	DefaultFCThreshold = 1.5
)

// GeneRecord is one row of a differential expression result table.
type GeneRecord struct {
	GeneID      string
	PValue      float64 // NaN when missing
	FoldChange  float64 // log2 scale, NaN when missing
	Significant bool    // value of the input "significant" column, if any
}

// Dataset is a loaded expression table.
type Dataset struct {
	Records            []GeneRecord
	HasSignificantFlag bool
	Source             string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// GeneIDs returns the gene identifiers of all records.
func GeneIDs(records []GeneRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.GeneID != "" {
			ids = append(ids, r.GeneID)
		}
	}
	return ids
}

// Thresholds holds the significance cutoffs for one analysis call.
type Thresholds struct {
	PValue     float64
	FoldChange float64
}

// DefaultThresholds returns p < 0.05 and |log2FC| > 1.5.
func DefaultThresholds() Thresholds {
	return Thresholds{PValue: DefaultPThreshold, FoldChange: DefaultFCThreshold}
}

// Passes reports whether r is significant under th. Both comparisons are strict.
func (th Thresholds) Passes(r GeneRecord) bool {
	return r.PValue < th.PValue && math.Abs(r.FoldChange) > th.FoldChange
}

// Filter returns the records passing th, in input order.
// A record with a missing p-value or fold change fails the whole call.
func Filter(records []GeneRecord, th Thresholds) ([]GeneRecord, error) {
	significant := make([]GeneRecord, 0)
	for i, r := range records {
		if math.IsNaN(r.PValue) {
			return nil, &MissingFieldError{Field: ColPValue, Row: i + 1, GeneID: r.GeneID}
		}
		if math.IsNaN(r.FoldChange) {
			return nil, &MissingFieldError{Field: ColFoldChange, Row: i + 1, GeneID: r.GeneID}
		}
		if th.Passes(r) {
			significant = append(significant, r)
		}
	}
	return significant, nil
}

// MissingFieldError reports a required field absent from the input.
// Row is 1-based; 0 means the column is missing from the header.
type MissingFieldError struct {
	Field  string
	Row    int
	GeneID string
}

func (e *MissingFieldError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("missing required column %q", e.Field)
	}
	if e.GeneID != "" {
		return fmt.Sprintf("record %d (%s): missing value for %q", e.Row, e.GeneID, e.Field)
	}
	return fmt.Sprintf("record %d: missing value for %q", e.Row, e.Field)
}
