package expression

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-expr/internal/table"
)

// Load reads an expression table from path. Spreadsheets (.xlsx) are read
// with LoadXLSX; anything else is read as delimited text.
func Load(path string) (*Dataset, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, "")
	}

	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	return FromTable(t)
}

// FromTable maps a table's columns to gene records.
// The p_value and fold_change columns are required; gene id and
// significant columns are optional.
func FromTable(t *table.Table) (*Dataset, error) {
	for _, col := range []string{ColPValue, ColFoldChange} {
		if !t.HasColumn(col) {
			return nil, &MissingFieldError{Field: col}
		}
	}

	pvals, err := t.Floats(ColPValue)
	if err != nil {
		return nil, err
	}
	fcs, err := t.Floats(ColFoldChange)
	if err != nil {
		return nil, err
	}

	var ids []string
	if col, ok := t.FirstColumn(GeneIDColumns...); ok {
		if ids, err = t.Strings(col); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		Records:            make([]GeneRecord, t.Len()),
		HasSignificantFlag: t.HasColumn(ColSignificant),
		Source:             t.Source,
	}

	var flags []string
	if ds.HasSignificantFlag {
		if flags, err = t.Strings(ColSignificant); err != nil {
			return nil, err
		}
	}

	for i := range ds.Records {
		r := GeneRecord{PValue: pvals[i], FoldChange: fcs[i]}
		if ids != nil {
			r.GeneID = ids[i]
		}
		if flags != nil {
			sig, err := table.ParseBool(flags[i])
			if err != nil {
				return nil, &table.ParseError{
					Line:    i + 2,
					Message: fmt.Sprintf("column %q: %v", ColSignificant, err),
				}
			}
			r.Significant = sig
		}
		ds.Records[i] = r
	}

	return ds, nil
}
