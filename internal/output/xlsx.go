package output

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter writes rows to a spreadsheet. The file is saved on Flush.
// Cells that parse as numbers are stored as numbers.
type XLSXWriter struct {
	path    string
	sheet   string
	columns []string
	rows    [][]string
}

// NewXLSXWriter creates a spreadsheet writer. An empty sheet name uses "Sheet1".
func NewXLSXWriter(path, sheet string, columns []string) *XLSXWriter {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &XLSXWriter{path: path, sheet: sheet, columns: columns}
}

// WriteHeader queues the header row.
func (xw *XLSXWriter) WriteHeader() error {
	xw.rows = append(xw.rows, xw.columns)
	return nil
}

// WriteRow queues a data row.
func (xw *XLSXWriter) WriteRow(values []string) error {
	if len(values) != len(xw.columns) {
		return fmt.Errorf("row has %d values, expected %d", len(values), len(xw.columns))
	}
	xw.rows = append(xw.rows, values)
	return nil
}

// Flush writes all queued rows to the spreadsheet file.
func (xw *XLSXWriter) Flush() error {
	f := excelize.NewFile()
	defer f.Close()

	if xw.sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", xw.sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	for r, row := range xw.rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			var value any = v
			if r > 0 {
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					value = num
				}
			}
			if err := f.SetCellValue(xw.sheet, cell, value); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
