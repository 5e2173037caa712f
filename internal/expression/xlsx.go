package expression

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/inodb/vibe-expr/internal/table"
)

// LoadXLSX reads an expression table from a spreadsheet. The first row of
// the sheet is the header. An empty sheet name selects the first sheet.
func LoadXLSX(path, sheet string) (*Dataset, error) {
	t, err := ReadXLSX(path, sheet)
	if err != nil {
		return nil, err
	}
	return FromTable(t)
}

// ReadXLSX reads a sheet into a table.
func ReadXLSX(path, sheet string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx file %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, &table.ParseError{Line: 1, Message: "no header line found"}
	}

	return table.New(path, rows[0], rows[1:]), nil
}
