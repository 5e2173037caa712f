// Package table provides reading of delimited text tables (CSV/TSV) with a
// named header row.
package table

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is an in-memory delimited table. Every row has len(Header) fields.
type Table struct {
	Header []string
	Rows   [][]string
	Source string

	index map[string]int
}

// Read reads a delimited table from path. Use "-" for stdin.
// Gzipped input is detected from the magic bytes. The delimiter is chosen
// from the file extension (.csv is comma, .tsv/.tab/.txt is tab) and falls
// back to sniffing the header line.
func Read(path string) (*Table, error) {
	if path == "-" {
		return ReadFrom(os.Stdin, "-", 0)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	var r io.Reader = br

	// Check for gzip magic number (0x1f, 0x8b)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return ReadFrom(r, path, delimiterForPath(path))
}

// ReadFrom reads a table from r. A zero delimiter means auto-detect.
func ReadFrom(r io.Reader, source string, delim rune) (*Table, error) {
	br := bufio.NewReader(r)

	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &ParseError{Line: 1, Message: "no header line found"}
		}
		return nil, convertCSVError(err)
	}

	t := &Table{Source: source}
	t.setHeader(header)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, convertCSVError(err)
		}
		t.Rows = append(t.Rows, rec)
	}

	return t, nil
}

// New builds a table from a header and rows, e.g. rows read from a spreadsheet.
// Short rows are padded with empty fields.
func New(source string, header []string, rows [][]string) *Table {
	t := &Table{Source: source}
	t.setHeader(header)
	for _, row := range rows {
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			row = padded
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) setHeader(header []string) {
	t.Header = make([]string, len(header))
	t.index = make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		t.Header[i] = col
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the index of the named column, or -1 if it is absent.
func (t *Table) Index(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	return t.Index(col) >= 0
}

// FirstColumn returns the first of the candidate column names present in the header.
func (t *Table) FirstColumn(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// Strings returns the values of the named column.
func (t *Table) Strings(col string) ([]string, error) {
	idx := t.Index(col)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", col)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = strings.TrimSpace(row[idx])
	}
	return out, nil
}

// Floats returns the values of the named column parsed as float64.
// Empty and NA cells become NaN.
func (t *Table) Floats(col string) ([]float64, error) {
	idx := t.Index(col)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", col)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		v, err := ParseFloat(row[idx])
		if err != nil {
			return nil, &ParseError{
				Line:    i + 2,
				Message: fmt.Sprintf("invalid number in column %q: %q", col, row[idx]),
			}
		}
		out[i] = v
	}
	return out, nil
}

// ParseFloat parses a numeric cell. Empty, NA, NaN and null cells become NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// IsMissing reports whether a cell holds a missing-value marker.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// ParseBool parses a boolean cell as written by pandas, R or spreadsheets.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func delimiterForPath(path string) rune {
	lower := strings.ToLower(path)
	lower = strings.TrimSuffix(lower, ".gz")
	switch filepath.Ext(lower) {
	case ".csv":
		return ','
	case ".tsv", ".tab", ".txt":
		return '\t'
	}
	return 0
}

// sniffDelimiter picks tab if the first non-comment line contains one.
func sniffDelimiter(br *bufio.Reader) rune {
	for n := 512; ; n *= 2 {
		buf, err := br.Peek(n)
		for _, line := range strings.Split(string(buf), "\n") {
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.Contains(line, "\t") {
				return '\t'
			}
			if strings.Contains(line, ",") {
				return ','
			}
		}
		if err != nil || n >= br.Size() {
			return ','
		}
	}
}

func convertCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Message: pe.Err.Error()}
	}
	return fmt.Errorf("read table: %w", err)
}

// ParseError represents an error during table parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table parse error at line %d: %s", e.Line, e.Message)
}
