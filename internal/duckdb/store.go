// Package duckdb loads and filters expression tables with an in-memory
// DuckDB database. DuckDB's read_csv handles large, compressed and quoted
// files and evaluates the significance filter in SQL.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/table"
)

const expressionTable = "expression"

// FileFingerprint holds stat-based identity for an imported file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Store manages an in-memory DuckDB connection holding one imported table.
type Store struct {
	db      *sql.DB
	source  FileFingerprint
	columns []string
	logger  *zap.Logger
}

// Open opens an in-memory DuckDB database.
func Open() (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{db: db, logger: zap.NewNop()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetLogger sets the logger for import messages.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Source returns the fingerprint of the imported file.
func (s *Store) Source() FileFingerprint {
	return s.source
}

// Columns returns the header of the imported table.
func (s *Store) Columns() []string {
	return s.columns
}

// Import loads a delimited file into the expression table, replacing any
// previous import. All columns are read as text; the delimiter is detected
// by DuckDB. Returns the number of rows imported.
func (s *Store) Import(ctx context.Context, path string) (int64, error) {
	fp, err := StatFile(path)
	if err != nil {
		return 0, fmt.Errorf("stat expression file: %w", err)
	}

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
		SELECT * FROM read_csv('%s', header=true, all_varchar=true, auto_detect=true)`,
		expressionTable, escapeLiteral(path))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return 0, fmt.Errorf("loading expression table: %w", err)
	}

	cols, err := s.tableColumns(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+expressionTable).Scan(&count); err != nil {
		return 0, fmt.Errorf("count expression rows: %w", err)
	}

	s.source = fp
	s.columns = cols
	s.logger.Info("imported expression table",
		zap.String("path", fp.Path),
		zap.Int64("bytes", fp.Size),
		zap.Int64("rows", count),
		zap.Strings("columns", cols))

	return count, nil
}

func (s *Store) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`,
		expressionTable)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

// Dataset reads the imported table back as an expression dataset using the
// same column mapping as expression.FromTable.
func (s *Store) Dataset(ctx context.Context) (*expression.Dataset, error) {
	if s.columns == nil {
		return nil, fmt.Errorf("no expression table imported")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+expressionTable+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query expression table: %w", err)
	}
	defer rows.Close()

	var data [][]string
	cells := make([]sql.NullString, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan expression row: %w", err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = c.String // NULL becomes "", read as missing
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expression rows: %w", err)
	}

	return expression.FromTable(table.New(s.source.Path, s.columns, data))
}

// Filter evaluates the significance filter in SQL over the imported table.
// It matches loading with expression.FromTable then expression.Filter:
// strict comparisons, input order, a table.ParseError for the first cell
// that is neither a number nor a missing marker (booleans for significant),
// and otherwise a MissingFieldError for the first row lacking a p-value or
// fold change.
func (s *Store) Filter(ctx context.Context, th expression.Thresholds) ([]expression.GeneRecord, error) {
	if s.columns == nil {
		return nil, fmt.Errorf("no expression table imported")
	}
	for _, col := range []string{expression.ColPValue, expression.ColFoldChange} {
		if !s.hasColumn(col) {
			return nil, &expression.MissingFieldError{Field: col}
		}
	}

	if err := s.checkCells(ctx); err != nil {
		return nil, err
	}

	pv := numeric(expression.ColPValue)
	fc := numeric(expression.ColFoldChange)

	var row int64
	var field string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT rowid + 1,
			CASE WHEN %[1]s IS NULL OR isnan(%[1]s) THEN '%[3]s' ELSE '%[4]s' END
		FROM %[5]s
		WHERE %[1]s IS NULL OR isnan(%[1]s) OR %[2]s IS NULL OR isnan(%[2]s)
		ORDER BY rowid LIMIT 1`,
		pv, fc, expression.ColPValue, expression.ColFoldChange, expressionTable)).Scan(&row, &field)
	switch {
	case err == nil:
		return nil, &expression.MissingFieldError{Field: field, Row: int(row)}
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("check missing values: %w", err)
	}

	geneExpr := "''"
	if col, ok := s.firstColumn(expression.GeneIDColumns...); ok {
		geneExpr = fmt.Sprintf("COALESCE(%s, '')", quoteIdent(col))
	}
	sigExpr := "false"
	if s.hasColumn(expression.ColSignificant) {
		sigExpr = fmt.Sprintf("COALESCE(lower(trim(%s)) IN (%s), false)",
			quoteIdent(expression.ColSignificant), sqlList(trueValues))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s < ? AND abs(%s) > ?
		ORDER BY rowid`,
		geneExpr, pv, fc, sigExpr, expressionTable, pv, fc), th.PValue, th.FoldChange)
	if err != nil {
		return nil, fmt.Errorf("query significant genes: %w", err)
	}
	defer rows.Close()

	significant := make([]expression.GeneRecord, 0)
	for rows.Next() {
		var r expression.GeneRecord
		if err := rows.Scan(&r.GeneID, &r.PValue, &r.FoldChange, &r.Significant); err != nil {
			return nil, fmt.Errorf("scan significant gene: %w", err)
		}
		significant = append(significant, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate significant genes: %w", err)
	}

	s.logger.Debug("filtered in duckdb",
		zap.Int("significant", len(significant)),
		zap.Float64("p_threshold", th.PValue),
		zap.Float64("fc_threshold", th.FoldChange))

	return significant, nil
}

// LoadExpression imports path into a temporary in-memory database and
// returns it as a dataset.
func LoadExpression(ctx context.Context, path string) (*expression.Dataset, error) {
	s, err := Open()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if _, err := s.Import(ctx, path); err != nil {
		return nil, err
	}
	return s.Dataset(ctx)
}

// Cell spellings accepted by table.IsMissing and table.ParseBool.
var (
	missingValues = []string{"", "na", "nan", "null", "none"}
	trueValues    = []string{"true", "t", "yes", "y", "1"}
	falseValues   = []string{"false", "f", "no", "n", "0", ""}
)

// checkCells reports the first malformed numeric or boolean cell, checking
// columns in the order expression.FromTable parses them.
func (s *Store) checkCells(ctx context.Context) error {
	for _, col := range []string{expression.ColPValue, expression.ColFoldChange} {
		cond := fmt.Sprintf("lower(trim(%[1]s)) NOT IN (%[2]s) AND %[3]s IS NULL",
			quoteIdent(col), sqlList(missingValues), numeric(col))
		line, raw, err := s.firstInvalid(ctx, col, cond)
		if err != nil {
			return err
		}
		if line > 0 {
			return &table.ParseError{
				Line:    line,
				Message: fmt.Sprintf("invalid number in column %q: %q", col, raw),
			}
		}
	}

	if !s.hasColumn(expression.ColSignificant) {
		return nil
	}
	col := expression.ColSignificant
	cond := fmt.Sprintf("lower(trim(%s)) NOT IN (%s)",
		quoteIdent(col), sqlList(append(append([]string{}, trueValues...), falseValues...)))
	line, raw, err := s.firstInvalid(ctx, col, cond)
	if err != nil {
		return err
	}
	if line > 0 {
		_, perr := table.ParseBool(raw)
		return &table.ParseError{
			Line:    line,
			Message: fmt.Sprintf("column %q: %v", col, perr),
		}
	}
	return nil
}

// firstInvalid returns the file line (header is line 1) and raw text of the
// first non-NULL cell in col matching cond, or line 0 if there is none.
func (s *Store) firstInvalid(ctx context.Context, col, cond string) (int, string, error) {
	var (
		line int64
		raw  string
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT rowid + 2, %[1]s
		FROM %[2]s
		WHERE %[1]s IS NOT NULL AND %[3]s
		ORDER BY rowid LIMIT 1`,
		quoteIdent(col), expressionTable, cond)).Scan(&line, &raw)
	switch {
	case err == sql.ErrNoRows:
		return 0, "", nil
	case err != nil:
		return 0, "", fmt.Errorf("check column %s: %w", col, err)
	}
	return int(line), raw, nil
}

func sqlList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escapeLiteral(v) + "'"
	}
	return strings.Join(quoted, ", ")
}

func (s *Store) hasColumn(col string) bool {
	for _, c := range s.columns {
		if c == col {
			return true
		}
	}
	return false
}

func (s *Store) firstColumn(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if s.hasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// numeric casts a text column to DOUBLE; NA and other non-numbers become NULL.
func numeric(col string) string {
	return fmt.Sprintf("TRY_CAST(trim(%s) AS DOUBLE)", quoteIdent(col))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
