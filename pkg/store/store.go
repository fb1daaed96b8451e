// Package store persists row batches into a relational database addressed
// through database/sql. It is the ingestion sink for raw files and for the
// vendor summary.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/table"
)

// Supported driver names.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
	DriverDuckDB  = "duckdb"  // github.com/duckdb/duckdb-go/v2
)

var (
	// ErrSchemaMismatch is returned when an append batch's columns differ
	// from the persisted table's columns.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMalformedBatch is returned for batches that cannot be written.
	ErrMalformedBatch = errors.New("malformed batch")
)

// Sink accepts row batches for a named table.
type Sink interface {
	Write(ctx context.Context, tableName string, batch table.Batch, mode table.Mode) (int, error)
}

// Config holds configuration for the store.
type Config struct {
	// Driver is one of DriverSQLite3, DriverSQLite or DriverDuckDB.
	Driver string `yaml:"driver"`
	// Path is the database file. An empty path opens an in-memory database.
	Path string `yaml:"path"`
	// Synchronous sets the SQLite synchronous pragma (OFF, NORMAL, FULL).
	// Ignored for DuckDB.
	Synchronous string `yaml:"synchronous"`
	// BusyTimeoutMS is the SQLite busy timeout. Ignored for DuckDB.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// DefaultConfig returns the default SQLite configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Driver:        DriverSQLite3,
		Path:          path,
		Synchronous:   "NORMAL",
		BusyTimeoutMS: 5000,
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite3, DriverSQLite, DriverDuckDB:
	default:
		return fmt.Errorf("invalid driver %q: must be %s, %s or %s", c.Driver, DriverSQLite3, DriverSQLite, DriverDuckDB)
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("BusyTimeoutMS must be non-negative, got %d", c.BusyTimeoutMS)
	}
	return nil
}

func (c *Config) isSQLite() bool {
	return c.Driver == DriverSQLite3 || c.Driver == DriverSQLite
}

func (c *Config) dsn() string {
	switch c.Driver {
	case DriverSQLite3:
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		return fmt.Sprintf("file:%s?_busy_timeout=%d", path, c.BusyTimeoutMS)
	case DriverSQLite:
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, c.BusyTimeoutMS)
	default:
		return c.Path
	}
}

// Store is a database/sql backed Sink.
type Store struct {
	db  *sql.DB
	cfg Config
}

var _ Sink = (*Store)(nil)

// Open opens or creates the database described by cfg. The parent
// directory of a file-backed database is created when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	// Single connection: writes are serialized and in-memory databases
	// stay visible across statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}

	if cfg.isSQLite() && cfg.Path != "" {
		pragmas := []string{"PRAGMA journal_mode=WAL"}
		if cfg.Synchronous != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA synchronous=%s", cfg.Synchronous))
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("execute pragma %q: %w", pragma, err)
			}
		}
	}

	log := logctx.FromContext(ctx)
	log.Debug().
		Str("driver", cfg.Driver).
		Str("db_path", cfg.Path).
		Msg("opened store")

	return &Store{db: db, cfg: cfg}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the configured driver name.
func (s *Store) Driver() string { return s.cfg.Driver }

// QueryContext runs a read query against the store.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Write persists batch into tableName. Replace drops and recreates the
// table from the batch's columns; Append requires the existing table to
// have the same column names in the same order and creates it when absent.
// On DuckDB an Append widens columns whose type cannot hold the batch's
// values; SQLite stores each value with its own storage class.
// The whole batch is written in one transaction. It returns the number of
// rows written.
func (s *Store) Write(ctx context.Context, tableName string, batch table.Batch, mode table.Mode) (int, error) {
	if strings.TrimSpace(tableName) == "" {
		return 0, fmt.Errorf("%w: empty table name", ErrMalformedBatch)
	}
	if err := batch.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	switch mode {
	case table.Replace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(tableName)); err != nil {
			return 0, fmt.Errorf("drop table %s: %w", tableName, err)
		}
		if err := s.createTable(ctx, tx, tableName, batch.Columns); err != nil {
			return 0, err
		}
	case table.Append:
		exists, err := s.tableExists(ctx, tx, tableName)
		if err != nil {
			return 0, err
		}
		if !exists {
			if err := s.createTable(ctx, tx, tableName, batch.Columns); err != nil {
				return 0, err
			}
			break
		}
		existing, err := columns(ctx, tx, tableName)
		if err != nil {
			return 0, err
		}
		if !sameNames(existing, batch.Columns) {
			return 0, fmt.Errorf("%w: table %s has columns %v, batch has %v",
				ErrSchemaMismatch, tableName, names(existing), batch.ColumnNames())
		}
		if s.cfg.Driver == DriverDuckDB {
			if batch, err = s.conform(ctx, tx, tableName, existing, batch); err != nil {
				return 0, err
			}
		}
	default:
		return 0, fmt.Errorf("%w: unknown write mode %d", ErrMalformedBatch, mode)
	}

	if err := insertRows(ctx, tx, tableName, batch); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", tableName, err)
	}
	return batch.Len(), nil
}

// TableExists reports whether tableName exists.
func (s *Store) TableExists(ctx context.Context, tableName string) (bool, error) {
	return s.tableExists(ctx, s.db, tableName)
}

// Columns returns the persisted columns of tableName.
func (s *Store) Columns(ctx context.Context, tableName string) ([]table.Column, error) {
	return columns(ctx, s.db, tableName)
}

// RowCount returns the number of rows in tableName.
func (s *Store) RowCount(ctx context.Context, tableName string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(tableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", tableName, err)
	}
	return n, nil
}

// ReadTable returns every row of tableName in storage order.
func (s *Store) ReadTable(ctx context.Context, tableName string) (table.Batch, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(tableName))
	if err != nil {
		return table.Batch{}, fmt.Errorf("read table %s: %w", tableName, err)
	}
	defer rows.Close()

	batch, err := ScanBatch(rows)
	if err != nil {
		return table.Batch{}, fmt.Errorf("read table %s: %w", tableName, err)
	}
	return batch, nil
}

// ScanBatch drains rows into a batch, typing columns from their declared
// database types.
func ScanBatch(rows *sql.Rows) (table.Batch, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return table.Batch{}, fmt.Errorf("column types: %w", err)
	}
	cols := make([]table.Column, len(types))
	for i, ct := range types {
		cols[i] = table.Column{Name: ct.Name(), Type: table.ParseType(ct.DatabaseTypeName())}
	}

	batch := table.Batch{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return table.Batch{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = table.Normalize(v)
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return table.Batch{}, fmt.Errorf("iterate rows: %w", err)
	}
	return batch, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) tableExists(ctx context.Context, q queryer, tableName string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if s.cfg.Driver == DriverDuckDB {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?"
	}
	var n int
	if err := q.QueryRowContext(ctx, query, tableName).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s exists: %w", tableName, err)
	}
	return n > 0, nil
}

func columns(ctx context.Context, q queryer, tableName string) ([]table.Column, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+quoteIdent(tableName)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", tableName, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", tableName, err)
	}
	cols := make([]table.Column, len(types))
	for i, ct := range types {
		cols[i] = table.Column{Name: ct.Name(), Type: table.ParseType(ct.DatabaseTypeName())}
	}
	return cols, rows.Err()
}

// conform widens the persisted columns that cannot hold the batch's values
// (INTEGER to DOUBLE, anything to VARCHAR) and converts the batch's cells
// to the resulting column types.
func (s *Store) conform(ctx context.Context, tx *sql.Tx, tableName string, existing []table.Column, batch table.Batch) (table.Batch, error) {
	cols := make([]table.Column, len(existing))
	for j, col := range existing {
		cols[j] = col
		incoming, ok := table.ColumnValuesType(batch.Rows, j)
		if !ok {
			continue
		}
		target := table.Widen(col.Type, incoming)
		if target == col.Type {
			continue
		}

		alter := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
			quoteIdent(tableName), quoteIdent(col.Name), s.sqlType(target))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return table.Batch{}, fmt.Errorf("widen %s.%s to %s: %w", tableName, col.Name, s.sqlType(target), err)
		}
		log := logctx.FromContext(ctx)
		log.Debug().
			Str("table", tableName).
			Str("column", col.Name).
			Str("from", s.sqlType(col.Type)).
			Str("to", s.sqlType(target)).
			Msg("widened column")
		cols[j].Type = target
	}

	rows := make([][]any, len(batch.Rows))
	for i, row := range batch.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = table.Coerce(v, cols[j].Type)
		}
		rows[i] = out
	}
	return table.Batch{Columns: cols, Rows: rows}, nil
}

func (s *Store) createTable(ctx context.Context, tx *sql.Tx, tableName string, cols []table.Column) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(s.sqlType(c.Type))
	}
	b.WriteString(")")

	if _, err := tx.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}
	return nil
}

// sqlType returns the column type used in CREATE TABLE. DuckDB's INTEGER
// and REAL are 32-bit, so its 64-bit names are used instead.
func (s *Store) sqlType(t table.Type) string {
	if s.cfg.Driver != DriverDuckDB {
		return t.String()
	}
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Real:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

func insertRows(ctx context.Context, tx *sql.Tx, tableName string, batch table.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	quoted := make([]string, len(batch.Columns))
	for i, c := range batch.Columns {
		quoted[i] = quoteIdent(c.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch.Columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for i, row := range batch.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, tableName, err)
		}
	}
	return nil
}

func sameNames(existing []table.Column, incoming []table.Column) bool {
	if len(existing) != len(incoming) {
		return false
	}
	for i := range existing {
		if existing[i].Name != incoming[i].Name {
			return false
		}
	}
	return true
}

func names(cols []table.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
