package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB wraps an in-process DuckDB instance holding the sales dataset. The
// underlying connection is not safe for concurrent execute calls; callers
// serialize access.
type DB struct {
	log *slog.Logger
	db  *sql.DB
}

// Open creates an in-memory DuckDB database.
func Open(log *slog.Logger) (*DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{log: log, db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Ingest loads a CSV or JSON file into a named table, replacing any previous
// contents. Column types are inferred by DuckDB.
func (d *DB) Ingest(ctx context.Context, path, table string) error {
	var reader string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = "read_csv_auto"
	case ".json":
		reader = "read_json_auto"
	default:
		return fmt.Errorf("unsupported dataset file type: %s", filepath.Ext(path))
	}

	quoted := strings.ReplaceAll(path, "'", "''")
	stmt := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s('%s')`, table, reader, quoted)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to ingest %s: %w", path, err)
	}

	var count int64
	if err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count); err != nil {
		return fmt.Errorf("failed to count ingested rows: %w", err)
	}
	d.log.Info("dataset ingested", "path", path, "table", table, "rows", count)
	return nil
}

// Register exposes an in-memory relation under a queryable table name.
func (d *DB) Register(ctx context.Context, table string, rel Relation) error {
	defs := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		var sqlType string
		switch c.Type {
		case Numeric:
			sqlType = "DOUBLE"
		case Datetime:
			sqlType = "TIMESTAMP"
		default:
			sqlType = "VARCHAR"
		}
		defs[i] = fmt.Sprintf("%q %s", c.Name, sqlType)
	}

	stmt := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, table, strings.Join(defs, ", "))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	if len(rel.Rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rel.Columns)), ",")
	insert := fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, table, placeholders)
	for _, row := range rel.Rows {
		if _, err := d.db.ExecContext(ctx, insert, row...); err != nil {
			return fmt.Errorf("failed to insert row into %s: %w", table, err)
		}
	}
	d.log.Info("relation registered", "table", table, "rows", len(rel.Rows))
	return nil
}

// Query executes SQL and scans the full result into a Relation.
func (d *DB) Query(ctx context.Context, query string) (Relation, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return Relation{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return Relation{}, fmt.Errorf("failed to get column types: %w", err)
	}

	rel := Relation{Columns: make([]Column, len(types)), Rows: [][]any{}}
	for i, t := range types {
		rel.Columns[i] = Column{Name: t.Name(), Type: columnTypeFor(t.DatabaseTypeName())}
	}

	for rows.Next() {
		values := make([]any, len(types))
		valuePtrs := make([]any, len(types))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return Relation{}, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rel.Rows = append(rel.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Relation{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return rel, nil
}

// Snapshot returns the full contents of a table in original order.
func (d *DB) Snapshot(ctx context.Context, table string) (Relation, error) {
	return d.Query(ctx, fmt.Sprintf("SELECT * FROM %s", table))
}

// SchemaDescription builds a deterministic text description of a table:
// row count, column names and types, and up to three sample values per
// column. The text is consumed verbatim inside LLM prompts.
func (d *DB) SchemaDescription(ctx context.Context, table string) (string, error) {
	rel, err := d.Snapshot(ctx, table)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset contains %d records with %d columns.\n", rel.RowCount(), rel.ColumnCount())
	sb.WriteString("\nColumns and their types:")
	for i, col := range rel.Columns {
		samples := make([]string, 0, 3)
		for _, row := range rel.Rows {
			if row[i] == nil {
				continue
			}
			samples = append(samples, FormatCell(row[i]))
			if len(samples) == 3 {
				break
			}
		}
		fmt.Fprintf(&sb, "\n- %s (%s): Sample values: [%s]", col.Name, col.Type, strings.Join(samples, ", "))
	}
	return sb.String(), nil
}

func columnTypeFor(dbType string) ColumnType {
	t := strings.ToUpper(dbType)
	switch {
	case strings.HasPrefix(t, "DECIMAL"), strings.HasPrefix(t, "NUMERIC"):
		return Numeric
	case t == "TINYINT", t == "SMALLINT", t == "INTEGER", t == "BIGINT", t == "HUGEINT",
		t == "UTINYINT", t == "USMALLINT", t == "UINTEGER", t == "UBIGINT",
		t == "FLOAT", t == "DOUBLE", t == "REAL":
		return Numeric
	case t == "DATE", strings.HasPrefix(t, "TIMESTAMP"), t == "TIME", t == "DATETIME":
		return Datetime
	default:
		return Text
	}
}
