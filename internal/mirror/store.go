// Package mirror serves table queries from a local SQLite snapshot of the
// remote store and fills that snapshot.
package mirror

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/immo/internal/query"
)

// Store is a query.Executor over a mirror database opened with db.Open.
type Store struct {
	db *sql.DB
}

// New wraps an open mirror database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// TableInfo describes one mirrored table.
type TableInfo struct {
	Name     string    `json:"name"`
	Rows     int       `json:"rows"`
	Source   string    `json:"source"`
	SyncedAt time.Time `json:"synced_at"`
}

// Tables lists the mirrored tables.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := sq.Select("name", "row_count", "source", "synced_at").
		From("mirror_tables").
		OrderBy("name").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing mirrored tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Rows, &t.Source, &t.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning mirrored table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Execute implements query.Executor. Unknown tables and columns are reported
// with the same error codes the remote store uses.
func (s *Store) Execute(ctx context.Context, q query.Query) (*query.Result, error) {
	known, err := s.columns(ctx, q.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(q, known); err != nil {
		return nil, err
	}

	where := sq.And{sq.Eq{"table_name": q.Table}}
	for _, f := range q.Filters {
		switch f.Op {
		case query.OpEq:
			where = append(where, sq.Expr("CAST(json_extract(data, ?) AS TEXT) = ?", path(f.Column), fmt.Sprint(f.Value)))
		case query.OpGt:
			v, ok := toFloat(f.Value)
			if !ok {
				return nil, &query.APIError{
					Status:  http.StatusBadRequest,
					Code:    "22P02",
					Message: fmt.Sprintf("invalid numeric value %v for %s", f.Value, f.Column),
				}
			}
			where = append(where, sq.Expr("CAST(json_extract(data, ?) AS REAL) > ?", path(f.Column), v))
		default:
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}

	sel := sq.Select("data").From("mirror_rows").Where(where)
	for _, o := range q.Orders {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		sel = sel.OrderByClause("json_extract(data, ?) "+dir, path(o.Column))
	}
	sel = sel.OrderBy("id")
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	} else if q.Offset > 0 {
		sel = sel.Limit(math.MaxInt64)
	}
	if q.Offset > 0 {
		sel = sel.Offset(uint64(q.Offset))
	}

	rows, err := sel.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying mirror %s: %w", q.Table, err)
	}
	defer func() { _ = rows.Close() }()

	res := &query.Result{Total: -1}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning mirror row: %w", err)
		}
		row, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, project(row, q.Columns))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading mirror %s: %w", q.Table, err)
	}

	if q.Count {
		err := sq.Select("COUNT(*)").From("mirror_rows").Where(where).
			RunWith(s.db).QueryRowContext(ctx).Scan(&res.Total)
		if err != nil {
			return nil, fmt.Errorf("counting mirror %s: %w", q.Table, err)
		}
	}
	return res, nil
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	var exists int
	err := sq.Select("COUNT(*)").From("mirror_tables").Where(sq.Eq{"name": table}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up mirrored table %s: %w", table, err)
	}
	if exists == 0 {
		return nil, &query.APIError{
			Status:  http.StatusNotFound,
			Code:    query.CodeTableNotInCache,
			Message: fmt.Sprintf("Could not find the table '%s' in the mirror", table),
			Hint:    "run `immo sync`",
		}
	}

	rows, err := sq.Select("column_name").From("mirror_columns").Where(sq.Eq{"table_name": table}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := map[string]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols[c] = true
	}
	return cols, rows.Err()
}

// checkColumns rejects unknown columns. An empty snapshot has no recorded
// columns and accepts any.
func checkColumns(q query.Query, known map[string]bool) error {
	if len(known) == 0 {
		return nil
	}
	check := func(col string) error {
		if known[col] {
			return nil
		}
		return &query.APIError{
			Status:  http.StatusBadRequest,
			Code:    query.CodeUndefinedColumn,
			Message: fmt.Sprintf("column %s.%s does not exist", q.Table, col),
		}
	}
	for _, c := range q.Columns {
		if err := check(c); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := check(f.Column); err != nil {
			return err
		}
	}
	for _, o := range q.Orders {
		if err := check(o.Column); err != nil {
			return err
		}
	}
	return nil
}

// path returns the JSON path of a top-level key.
func path(column string) string {
	b, _ := json.Marshal(column)
	return "$." + string(b)
}

func decodeRow(data string) (query.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var row query.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decoding mirror row: %w", err)
	}
	return row, nil
}

func project(row query.Row, columns []string) query.Row {
	if len(columns) == 0 {
		return row
	}
	out := make(query.Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
