package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/immo/internal/coerce"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
)

// DefaultPageSize is the number of rows requested per remote page.
const DefaultPageSize = 1000

// Table names a remote table to copy and the columns that give it a stable
// page order. Codes lists the INSEE or postal code columns; their values are
// stored as zero-padded 5-character strings whatever their remote type.
type Table struct {
	Name    string
	OrderBy []string
	Codes   []string
}

// TablesFor returns the two tables described by m.
func TablesFor(m schema.Mapping) []Table {
	return []Table{
		{
			Name:    m.CommuneTable,
			OrderBy: []string{m.InseeColumn, m.PostalColumn},
			Codes:   []string{m.InseeColumn, m.PostalColumn, m.JoinColumn},
		},
		{
			Name:    m.TransactionTable,
			OrderBy: []string{m.JoinColumn, m.DateColumn},
			Codes:   []string{m.JoinColumn},
		},
	}
}

// SyncOptions tunes Sync.
type SyncOptions struct {
	PageSize int
	// Source is recorded alongside each table, typically the remote URL.
	Source string
	// Progress, if set, is called after each page.
	Progress func(table string, rows int)
}

// Sync copies every table from src into the store. Each table is replaced
// atomically; a failure leaves that table's previous snapshot in place.
func (s *Store) Sync(ctx context.Context, src query.Executor, tables []Table, opts SyncOptions) ([]TableInfo, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	var out []TableInfo
	for _, t := range tables {
		n, err := s.syncTable(ctx, src, t, opts)
		if err != nil {
			return out, fmt.Errorf("syncing %s: %w", t.Name, err)
		}
		slog.Info("table mirrored", "table", t.Name, "rows", n)
		out = append(out, TableInfo{Name: t.Name, Rows: n, Source: opts.Source})
	}
	return out, nil
}

func (s *Store) syncTable(ctx context.Context, src query.Executor, t Table, opts SyncOptions) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = sq.Delete("mirror_tables").Where(sq.Eq{"name": t.Name}).RunWith(tx).ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("clearing previous snapshot: %w", err)
	}
	if _, err = sq.Insert("mirror_tables").Columns("name", "source").Values(t.Name, opts.Source).
		RunWith(tx).ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("registering table: %w", err)
	}

	columns := map[string]bool{}
	total := -1
	for offset := 0; ; offset += opts.PageSize {
		q := query.From(t.Name).Range(offset, offset+opts.PageSize-1)
		for _, col := range t.OrderBy {
			q = q.OrderBy(col, false)
		}
		if offset == 0 {
			q = q.WithCount()
		}

		var res *query.Result
		res, err = q.Execute(ctx, src)
		if err != nil {
			return 0, fmt.Errorf("fetching offset %d: %w", offset, err)
		}
		if err = insertRows(ctx, tx, t, res.Rows, columns); err != nil {
			return 0, err
		}
		n += len(res.Rows)
		if opts.Progress != nil {
			opts.Progress(t.Name, n)
		}

		if total < 0 && res.Total >= 0 {
			total = res.Total
		}
		if len(res.Rows) < opts.PageSize || (total >= 0 && n >= total) {
			break
		}
	}

	if err = insertColumns(ctx, tx, t.Name, columns); err != nil {
		return 0, err
	}
	if _, err = sq.Update("mirror_tables").Set("row_count", n).Where(sq.Eq{"name": t.Name}).
		RunWith(tx).ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("recording row count: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	return n, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, t Table, rows []query.Row, columns map[string]bool) error {
	if len(rows) == 0 {
		return nil
	}
	ins := sq.Insert("mirror_rows").Columns("table_name", "data")
	for _, row := range rows {
		data, err := json.Marshal(normalizeCodes(row, t.Codes))
		if err != nil {
			return fmt.Errorf("encoding row: %w", err)
		}
		ins = ins.Values(t.Name, string(data))
		for k := range row {
			columns[k] = true
		}
	}
	if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("inserting rows: %w", err)
	}
	return nil
}

// normalizeCodes returns a copy of row with the code columns zero-padded, so
// that equality filters on a padded key match numeric remote columns.
func normalizeCodes(row query.Row, codes []string) query.Row {
	if len(codes) == 0 {
		return row
	}
	out := make(query.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, c := range codes {
		if v, ok := out[c]; ok && v != nil {
			out[c] = coerce.Code(v)
		}
	}
	return out
}

func insertColumns(ctx context.Context, tx *sql.Tx, table string, columns map[string]bool) error {
	if len(columns) == 0 {
		return nil
	}
	names := make([]string, 0, len(columns))
	for c := range columns {
		names = append(names, c)
	}
	sort.Strings(names)

	ins := sq.Insert("mirror_columns").Columns("table_name", "column_name")
	for _, c := range names {
		ins = ins.Values(table, c)
	}
	if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("recording columns: %w", err)
	}
	return nil
}
