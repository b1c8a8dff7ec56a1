package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
//
// Each mirrored remote table has one mirror_tables row. Its rows are stored
// as JSON documents in mirror_rows and the column names it exposes are listed
// in mirror_columns.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS mirror_tables (
		name      TEXT     PRIMARY KEY,
		row_count INTEGER  NOT NULL DEFAULT 0,
		source    TEXT     NOT NULL DEFAULT '',
		synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS mirror_columns (
		table_name  TEXT NOT NULL REFERENCES mirror_tables(name) ON DELETE CASCADE,
		column_name TEXT NOT NULL,
		PRIMARY KEY (table_name, column_name)
	)`,
	`CREATE TABLE IF NOT EXISTS mirror_rows (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT    NOT NULL REFERENCES mirror_tables(name) ON DELETE CASCADE,
		data       TEXT    NOT NULL CHECK (json_valid(data))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mirror_rows_table ON mirror_rows(table_name)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
