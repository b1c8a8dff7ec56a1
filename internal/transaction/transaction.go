// Package transaction fetches and cleans the property sales of a commune.
package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/evcraddock/immo/internal/coerce"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
)

// Inclusion bounds applied to every sale.
const (
	MinPropertyValue = 5000.0
	MinBuiltArea     = 9.0
	MinPricePerArea  = 500.0
	MaxPricePerArea  = 30000.0

	// DefaultMaxRows caps a single commune's history.
	DefaultMaxRows = 50000
)

// Transaction is one cleaned sale.
type Transaction struct {
	MutationDate  time.Time `json:"mutation_date"`
	PropertyValue float64   `json:"property_value"`
	BuiltArea     float64   `json:"built_area"`
	PropertyType  string    `json:"property_type,omitempty"`
	PricePerArea  float64   `json:"price_per_area"`
}

// Year returns the calendar year of the sale.
func (t Transaction) Year() int {
	return t.MutationDate.Year()
}

// Quarter returns the sale's calendar quarter, e.g. "2023-Q2".
func (t Transaction) Quarter() string {
	q := (int(t.MutationDate.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", t.MutationDate.Year(), q)
}

// Fetcher retrieves a commune's sales history.
type Fetcher struct {
	exec    query.Executor
	mapping schema.Mapping
	maxRows int
}

// NewFetcher creates a fetcher capped at maxRows rows (DefaultMaxRows if <= 0).
func NewFetcher(exec query.Executor, m schema.Mapping, maxRows int) *Fetcher {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Fetcher{exec: exec, mapping: m, maxRows: maxRows}
}

// Fetch returns the cleaned sales for joinKey in chronological order.
// When the commune has more sales than the row cap, the most recent ones are
// kept. A failed query returns no sales and the error.
func (f *Fetcher) Fetch(ctx context.Context, joinKey string) ([]Transaction, error) {
	key := coerce.Code(joinKey)
	if key == "" {
		return nil, fmt.Errorf("join key is required")
	}

	res, err := query.From(f.mapping.TransactionTable).
		Select(f.mapping.TransactionColumns()...).
		Eq(f.mapping.JoinColumn, key).
		Gt(f.mapping.ValueColumn, MinPropertyValue).
		Gt(f.mapping.AreaColumn, MinBuiltArea).
		OrderBy(f.mapping.DateColumn, true).
		WithLimit(f.maxRows).
		Execute(ctx, f.exec)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions for %s: %w", key, err)
	}

	txs := Clean(res.Rows, f.mapping)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].MutationDate.Before(txs[j].MutationDate)
	})
	slog.Debug("transactions fetched",
		"key", key,
		"rows", len(res.Rows),
		"kept", len(txs),
	)
	return txs, nil
}

// Clean types raw sale rows, derives the price per m² and drops rows that
// fail to parse or fall outside the inclusion bounds. The result never has
// more rows than the input and keeps the input order.
func Clean(rows []query.Row, m schema.Mapping) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		tx, ok := clean(row, m)
		if ok {
			out = append(out, tx)
		}
	}
	return out
}

func clean(row query.Row, m schema.Mapping) (Transaction, bool) {
	date, ok := coerce.Date(row[m.DateColumn])
	if !ok {
		return Transaction{}, false
	}
	value := coerce.Number(row[m.ValueColumn])
	area := coerce.Number(row[m.AreaColumn])
	if value == nil || area == nil {
		return Transaction{}, false
	}
	if *value <= MinPropertyValue || *area <= MinBuiltArea {
		return Transaction{}, false
	}

	ppa := *value / *area
	if ppa <= MinPricePerArea || ppa >= MaxPricePerArea {
		return Transaction{}, false
	}

	var kind string
	if m.TypeColumn != "" {
		if s, ok := row[m.TypeColumn].(string); ok {
			kind = strings.TrimSpace(s)
		}
	}

	return Transaction{
		MutationDate:  date,
		PropertyValue: *value,
		BuiltArea:     *area,
		PropertyType:  kind,
		PricePerArea:  ppa,
	}, true
}
