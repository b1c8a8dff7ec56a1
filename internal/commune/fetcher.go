package commune

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evcraddock/immo/internal/coerce"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
)

// Fetcher retrieves the full reference record of one commune.
type Fetcher struct {
	exec    query.Executor
	mapping schema.Mapping
}

// NewFetcher creates a detail fetcher.
func NewFetcher(exec query.Executor, m schema.Mapping) *Fetcher {
	return &Fetcher{exec: exec, mapping: m}
}

// Detail returns the commune matching joinKey. See DetailFor.
func (f *Fetcher) Detail(ctx context.Context, joinKey string) (*Commune, error) {
	return f.DetailFor(ctx, joinKey, "")
}

// DetailFor returns the commune matching joinKey, which is zero-padded first.
//
// When several rows share the key, the row whose INSEE code equals
// preferInsee wins; otherwise the lowest INSEE code wins. A query that
// matches nothing returns ErrNotFound; a rejected query returns the
// store's error.
func (f *Fetcher) DetailFor(ctx context.Context, joinKey, preferInsee string) (*Commune, error) {
	key := coerce.Code(joinKey)
	if key == "" {
		return nil, fmt.Errorf("join key is required")
	}

	res, err := query.From(f.mapping.CommuneTable).
		Eq(f.mapping.JoinColumn, key).
		OrderBy(f.mapping.InseeColumn, false).
		Execute(ctx, f.exec)
	if err != nil {
		return nil, fmt.Errorf("fetching commune %s: %w", key, err)
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", f.mapping.JoinColumn, key, ErrNotFound)
	}

	row := res.Rows[0]
	if prefer := coerce.Code(preferInsee); prefer != "" {
		for _, r := range res.Rows {
			if coerce.Code(r[f.mapping.InseeColumn]) == prefer {
				row = r
				break
			}
		}
	}

	c := fromRow(row, f.mapping)
	c.Matches = len(res.Rows)
	if c.Matches > 1 {
		slog.Warn("several communes share a join key",
			"column", f.mapping.JoinColumn,
			"key", key,
			"matches", c.Matches,
			"chosen", c.InseeCode,
		)
	}
	return &c, nil
}
