package commune

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
)

const (
	// DefaultPageSize matches the store's per-request row cap.
	DefaultPageSize = 1000
	// DefaultCacheTTL is how long a loaded directory is reused.
	DefaultCacheTTL = time.Hour

	directoryKey = "directory"
)

// DirectoryOptions tunes pagination and caching.
type DirectoryOptions struct {
	PageSize int
	CacheTTL time.Duration
}

// Directory lists every commune for selection purposes.
type Directory struct {
	exec     query.Executor
	mapping  schema.Mapping
	pageSize int
	cache    *expirable.LRU[string, []Commune]
}

// NewDirectory creates a directory loader.
func NewDirectory(exec query.Executor, m schema.Mapping, opts DirectoryOptions) *Directory {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Directory{
		exec:     exec,
		mapping:  m,
		pageSize: opts.PageSize,
		cache:    expirable.NewLRU[string, []Commune](1, nil, opts.CacheTTL),
	}
}

// Load returns the deduplicated communes sorted by name.
//
// A failed page request returns the communes accumulated so far together
// with the error. An empty table returns ErrNoData. Only complete loads are
// cached.
func (d *Directory) Load(ctx context.Context) ([]Commune, error) {
	if cached, ok := d.cache.Get(directoryKey); ok {
		return append([]Commune(nil), cached...), nil
	}

	communes, err := d.fetchAll(ctx)
	if err != nil {
		return communes, err
	}
	if len(communes) == 0 {
		return nil, ErrNoData
	}

	d.cache.Add(directoryKey, communes)
	return append([]Commune(nil), communes...), nil
}

// Invalidate drops the cached directory.
func (d *Directory) Invalidate() {
	d.cache.Purge()
}

// Search returns communes whose name starts with term, ignoring case and
// accents, or whose postal or INSEE code starts with term.
//
// When the directory loads only partially, the matches among the loaded
// communes are returned together with the load error. The result is nil
// only when nothing was loaded.
func (d *Directory) Search(ctx context.Context, term string) ([]Commune, error) {
	all, err := d.Load(ctx)
	if len(all) == 0 {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return all, err
	}
	folded := fold(term)

	out := []Commune{}
	for _, c := range all {
		if strings.HasPrefix(fold(c.Name), folded) ||
			strings.HasPrefix(c.PostalCode, term) ||
			strings.HasPrefix(c.InseeCode, term) {
			out = append(out, c)
		}
	}
	return out, err
}

type dedupKey struct {
	name, join string
}

// fetchAll pages through the reference table until a short or empty page,
// or until the reported total is reached.
func (d *Directory) fetchAll(ctx context.Context) ([]Commune, error) {
	seen := map[dedupKey]bool{}
	var out []Commune
	total := -1

	for offset := 0; ; offset += d.pageSize {
		q := query.From(d.mapping.CommuneTable).
			Select(d.mapping.DirectoryColumns()...).
			OrderBy(d.mapping.InseeColumn, false).
			OrderBy(d.mapping.PostalColumn, false).
			Range(offset, offset+d.pageSize-1)
		if offset == 0 {
			q = q.WithCount()
		}

		res, err := q.Execute(ctx, d.exec)
		if err != nil {
			sortByName(out)
			return out, fmt.Errorf("loading %s at offset %d: %w", d.mapping.CommuneTable, offset, err)
		}

		for _, row := range res.Rows {
			c := fromRow(row, d.mapping)
			key := dedupKey{name: c.Name, join: c.JoinKey(d.mapping)}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}

		if total < 0 && res.Total >= 0 {
			total = res.Total
		}
		if len(res.Rows) < d.pageSize {
			break
		}
		if total >= 0 && offset+len(res.Rows) >= total {
			break
		}
	}

	slog.Debug("commune directory loaded", "communes", len(out), "table", d.mapping.CommuneTable)
	sortByName(out)
	return out, nil
}

// sortByName orders communes by French collation, then postal and INSEE code.
func sortByName(cs []Commune) {
	col := collate.New(language.French, collate.IgnoreCase)
	sort.SliceStable(cs, func(i, j int) bool {
		if c := col.CompareString(cs[i].Name, cs[j].Name); c != 0 {
			return c < 0
		}
		if cs[i].PostalCode != cs[j].PostalCode {
			return cs[i].PostalCode < cs[j].PostalCode
		}
		return cs[i].InseeCode < cs[j].InseeCode
	})
}

// fold lowercases s and strips diacritics and hyphens.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "-", " ")
	return strings.ToLower(out)
}
