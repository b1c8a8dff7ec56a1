// Package market assembles everything shown for one selected commune.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evcraddock/immo/internal/coerce"
	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/metrics"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
	"github.com/evcraddock/immo/internal/transaction"
)

// Status is the overall outcome of a report.
type Status string

const (
	// StatusOK means both the reference record and sales were found.
	StatusOK Status = "ok"
	// StatusNoReference means sales exist but the commune has no reference row.
	StatusNoReference Status = "no_reference"
	// StatusReferenceError means sales exist but the reference query failed.
	StatusReferenceError Status = "reference_error"
	// StatusNoData means the commune has no qualifying sales.
	StatusNoData Status = "no_data"
	// StatusError means a query failed and nothing could be shown.
	StatusError Status = "error"
)

// Indicator is one socio-demographic attribute of the commune.
// Value is nil when the reference row has no usable value.
type Indicator struct {
	Column string   `json:"column"`
	Value  *float64 `json:"value"`
}

// Report is the complete view of one commune.
// ReferenceError describes a failed reference query; it stays empty when the
// commune was found or simply has no reference row.
type Report struct {
	JoinKey        string                    `json:"join_key"`
	Status         Status                    `json:"status"`
	Commune        *commune.Commune          `json:"commune,omitempty"`
	ReferenceError string                    `json:"reference_error,omitempty"`
	Summary        metrics.Summary           `json:"summary"`
	Trend          []metrics.QuarterPoint    `json:"trend"`
	Histogram      []metrics.Bin             `json:"histogram"`
	ByType         []metrics.TypeBreakdown   `json:"by_type"`
	Context        []Indicator               `json:"context"`
	Transactions   []transaction.Transaction `json:"-"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

// Options configures a Service.
type Options struct {
	Directory     commune.DirectoryOptions
	MaxRows       int
	HistogramBins int
}

// Service answers directory and per-commune requests against one store.
type Service struct {
	mapping   schema.Mapping
	directory *commune.Directory
	communes  *commune.Fetcher
	sales     *transaction.Fetcher
	bins      int
}

// NewService wires the loaders for exec using mapping m.
func NewService(exec query.Executor, m schema.Mapping, opts Options) *Service {
	return &Service{
		mapping:   m,
		directory: commune.NewDirectory(exec, m, opts.Directory),
		communes:  commune.NewFetcher(exec, m),
		sales:     transaction.NewFetcher(exec, m, opts.MaxRows),
		bins:      opts.HistogramBins,
	}
}

// Directory returns every selectable commune.
func (s *Service) Directory(ctx context.Context) ([]commune.Commune, error) {
	return s.directory.Load(ctx)
}

// Search filters the directory by name or code prefix.
func (s *Service) Search(ctx context.Context, term string) ([]commune.Commune, error) {
	return s.directory.Search(ctx, term)
}

// Invalidate forces the next directory request to reload.
func (s *Service) Invalidate() {
	s.directory.Invalidate()
}

// Transactions returns the cleaned sales of one commune.
func (s *Service) Transactions(ctx context.Context, joinKey string) ([]transaction.Transaction, error) {
	return s.sales.Fetch(ctx, joinKey)
}

// Report fetches the reference record and the sales of joinKey and derives
// the indicators. Fetch failures never escape: they are reported as
// Warnings and the affected part of the report is left empty.
func (s *Service) Report(ctx context.Context, joinKey string) *Report {
	key := coerce.Code(joinKey)
	r := &Report{JoinKey: key}
	if key == "" {
		r.Status = StatusError
		r.Warnings = []string{"no commune selected"}
		return r
	}

	c, detailErr := s.communes.Detail(ctx, key)
	switch {
	case detailErr == nil:
		r.Commune = c
		if c.Matches > 1 {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("%d reference rows share %s %s; showing %s", c.Matches, s.mapping.JoinColumn, key, c.InseeCode))
		}
	case errors.Is(detailErr, commune.ErrNotFound):
		r.Warnings = append(r.Warnings, fmt.Sprintf("no reference data for %s", key))
	default:
		r.ReferenceError = Describe(detailErr)
		r.Warnings = append(r.Warnings, "commune details unavailable: "+r.ReferenceError)
		slog.Warn("commune detail failed", "key", key, "error", detailErr)
	}

	txs, salesErr := s.sales.Fetch(ctx, key)
	if salesErr != nil {
		r.Warnings = append(r.Warnings, "sales unavailable: "+Describe(salesErr))
		slog.Warn("transaction fetch failed", "key", key, "error", salesErr)
	}
	r.Transactions = txs

	rent := metrics.EstimatedRent(r.Commune, s.mapping.RentColumnPriority)
	r.Summary = metrics.Summarize(txs, rent)
	r.Trend = metrics.QuarterlyTrend(txs)
	r.Histogram = metrics.Histogram(txs, s.bins)
	r.ByType = metrics.ByPropertyType(txs)
	r.Context = contextOf(r.Commune, s.mapping.ContextColumns)

	r.Status = status(r, salesErr)
	return r
}

func status(r *Report, salesErr error) Status {
	switch {
	case salesErr != nil:
		return StatusError
	case len(r.Transactions) == 0:
		return StatusNoData
	case r.ReferenceError != "":
		return StatusReferenceError
	case r.Commune == nil:
		return StatusNoReference
	default:
		return StatusOK
	}
}

func contextOf(c *commune.Commune, columns []string) []Indicator {
	out := make([]Indicator, 0, len(columns))
	for _, col := range columns {
		ind := Indicator{Column: col}
		if c != nil {
			if v, ok := c.Attribute(col); ok {
				ind.Value = &v
			}
		}
		out = append(out, ind)
	}
	return out
}

// Describe turns a fetch error into a message suitable for display.
func Describe(err error) string {
	var apiErr *query.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "the data store did not answer in time"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, commune.ErrNoData):
		return "the commune table is empty"
	case query.IsPermissionDenied(err):
		return "access denied by the data store; check the API key and row-level security policies"
	case query.IsMissingColumn(err) && errors.As(err, &apiErr):
		return "a configured table or column does not exist: " + apiErr.Message
	default:
		return err.Error()
	}
}
