package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/evcraddock/immo/internal/transaction"
)

// DefaultHistogramBins is the number of bins of the price distribution.
const DefaultHistogramBins = 25

// QuarterPoint is the median price per m² of one calendar quarter.
type QuarterPoint struct {
	Quarter            string  `json:"quarter"`
	Year               int     `json:"year"`
	Q                  int     `json:"q"`
	MedianPricePerArea float64 `json:"median_price_per_area"`
	Count              int     `json:"count"`
}

// QuarterlyTrend groups sales by calendar quarter, oldest first.
func QuarterlyTrend(txs []transaction.Transaction) []QuarterPoint {
	type key struct{ year, q int }
	groups := map[key][]float64{}
	for _, tx := range txs {
		k := key{tx.MutationDate.Year(), (int(tx.MutationDate.Month())-1)/3 + 1}
		groups[k] = append(groups[k], tx.PricePerArea)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].q < keys[j].q
	})

	points := make([]QuarterPoint, len(keys))
	for i, k := range keys {
		prices := groups[k]
		points[i] = QuarterPoint{
			Quarter:            fmt.Sprintf("%d-Q%d", k.year, k.q),
			Year:               k.year,
			Q:                  k.q,
			MedianPricePerArea: Median(prices),
			Count:              len(prices),
		}
	}
	return points
}

// Bin is one histogram bucket, [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets the price per m² into equal-width bins spanning the
// observed range. The maximum falls in the last bin.
func Histogram(txs []transaction.Transaction, bins int) []Bin {
	if len(txs) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, tx := range txs {
		lo = math.Min(lo, tx.PricePerArea)
		hi = math.Max(hi, tx.PricePerArea)
	}
	if hi == lo {
		return []Bin{{Lower: lo, Upper: hi, Count: len(txs)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, tx := range txs {
		i := int((tx.PricePerArea - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// TypeBreakdown summarizes sales of one property type.
type TypeBreakdown struct {
	PropertyType       string  `json:"property_type"`
	Count              int     `json:"count"`
	MedianPricePerArea float64 `json:"median_price_per_area"`
}

// ByPropertyType summarizes sales per property type, most frequent first.
func ByPropertyType(txs []transaction.Transaction) []TypeBreakdown {
	groups := map[string][]float64{}
	for _, tx := range txs {
		kind := tx.PropertyType
		if kind == "" {
			kind = "unknown"
		}
		groups[kind] = append(groups[kind], tx.PricePerArea)
	}

	out := make([]TypeBreakdown, 0, len(groups))
	for kind, prices := range groups {
		out = append(out, TypeBreakdown{
			PropertyType:       kind,
			Count:              len(prices),
			MedianPricePerArea: Median(prices),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PropertyType < out[j].PropertyType
	})
	return out
}
