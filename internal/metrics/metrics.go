// Package metrics derives market indicators from a commune record and its
// cleaned sales. Every function is pure.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/transaction"
)

// OpportunityYieldPct is the gross yield above which a market is flagged as an opportunity.
const OpportunityYieldPct = 6.0

// Summary holds the headline indicators of a commune.
type Summary struct {
	MedianPricePerArea       float64 `json:"median_price_per_area"`
	MeanPricePerArea         float64 `json:"mean_price_per_area"`
	HasTransactions          bool    `json:"has_transactions"`
	MostRecentYear           int     `json:"most_recent_year,omitempty"`
	RecentMedianPricePerArea float64 `json:"recent_median_price_per_area"`
	// PriceTrendDelta compares the most recent year's median with the all-time median.
	PriceTrendDelta      int     `json:"price_trend_delta"`
	EstimatedRentPerArea float64 `json:"estimated_rent_per_area"`
	RentSource           string  `json:"rent_source,omitempty"`
	GrossYieldPct        float64 `json:"gross_yield_pct"`
	YieldLabel           string  `json:"yield_label,omitempty"`
	TransactionVolume    int     `json:"transaction_volume"`
}

// Rent is an estimated monthly rent per m² and the column it came from.
type Rent struct {
	PerArea float64
	Source  string
}

// Summarize computes the headline indicators.
func Summarize(txs []transaction.Transaction, rent Rent) Summary {
	s := Summary{
		EstimatedRentPerArea: rent.PerArea,
		RentSource:           rent.Source,
		TransactionVolume:    len(txs),
	}
	if len(txs) == 0 {
		return s
	}

	prices := pricesOf(txs)
	s.HasTransactions = true
	s.MedianPricePerArea = Median(prices)
	s.MeanPricePerArea = stat.Mean(prices, nil)
	s.MostRecentYear = MostRecentYear(txs)

	var recent []float64
	for _, tx := range txs {
		if tx.Year() == s.MostRecentYear {
			recent = append(recent, tx.PricePerArea)
		}
	}
	s.RecentMedianPricePerArea = Median(recent)
	s.PriceTrendDelta = int(s.RecentMedianPricePerArea - s.MedianPricePerArea)

	s.GrossYieldPct = GrossYield(rent.PerArea, s.MedianPricePerArea)
	s.YieldLabel = YieldLabel(s.GrossYieldPct)
	return s
}

// Median returns the middle value, the mean of the two middle values for
// even-length input, or 0 for no input. The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MostRecentYear returns the latest sale year, or 0 for no sales.
func MostRecentYear(txs []transaction.Transaction) int {
	year := 0
	for _, tx := range txs {
		if y := tx.Year(); y > year {
			year = y
		}
	}
	return year
}

// GrossYield returns the annual gross rental yield in percent, or 0 unless
// both the rent and the price are positive.
func GrossYield(rentPerArea, pricePerArea float64) float64 {
	if rentPerArea <= 0 || pricePerArea <= 0 {
		return 0
	}
	return rentPerArea * 12 / pricePerArea * 100
}

// YieldLabel qualifies a gross yield.
func YieldLabel(yieldPct float64) string {
	switch {
	case yieldPct <= 0:
		return ""
	case yieldPct > OpportunityYieldPct:
		return "opportunity"
	default:
		return "tight market"
	}
}

// EstimatedRent returns the first positive rent among the priority columns.
func EstimatedRent(c *commune.Commune, priority []string) Rent {
	if c == nil {
		return Rent{}
	}
	for _, col := range priority {
		if v, ok := c.Attribute(col); ok && v > 0 {
			return Rent{PerArea: v, Source: col}
		}
	}
	return Rent{}
}

func pricesOf(txs []transaction.Transaction) []float64 {
	prices := make([]float64, len(txs))
	for i, tx := range txs {
		prices[i] = tx.PricePerArea
	}
	return prices
}
