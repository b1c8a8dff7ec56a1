// Package export writes a commune's market data to an Excel workbook.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/transaction"
)

// Sheet names.
const (
	SalesSheet   = "Sales"
	SummarySheet = "Summary"
	TrendSheet   = "Quarterly"
)

// Workbook writes the report as an xlsx document to w: the cleaned sales,
// most recent first, the headline indicators and the quarterly series.
func Workbook(w io.Writer, r *market.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeSales(f, r.Transactions); err != nil {
		return err
	}
	if err := writeSummary(f, r); err != nil {
		return err
	}
	if err := writeTrend(f, r); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSales(f *excelize.File, txs []transaction.Transaction) error {
	sorted := append([]transaction.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MutationDate.After(sorted[j].MutationDate)
	})

	headers := []any{"Date", "Type", "Price (€)", "Built area (m²)", "Price per m² (€)"}
	if err := setRow(f, SalesSheet, 1, headers); err != nil {
		return err
	}
	for i, tx := range sorted {
		row := []any{
			tx.MutationDate.Format(time.DateOnly),
			tx.PropertyType,
			tx.PropertyValue,
			tx.BuiltArea,
			round(tx.PricePerArea),
		}
		if err := setRow(f, SalesSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SalesSheet, "A", "E", 18)
}

func writeSummary(f *excelize.File, r *market.Report) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	name := r.JoinKey
	if r.Commune != nil {
		name = r.Commune.Label
	}
	s := r.Summary
	rows := [][]any{
		{"Commune", name},
		{"Status", string(r.Status)},
		{"Median price per m² (€)", round(s.MedianPricePerArea)},
		{"Mean price per m² (€)", round(s.MeanPricePerArea)},
		{"Price trend vs median (€/m²)", s.PriceTrendDelta},
		{"Estimated rent per m² (€)", s.EstimatedRentPerArea},
		{"Gross yield (%)", round2(s.GrossYieldPct)},
		{"Sales", s.TransactionVolume},
	}
	for _, ind := range r.Context {
		var v any = "n/a"
		if ind.Value != nil {
			v = *ind.Value
		}
		rows = append(rows, []any{ind.Column, v})
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 32)
}

func writeTrend(f *excelize.File, r *market.Report) error {
	if _, err := f.NewSheet(TrendSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := setRow(f, TrendSheet, 1, []any{"Quarter", "Median price per m² (€)", "Sales"}); err != nil {
		return err
	}
	for i, pt := range r.Trend {
		if err := setRow(f, TrendSheet, i+2, []any{pt.Quarter, round(pt.MedianPricePerArea), pt.Count}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func round(v float64) float64 {
	return float64(int64(v + 0.5))
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
