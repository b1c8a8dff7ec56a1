package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/transaction"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCommuneTable prints communes as a formatted table.
func printCommuneTable(out io.Writer, communes []commune.Commune, total int) error {
	if len(communes) == 0 {
		fmt.Fprintln(out, "No communes found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "NAME\tPOSTAL\tINSEE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "----\t------\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}
	for _, c := range communes {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(c.Name, 40), c.PostalCode, c.InseeCode); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	if total > len(communes) {
		fmt.Fprintf(out, "\nShowing %d of %d communes\n", len(communes), total)
	} else {
		fmt.Fprintf(out, "\nTotal: %d communes\n", total)
	}
	return nil
}

// printReport prints a market report in text format.
func printReport(out io.Writer, r *market.Report) {
	switch {
	case r.Commune != nil:
		fmt.Fprintf(out, "%s  INSEE %s\n", r.Commune.Label, r.Commune.InseeCode)
	case r.ReferenceError != "":
		fmt.Fprintf(out, "Code %s (reference data unavailable: %s)\n", r.JoinKey, r.ReferenceError)
	default:
		fmt.Fprintf(out, "Code %s (no reference data)\n", r.JoinKey)
	}

	s := r.Summary
	if !s.HasTransactions {
		fmt.Fprintln(out, "  No qualifying sales.")
	} else {
		fmt.Fprintf(out, "  Median price:   %s €/m²\n", formatThousands(s.MedianPricePerArea))
		fmt.Fprintf(out, "  Trend %d:     %s €/m² vs median\n", s.MostRecentYear, formatDelta(s.PriceTrendDelta))
		fmt.Fprintf(out, "  Sales:          %s\n", formatThousands(float64(s.TransactionVolume)))
	}
	if s.EstimatedRentPerArea > 0 {
		fmt.Fprintf(out, "  Estimated rent: %.1f €/m²/month (%s)\n", s.EstimatedRentPerArea, s.RentSource)
	} else {
		fmt.Fprintln(out, "  Estimated rent: —")
	}
	if s.GrossYieldPct > 0 {
		fmt.Fprintf(out, "  Gross yield:    %.2f %% (%s)\n", s.GrossYieldPct, s.YieldLabel)
	} else {
		fmt.Fprintln(out, "  Gross yield:    —")
	}

	if len(r.ByType) > 0 {
		fmt.Fprintln(out, "\nBy property type:")
		for _, b := range r.ByType {
			fmt.Fprintf(out, "  %-14s %6d sales  %s €/m²\n", truncate(b.PropertyType, 14), b.Count, formatThousands(b.MedianPricePerArea))
		}
	}

	if len(r.Trend) > 0 {
		fmt.Fprintln(out, "\nQuarterly median:")
		for _, pt := range r.Trend {
			fmt.Fprintf(out, "  %s  %s €/m²  (%d)\n", pt.Quarter, formatThousands(pt.MedianPricePerArea), pt.Count)
		}
	}

	if len(r.Context) > 0 {
		fmt.Fprintln(out, "\nContext:")
		for _, ind := range r.Context {
			fmt.Fprintf(out, "  %-32s %s\n", ind.Column, formatOptional(ind.Value))
		}
	}
}

// printTransactionTable prints sales as a formatted table.
func printTransactionTable(out io.Writer, txs []transaction.Transaction, total int) error {
	if len(txs) == 0 {
		fmt.Fprintln(out, "No sales.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "DATE\tTYPE\tPRICE\tAREA\t€/M²"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "----\t----\t-----\t----\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}
	for _, tx := range txs {
		kind := tx.PropertyType
		if kind == "" {
			kind = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\n",
			tx.MutationDate.Format(time.DateOnly), truncate(kind, 20), formatThousands(tx.PropertyValue),
			tx.BuiltArea, formatThousands(tx.PricePerArea)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	if total > len(txs) {
		fmt.Fprintf(out, "\nShowing %d of %d sales\n", len(txs), total)
	} else {
		fmt.Fprintf(out, "\nTotal: %d sales\n", total)
	}
	return nil
}

// formatThousands rounds v and groups its digits by thousands with spaces.
func formatThousands(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return sign + s
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	return sign + strings.Join(parts, " ")
}

// formatDelta formats a signed price difference.
func formatDelta(d int) string {
	if d > 0 {
		return "+" + formatThousands(float64(d))
	}
	return formatThousands(float64(d))
}

// formatOptional renders a missing value as a dash.
func formatOptional(v *float64) string {
	if v == nil {
		return "—"
	}
	if *v == float64(int64(*v)) {
		return formatThousands(*v)
	}
	return fmt.Sprintf("%.1f", *v)
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
