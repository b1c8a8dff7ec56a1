package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/metrics"
	"github.com/evcraddock/immo/internal/transaction"
)

func TestWorkbook(t *testing.T) {
	pop := 261804.0
	r := &market.Report{
		JoinKey: "33000",
		Status:  market.StatusOK,
		Commune: &commune.Commune{Name: "Bordeaux", Label: "Bordeaux (33000)"},
		Transactions: []transaction.Transaction{
			sale("2022-06-01", 3000),
			sale("2023-11-02", 5000),
			sale("2023-05-10", 4000),
		},
		Summary: metrics.Summary{MedianPricePerArea: 4000, GrossYieldPct: 6, TransactionVolume: 3},
		Trend:   []metrics.QuarterPoint{{Quarter: "2022-Q2", MedianPricePerArea: 3000, Count: 1}},
		Context: []market.Indicator{{Column: "pop_totale", Value: &pop}, {Column: "part_cadres_pct"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Workbook(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SalesSheet, SummarySheet, TrendSheet}, f.GetSheetList())

	rows, err := f.GetRows(SalesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2023-11-02", rows[1][0], "most recent first")
	assert.Equal(t, "2022-06-01", rows[3][0])
	assert.Equal(t, "5000", rows[1][4])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Commune", "Bordeaux (33000)"}, summary[0])
	assert.Equal(t, []string{"part_cadres_pct", "n/a"}, summary[len(summary)-1])

	trend, err := f.GetRows(TrendSheet)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "2022-Q2", trend[1][0])
}

func TestWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Workbook(&buf, &market.Report{JoinKey: "01000", Status: market.StatusNoData}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SalesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func sale(date string, ppa float64) transaction.Transaction {
	d, _ := time.Parse(time.DateOnly, date)
	return transaction.Transaction{
		MutationDate:  d,
		PropertyValue: ppa * 50,
		BuiltArea:     50,
		PropertyType:  "Appartement",
		PricePerArea:  ppa,
	}
}
