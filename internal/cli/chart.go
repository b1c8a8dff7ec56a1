package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/chart"
	"github.com/evcraddock/immo/internal/market"
)

func newChartCmd() *cobra.Command {
	var (
		kind   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "chart <code>",
		Short: "Render a commune's price chart as PNG",
		Long:  "Render the quarterly median price trend or the price per m² distribution of a commune.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "trend" && kind != "histogram" {
				return fmt.Errorf("invalid --kind %q (trend|histogram)", kind)
			}
			return runChart(cmd, args[0], kind, output)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "trend", "chart kind (trend|histogram)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: immo-<code>-<kind>.png)")

	return cmd
}

func runChart(cmd *cobra.Command, code, kind, output string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	r := svc.Report(cmd.Context(), code)
	printWarnings(cmd.ErrOrStderr(), r.Warnings)
	if r.Status == market.StatusError {
		return fmt.Errorf("no chart for %s", r.JoinKey)
	}

	title := r.JoinKey
	if r.Commune != nil {
		title = r.Commune.Label
	}
	if output == "" {
		output = fmt.Sprintf("immo-%s-%s.png", r.JoinKey, kind)
	}

	err = writeFile(output, func(f *os.File) error {
		if kind == "histogram" {
			return chart.Histogram(f, title, r.Histogram, r.Summary.MedianPricePerArea)
		}
		return chart.Trend(f, title, r.Trend)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", output)
	return nil
}
