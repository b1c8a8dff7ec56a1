package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/export"
	"github.com/evcraddock/immo/internal/market"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <code>",
		Short: "Export a commune's sales to an Excel workbook",
		Long:  "Write the cleaned sales (most recent first), the indicators and the quarterly series of a commune to an .xlsx file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: immo-<code>.xlsx)")

	return cmd
}

func runExport(cmd *cobra.Command, code, output string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	r := svc.Report(cmd.Context(), code)
	printWarnings(cmd.ErrOrStderr(), r.Warnings)
	if r.Status == market.StatusError {
		return fmt.Errorf("nothing exported for %s", r.JoinKey)
	}

	if output == "" {
		output = fmt.Sprintf("immo-%s.xlsx", r.JoinKey)
	}
	if err := writeFile(output, func(f *os.File) error { return export.Workbook(f, r) }); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sales to %s\n", len(r.Transactions), output)
	return nil
}

// writeFile creates path and fills it with write, removing it on failure.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
