package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/market"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a commune's market indicators",
		Long:  "Show the market report of a commune identified by its join code (postal code by default).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}
}

func runShow(cmd *cobra.Command, code string) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	r := svc.Report(cmd.Context(), code)

	if isJSON() {
		if err := printJSON(cmd.OutOrStdout(), r); err != nil {
			return err
		}
	} else {
		printWarnings(cmd.ErrOrStderr(), r.Warnings)
		printReport(cmd.OutOrStdout(), r)
	}

	if r.Status == market.StatusError {
		return fmt.Errorf("report for %s is incomplete", r.JoinKey)
	}
	return nil
}
