package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/market"
)

func newCommunesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "communes [search]",
		Short: "List or search communes",
		Long:  "List communes, optionally filtered by a name prefix (case and accent insensitive) or a postal/INSEE code prefix.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			return runCommunes(cmd, term, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of communes to print (0 = all)")

	return cmd
}

func runCommunes(cmd *cobra.Command, term string, limit int) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	communes, err := svc.Search(cmd.Context(), term)
	if err != nil && !errors.Is(err, commune.ErrNoData) {
		if communes == nil {
			return err
		}
		printWarnings(cmd.ErrOrStderr(), []string{"directory incomplete: " + market.Describe(err)})
	}

	total := len(communes)
	if limit > 0 && len(communes) > limit {
		communes = communes[:limit]
	}

	if isJSON() {
		if communes == nil {
			communes = []commune.Commune{}
		}
		return printJSON(cmd.OutOrStdout(), communes)
	}
	return printCommuneTable(cmd.OutOrStdout(), communes, total)
}
