package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/transaction"
)

func newTransactionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions <code>",
		Short: "List a commune's cleaned sales",
		Long:  "List the sales of a commune that pass the cleaning rules, most recent first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransactions(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sales to print (0 = all)")

	return cmd
}

func runTransactions(cmd *cobra.Command, code string, limit int) error {
	svc, closeFn, err := newService()
	if err != nil {
		return err
	}
	defer closeFn()

	txs, err := svc.Transactions(cmd.Context(), code)
	if err != nil {
		return errors.New(market.Describe(err))
	}

	total := len(txs)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].MutationDate.After(txs[j].MutationDate)
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	if isJSON() {
		if txs == nil {
			txs = []transaction.Transaction{}
		}
		return printJSON(cmd.OutOrStdout(), txs)
	}
	return printTransactionTable(cmd.OutOrStdout(), txs, total)
}
