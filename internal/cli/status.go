package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/config"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/query"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, remote store and mirror",
		Long:  "Shows the configuration in use, tests the connection to the remote store and lists the tables of the local mirror.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, _ := configFilePath()
	fmt.Fprintf(out, "Config:  %s\n", path)
	fmt.Fprintf(out, "Tables:  %s, %s (join on %s)\n", cfg.Schema.CommuneTable, cfg.Schema.TransactionTable, cfg.Schema.JoinColumn)

	if err := cfg.CheckCredentials(); err != nil {
		fmt.Fprintln(out, "Remote:  not configured")
		fmt.Fprintf(out, "         %v\n", err)
	} else {
		fmt.Fprintf(out, "Remote:  %s\n", cfg.Remote.URL)
		fmt.Fprintf(out, "API Key: %s…\n", keyPrefix(cfg.Remote.Key))
		checkRemote(ctx, out, cfg)
	}

	checkMirror(ctx, out, cfg)
	return nil
}

func checkRemote(ctx context.Context, out io.Writer, cfg config.Config) {
	remote, err := newRemote(cfg)
	if err != nil {
		fmt.Fprintf(out, "Status:  ✗ %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := query.From(cfg.Schema.CommuneTable).
		Select(cfg.Schema.JoinColumn).
		WithLimit(1).
		WithCount().
		Execute(ctx, remote)
	if err != nil {
		fmt.Fprintf(out, "Status:  ✗ %s\n", market.Describe(err))
		return
	}
	if res.Total >= 0 {
		fmt.Fprintf(out, "Status:  ✓ connected (%d communes)\n", res.Total)
		return
	}
	fmt.Fprintln(out, "Status:  ✓ connected")
}

func checkMirror(ctx context.Context, out io.Writer, cfg config.Config) {
	if _, err := os.Stat(cfg.Mirror.Path); err != nil {
		fmt.Fprintf(out, "Mirror:  none (%s)\n", cfg.Mirror.Path)
		return
	}

	store, database, err := openMirror(cfg)
	if err != nil {
		fmt.Fprintf(out, "Mirror:  ✗ %v\n", err)
		return
	}
	defer closeDB(database)

	tables, err := store.Tables(ctx)
	if err != nil {
		fmt.Fprintf(out, "Mirror:  ✗ %v\n", err)
		return
	}
	fmt.Fprintf(out, "Mirror:  %s\n", cfg.Mirror.Path)
	for _, t := range tables {
		fmt.Fprintf(out, "         %s: %d rows, synced %s\n", t.Name, t.Rows, t.SyncedAt.Format("2006-01-02 15:04"))
	}
}

func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
