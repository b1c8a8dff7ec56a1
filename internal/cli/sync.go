package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/db"
	"github.com/evcraddock/immo/internal/mirror"
)

func newSyncCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy the remote tables into the local mirror",
		Long: "Download the commune and sales tables into a local SQLite mirror. " +
			"Use --mirror on other commands to read from it offline.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, pageSize)
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", mirror.DefaultPageSize, "rows per remote request")

	return cmd
}

func runSync(cmd *cobra.Command, pageSize int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	remote, err := newRemote(cfg)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Mirror.Path)
	if err != nil {
		return err
	}
	defer closeDB(database)

	out := cmd.OutOrStdout()
	opts := mirror.SyncOptions{
		PageSize: pageSize,
		Source:   remote.BaseURL(),
	}
	if !isJSON() {
		opts.Progress = func(table string, rows int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %d rows", table, rows)
		}
	}

	infos, err := mirror.New(database).Sync(cmd.Context(), remote, mirror.TablesFor(cfg.Schema), opts)
	if !isJSON() {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, infos)
	}
	for _, t := range infos {
		fmt.Fprintf(out, "%s: %d rows\n", t.Name, t.Rows)
	}
	fmt.Fprintf(out, "Mirror written to %s\n", cfg.Mirror.Path)
	return nil
}
