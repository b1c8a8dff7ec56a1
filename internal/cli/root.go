// Package cli defines the cobra command tree for immo.
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/config"
	"github.com/evcraddock/immo/internal/db"
	"github.com/evcraddock/immo/internal/logging"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/mirror"
	"github.com/evcraddock/immo/internal/postgrest"
	"github.com/evcraddock/immo/internal/query"
)

var (
	flagFormat string
	flagConfig string
	flagMirror bool
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "immo",
		Short: "Real-estate market indicators for French communes",
		Long: "Look up a French commune and view its real-estate market: median price per m², " +
			"estimated rent, gross rental yield, sales volume, price trend and socio-demographic context.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagFormat != "text" && flagFormat != "json" {
				return fmt.Errorf("invalid --format %q (text|json)", flagFormat)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ~/.config/immo/config.yaml)")
	root.PersistentFlags().BoolVar(&flagMirror, "mirror", false, "read from the local mirror instead of the remote store")

	root.AddCommand(
		newCommunesCmd(),
		newShowCmd(),
		newTransactionsCmd(),
		newSyncCmd(),
		newExportCmd(),
		newChartCmd(),
		newServeCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the configuration and sets up logging on stderr.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	logging.Setup(os.Stderr, cfg.DevMode)
	return cfg, nil
}

// newRemote creates the PostgREST client, failing on missing credentials.
func newRemote(cfg config.Config) (*postgrest.Client, error) {
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	return postgrest.NewClient(cfg.Remote.URL, cfg.Remote.Key, cfg.Remote.Timeout)
}

// openMirror opens an existing mirror database.
func openMirror(cfg config.Config) (*mirror.Store, *sql.DB, error) {
	d, err := db.OpenExisting(cfg.Mirror.Path)
	if err != nil {
		return nil, nil, err
	}
	return mirror.New(d), d, nil
}

// newExecutor returns the mirror when --mirror is set, the remote store
// otherwise. The returned func releases it.
func newExecutor(cfg config.Config) (query.Executor, func(), error) {
	if flagMirror {
		store, d, err := openMirror(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { closeDB(d) }, nil
	}

	remote, err := newRemote(cfg)
	if err != nil {
		return nil, nil, err
	}
	return remote, func() {}, nil
}

// newService loads the configuration and wires the market service.
func newService() (*market.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	exec, closeFn, err := newExecutor(cfg)
	if err != nil {
		return nil, nil, err
	}
	return newMarketService(exec, cfg), closeFn, nil
}

func newMarketService(exec query.Executor, cfg config.Config) *market.Service {
	return market.NewService(exec, cfg.Schema, market.Options{
		Directory: commune.DirectoryOptions{
			PageSize: cfg.Directory.PageSize,
			CacheTTL: cfg.Directory.CacheTTL,
		},
		MaxRows: cfg.Transactions.MaxRows,
	})
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}

// printWarnings writes report warnings to w.
func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
