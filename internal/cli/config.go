package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/immo/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		url   string
		key   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default schema",
		Long: "Write a configuration file holding the default table and column mapping. " +
			"Credentials left unset are written as placeholders to be replaced, or can be " +
			"supplied through SUPABASE_URL and SUPABASE_KEY.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", path, err)
			}

			cfg := config.Default()
			cfg.Remote.URL = config.PlaceholderURL
			cfg.Remote.Key = config.PlaceholderKey
			if url != "" {
				cfg.Remote.URL = url
			}
			if key != "" {
				cfg.Remote.Key = key
			}

			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			if err := cfg.CheckCredentials(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Edit remote.url and remote.key before querying: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Supabase project URL")
	cmd.Flags().StringVar(&key, "key", "", "Supabase API key")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// configFilePath returns --config if set, the default path otherwise.
func configFilePath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.DefaultPath()
}
