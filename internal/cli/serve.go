package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataviz/strataflow/internal/server"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		listen     string
		dataPath   string
		cacheFlag  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server.

The server loads the dataset once at startup and keeps per-session
classification trees in memory. Configuration comes from a TOML file;
the --listen, --data, and --cache-dir flags override it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dataPath != "" {
				cfg.Dataset.Path = dataPath
			}
			if cacheFlag != "" {
				cfg.Cache.Dir = cacheFlag
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			srv, err := server.New(cmd.Context(), cfg, c.Logger)
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}
			defer srv.Close()

			printInfo("Listening on %s", cfg.Listen)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "dataset file (overrides config)")
	cmd.Flags().StringVar(&cacheFlag, "cache-dir", "", "cache directory (overrides config)")

	return cmd
}
