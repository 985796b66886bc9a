package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/internal/secretstores"
)

// BuildInfo is stamped into the binary at release time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand assembles the smcreds command tree. cfg is filled from the
// global flags before any subcommand runs.
func NewRootCommand(cfg *config.Config, stores *secretstores.Registry, info BuildInfo) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "smcreds",
		Short: "Turn cloud secret store entries into typed build credentials",
		Long: `smcreds lists secrets from AWS Secrets Manager or Google Cloud Secret
Manager, filters them by tag and turns each into a typed credential
(string, username/password, file, certificate, AWS keys, SSH key).

Secret values are fetched lazily and never written to disk.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			if cfg.Logger == nil {
				cfg.Logger = logging.New(debug, noColor)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		NewListCommand(cfg, stores),
		NewGetCommand(cfg, stores),
		NewDoctorCommand(cfg, stores),
		NewServeCommand(cfg, stores),
		NewCompletionCommand(),
	)
	return rootCmd
}
