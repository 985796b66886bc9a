package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/secretstores"
	"github.com/systmms/smcreds/internal/server"
)

func NewListCommand(cfg *config.Config, stores *secretstores.Registry) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the credentials built from the secret stores",
		Long: `List every credential smcreds builds from the configured secret stores.

Only metadata is shown. Secret values are never read by this command.

Examples:
  smcreds list
  smcreds list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadPipeline(ctx, cfg, stores)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			creds, err := p.Run(ctx)
			if err != nil {
				return explain(cfg.Definition, err)
			}

			views := make([]server.CredentialView, 0, len(creds))
			for _, c := range creds {
				views = append(views, server.NewCredentialView(c))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(views); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			if len(views) == 0 {
				cfg.Logger.Warn("No credentials found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTORE ID\tDESCRIPTION")
			for _, v := range views {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Type, v.StoreID, v.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
