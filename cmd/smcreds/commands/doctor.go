package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/smcreds/internal/config"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/secretstores"
)

// defaultProbeTimeout bounds a client probe when the client has no timeout.
const defaultProbeTimeout = 30 * time.Second

// ClientHealth is the outcome of probing one client.
type ClientHealth struct {
	Name       string
	Type       string
	Status     string
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config, stores *secretstores.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and secret store connectivity",
		Long: `Verify that smcreds is properly configured and every client is reachable.

This command checks:
- Configuration file validity
- Client creation (credentials, project, region)
- One page of secret listing per client, with the configured filters`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking smcreds configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded successfully")

			results := checkClients(cmd.Context(), cfg.Definition, stores)
			printHealth(cmd.OutOrStdout(), results)

			failed := 0
			for _, r := range results {
				if r.Status != "healthy" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d client(s) failed the check", failed, len(results))
			}
			cfg.Logger.Info("All clients are healthy")
			return nil
		},
	}
	return cmd
}

func checkClients(ctx context.Context, def *config.Definition, stores *secretstores.Registry) []ClientHealth {
	filters := def.Filters()
	results := make([]ClientHealth, 0, len(def.Clients))

	for i, c := range def.Clients {
		health := ClientHealth{Name: c.DisplayName(i), Type: c.Type}

		client, err := stores.CreateClient(ctx, health.Name, c, int32(def.ListSecrets.PageSize))
		if err != nil {
			results = append(results, unhealthy(health, "create", err))
			continue
		}

		timeout := c.Timeout.Std()
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		page, err := client.ListSecrets(probeCtx, filters, "")
		cancel()
		if closer, ok := client.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			results = append(results, unhealthy(health, "listing", err))
			continue
		}

		health.Status = "healthy"
		health.Message = fmt.Sprintf("%d secret(s) on the first page", len(page.Entries))
		if page.NextToken != "" {
			health.Message += ", more available"
		}
		results = append(results, health)
	}
	return results
}

func unhealthy(h ClientHealth, operation string, err error) ClientHealth {
	h.Status = "error"
	h.Message = err.Error()
	if smerrors.IsRetryable(err) {
		h.Status = "degraded"
	}

	var userErr smerrors.UserError
	if errors.As(smerrors.StoreError(h.Type, operation, err), &userErr) {
		h.Suggestion = userErr.Suggestion
	}
	return h
}

func printHealth(out io.Writer, results []ClientHealth) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLIENT\tTYPE\tSTATUS\tDETAILS")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Type, r.Status, r.Message)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s: 💡 %s\n", r.Name, r.Suggestion)
		}
	}
}
