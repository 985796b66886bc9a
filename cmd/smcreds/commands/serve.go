package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/metrics"
	"github.com/systmms/smcreds/internal/pipeline"
	"github.com/systmms/smcreds/internal/secretstores"
	"github.com/systmms/smcreds/internal/server"
)

func NewServeCommand(cfg *config.Config, stores *secretstores.Registry) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve credential metadata over a read-only HTTP API",
		Long: `Serve the credential list over HTTP until interrupted.

Routes:
  GET /credentials       metadata of every credential
  GET /credentials/{id}  metadata of one credential
  GET /health            liveness
  GET /metrics           Prometheus metrics (when metrics.enabled)

Secret values are never served. Write methods are rejected because
credentials are managed in the secret store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := cfg.Load(); err != nil {
				return err
			}
			def := cfg.Definition

			var opts []pipeline.Option
			if def.Metrics.Enabled {
				opts = append(opts, pipeline.WithMetrics(metrics.Default()))
			}
			p, err := loadPipeline(ctx, cfg, stores, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			provider := pipeline.ProviderFromConfig(def, p)
			creds, err := provider.Credentials(ctx)
			if err != nil {
				return explain(def, err)
			}
			cfg.Logger.Info("Loaded %d credential(s)", len(creds))

			serverCfg := server.DefaultConfig()
			serverCfg.Addr = def.Metrics.Addr
			if addr != "" {
				serverCfg.Addr = addr
			}
			serverCfg.MetricsEnabled = def.Metrics.Enabled

			srv := server.New(serverCfg, provider,
				server.WithGatherer(prometheus.DefaultGatherer),
				server.WithLogger(cfg.Logger.Named("http")),
			)
			if err := srv.Start(); err != nil {
				return err
			}

			<-ctx.Done()
			cfg.Logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: metrics.addr from the config)")
	return cmd
}
