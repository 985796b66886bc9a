package commands

import (
	"context"
	"errors"

	"github.com/systmms/smcreds/internal/config"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/pipeline"
	"github.com/systmms/smcreds/internal/secretstores"
	"github.com/systmms/smcreds/pkg/secretstore"
)

// loadPipeline loads the configuration unless already loaded and creates
// its clients.
func loadPipeline(ctx context.Context, cfg *config.Config, stores *secretstores.Registry, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if cfg.Definition == nil {
		if err := cfg.Load(); err != nil {
			return nil, err
		}
	}

	opts = append([]pipeline.Option{pipeline.WithLogger(cfg.Logger)}, opts...)
	p, err := pipeline.FromConfig(ctx, cfg.Definition, stores, opts...)
	if err != nil {
		return nil, smerrors.UserError{
			Message:    "Failed to create secret store clients",
			Details:    err.Error(),
			Suggestion: "Run 'smcreds doctor' to check each client",
			Err:        err,
		}
	}
	return p, nil
}

// explain attaches store specific suggestions to a run failure.
func explain(def *config.Definition, err error) error {
	var listErr *secretstore.ListingError
	if !errors.As(err, &listErr) {
		return err
	}
	for i, c := range def.Clients {
		if c.DisplayName(i) == listErr.Store {
			return smerrors.StoreError(c.Type, "listing", err)
		}
	}
	return err
}
