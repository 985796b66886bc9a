package pipeline

import (
	"context"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/dispatch"
	"github.com/systmms/smcreds/internal/secretstores"
	"github.com/systmms/smcreds/pkg/credential"
)

// FromConfig creates the clients def names through stores and returns a
// Pipeline configured from def. opts are applied after the configured
// options and may override them.
func FromConfig(ctx context.Context, def *config.Definition, stores *secretstores.Registry, opts ...Option) (*Pipeline, error) {
	chain, err := def.Transformers()
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(def.Clients))
	for i, c := range def.Clients {
		client, err := stores.CreateClient(ctx, c.DisplayName(i), c, int32(def.ListSecrets.PageSize))
		if err != nil {
			closeSources(sources)
			return nil, err
		}
		sources = append(sources, Source{Client: client, Timeout: c.Timeout.Std()})
	}

	base := []Option{
		WithFilters(def.Filters()),
		WithTransformers(chain),
		WithSecretTTL(def.Cache.SecretTTL.Std()),
		WithFanoutLimit(def.Fanout.Limit),
		WithDispatchOptions(
			dispatch.WithTagPrefix(def.TagPrefix),
			dispatch.WithDefaultType(credential.Type(def.DefaultType)),
		),
	}
	return New(sources, append(base, opts...)...), nil
}

func closeSources(sources []Source) {
	_ = (&Pipeline{sources: sources}).Close()
}

// ProviderFromConfig wraps p in a Provider honoring def's cache settings.
func ProviderFromConfig(def *config.Definition, p Runner) *Provider {
	if !def.Cache.Enabled {
		return NewProvider(p)
	}
	return NewProvider(p, WithCache(def.Cache.TTL.Std()))
}
