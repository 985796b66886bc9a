// Package secretstores builds secretstore.Client implementations from
// configuration.
package secretstores

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/secretstores/awssm"
	"github.com/systmms/smcreds/internal/secretstores/gcpsm"
	"github.com/systmms/smcreds/pkg/secretstore"
)

// Factory creates a client named name from its configuration. pageSize is
// the listing page size, zero for the backend default.
type Factory func(ctx context.Context, name string, cfg config.ClientConfig, pageSize int32) (secretstore.Client, error)

// Registry maps client types to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in client types
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(config.ClientAWSSecretsManager, newAWS)
	r.Register(config.ClientGCPSecretManager, newGCP)
	return r
}

// Register adds or replaces the factory for a client type
func (r *Registry) Register(clientType string, f Factory) {
	r.factories[clientType] = f
}

// IsSupported checks if a client type is supported
func (r *Registry) IsSupported(clientType string) bool {
	_, ok := r.factories[clientType]
	return ok
}

// GetSupportedTypes returns the supported client types, sorted
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CreateClient creates a client from configuration
func (r *Registry) CreateClient(ctx context.Context, name string, cfg config.ClientConfig, pageSize int32) (secretstore.Client, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown client type: %s", cfg.Type)
	}
	client, err := f(ctx, name, cfg, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client %s: %w", cfg.Type, name, err)
	}
	return client, nil
}

func newAWS(ctx context.Context, name string, cfg config.ClientConfig, pageSize int32) (secretstore.Client, error) {
	client, err := awssm.New(ctx, name, awssm.Config{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		RoleARN:         cfg.RoleARN,
		ExternalID:      cfg.ExternalID,
		SessionDuration: cfg.SessionDuration.Std(),
		PageSize:        pageSize,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newGCP(ctx context.Context, name string, cfg config.ClientConfig, pageSize int32) (secretstore.Client, error) {
	client, err := gcpsm.New(ctx, name, gcpsm.Config{
		Project:                   cfg.Project,
		CredentialsFile:           cfg.CredentialsFile,
		ImpersonateServiceAccount: cfg.ImpersonateServiceAccount,
		PageSize:                  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
