package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/smcreds/pkg/credential"
	"github.com/systmms/smcreds/pkg/lazy"
)

// ErrReadOnly is returned by every mutation on a Provider.
var ErrReadOnly = errors.New("credentials are read-only: manage them in the secret store")

// ErrCredentialNotFound is returned by Lookup for an unknown id.
var ErrCredentialNotFound = errors.New("credential not found")

// Runner produces a credential list. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) ([]credential.Credential, error)
}

// Provider serves the credential list to a host, optionally memoizing it.
type Provider struct {
	runner Runner
	cached *lazy.Value[[]credential.Credential]
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	cache bool
	ttl   time.Duration
	clock []lazy.Option
}

// WithCache memoizes the list for ttl. A ttl of zero keeps it until Refresh.
func WithCache(ttl time.Duration) ProviderOption {
	return func(o *providerOptions) {
		o.cache = true
		o.ttl = ttl
	}
}

// WithProviderClock overrides the clock used for cache expiry.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(o *providerOptions) {
		o.clock = append(o.clock, lazy.WithClock(now))
	}
}

// NewProvider creates a Provider over r. Without WithCache every call runs r.
func NewProvider(r Runner, opts ...ProviderOption) *Provider {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := &Provider{runner: r}
	if o.cache {
		p.cached = lazy.NewExpiring(r.Run, o.ttl, o.clock...)
	}
	return p
}

// Credentials returns the current credential list. The returned slice is
// the caller's own.
func (p *Provider) Credentials(ctx context.Context) ([]credential.Credential, error) {
	var (
		creds []credential.Credential
		err   error
	)
	if p.cached != nil {
		creds, err = p.cached.Get(ctx)
	} else {
		creds, err = p.runner.Run(ctx)
	}
	if err != nil {
		return nil, err
	}
	return append([]credential.Credential(nil), creds...), nil
}

// Lookup returns the first credential with the given id.
func (p *Provider) Lookup(ctx context.Context, id string) (credential.Credential, error) {
	creds, err := p.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range creds {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
}

// Snapshot returns a copy of the credential that no longer depends on the
// secret store.
func (p *Provider) Snapshot(ctx context.Context, id string) (credential.Credential, error) {
	c, err := p.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(ctx)
}

// Refresh drops the memoized list.
func (p *Provider) Refresh() {
	if p.cached != nil {
		p.cached.Invalidate()
	}
}

// Create always fails with ErrReadOnly.
func (p *Provider) Create(_ context.Context, c credential.Credential) error {
	return fmt.Errorf("cannot create %s: %w", c.ID(), ErrReadOnly)
}

// Update always fails with ErrReadOnly.
func (p *Provider) Update(_ context.Context, c credential.Credential) error {
	return fmt.Errorf("cannot update %s: %w", c.ID(), ErrReadOnly)
}

// Delete always fails with ErrReadOnly.
func (p *Provider) Delete(_ context.Context, id string) error {
	return fmt.Errorf("cannot delete %s: %w", id, ErrReadOnly)
}
