// Package pipeline turns the secrets listed from one or more stores into
// typed credentials.
//
// A run lists every configured client in order, drops duplicate store ids,
// renames entries through the configured transformers and builds one
// credential per entry concurrently. Secret payloads are not read during a
// run: every credential carries a lazy value bound to its store id.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/systmms/smcreds/internal/dispatch"
	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/internal/metrics"
	"github.com/systmms/smcreds/pkg/credential"
	"github.com/systmms/smcreds/pkg/fanout"
	"github.com/systmms/smcreds/pkg/lazy"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/pkg/transform"
)

// Source is one client to list, with an optional per-listing timeout.
type Source struct {
	Client  secretstore.Client
	Timeout time.Duration
}

// Pipeline builds credentials from its sources. It is safe for concurrent
// use; each Run is independent.
type Pipeline struct {
	sources      []Source
	filters      []secretstore.Filter
	chain        transform.Chain
	registry     *dispatch.Registry
	dispatchOpts []dispatch.Option
	secretTTL    time.Duration
	fanoutLimit  int
	logger       *logging.Logger
	metrics      *metrics.Recorder
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFilters sets the listing criteria applied to every source.
func WithFilters(filters []secretstore.Filter) Option {
	return func(p *Pipeline) {
		p.filters = filters
	}
}

// WithTransformers sets the name and description transformers.
func WithTransformers(chain transform.Chain) Option {
	return func(p *Pipeline) {
		p.chain = chain
	}
}

// WithRegistry sets the credential factory. It replaces any options given
// through WithDispatchOptions.
func WithRegistry(r *dispatch.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithDispatchOptions configures the registry the pipeline builds when none
// is given with WithRegistry.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(p *Pipeline) {
		p.dispatchOpts = append(p.dispatchOpts, opts...)
	}
}

// WithSecretTTL makes fetched secret payloads expire after ttl.
func WithSecretTTL(ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.secretTTL = ttl
	}
}

// WithFanoutLimit bounds concurrent credential builds.
func WithFanoutLimit(n int) Option {
	return func(p *Pipeline) {
		p.fanoutLimit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock overrides the clock used for secret expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline over sources.
func New(sources []Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources: sources,
		chain:   transform.NewChain(transform.Identity{}, transform.Identity{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.registry == nil {
		dopts := append([]dispatch.Option{}, p.dispatchOpts...)
		if p.metrics != nil {
			m := p.metrics
			dopts = append(dopts, dispatch.WithDeclineObserver(func(_ credential.Type, reason string) {
				m.Declined(reason)
			}))
		}
		p.registry = dispatch.NewRegistry(p.logger.Named("dispatch"), dopts...)
	}
	return p
}

// Registry returns the credential factory in use.
func (p *Pipeline) Registry() *dispatch.Registry {
	return p.registry
}

// Sources returns the configured sources.
func (p *Pipeline) Sources() []Source {
	return append([]Source(nil), p.sources...)
}

type listed struct {
	entry  secretstore.Entry
	client secretstore.Client
}

// Run lists all sources and builds the credentials, in source order then
// listing order. Declined entries are dropped. Any listing or build failure
// fails the whole run.
func (p *Pipeline) Run(ctx context.Context) ([]credential.Credential, error) {
	start := time.Now()
	defer p.metrics.ObserveRun(start)

	entries, err := p.list(ctx)
	if err != nil {
		return nil, err
	}

	specs := p.specs(entries)
	ops := make([]fanout.Op[credential.Credential], len(specs))
	for i, spec := range specs {
		spec := spec
		ops[i] = func(context.Context) (credential.Credential, error) {
			cred, err := p.registry.Create(spec)
			if dispatch.IsDeclined(err) {
				return nil, nil
			}
			return cred, err
		}
	}

	built, err := fanout.RunAll(ctx, ops, fanout.WithLimit(p.fanoutLimit))
	if err != nil {
		return nil, err
	}

	creds := make([]credential.Credential, 0, len(built))
	byType := make(map[string]int)
	for _, c := range built {
		if c == nil {
			continue
		}
		creds = append(creds, c)
		byType[string(c.Type())]++
	}
	p.metrics.SetCredentials(byType)

	p.logger.Debug("Built %d credential(s) from %d entries in %s", len(creds), len(specs), time.Since(start).Round(time.Millisecond))
	return creds, nil
}

func (p *Pipeline) list(ctx context.Context) ([]listed, error) {
	var all []listed
	for _, src := range p.sources {
		entries, err := p.listSource(ctx, src)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			all = append(all, listed{entry: e, client: src.Client})
		}
	}
	return all, nil
}

func (p *Pipeline) listSource(ctx context.Context, src Source) ([]secretstore.Entry, error) {
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	lister := secretstore.NewLister(src.Client, secretstore.WithPageObserver(func(store string, page, n int) {
		p.metrics.ListPage(store)
		p.logger.Debug("Listed page %d of %s: %d entries", page, store, n)
	}))
	entries, err := lister.List(ctx, p.filters)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Found %d matching secret(s) in %s", len(entries), src.Client.Name())
	return entries, nil
}

// specs dedupes by store id, applies the transformers and binds each entry's
// secret to a lazy fetch.
func (p *Pipeline) specs(entries []listed) []dispatch.Spec {
	seen := make(map[string]struct{}, len(entries))
	ids := make(map[string]string, len(entries))
	specs := make([]dispatch.Spec, 0, len(entries))

	for _, l := range entries {
		e := l.entry
		if _, dup := seen[e.ID]; dup {
			p.logger.Debug("Ignoring duplicate secret %s from %s", e.ID, l.client.Name())
			continue
		}
		seen[e.ID] = struct{}{}

		id, desc := p.chain.Apply(e.Name, e.Description)
		if id == "" {
			p.logger.Warn("Skipping %s: name transformation produced an empty credential id", e.ID)
			continue
		}
		if other, clash := ids[id]; clash {
			p.logger.Warn("Credential id %s is produced by both %s and %s", id, other, e.ID)
		} else {
			ids[id] = e.ID
		}

		specs = append(specs, dispatch.Spec{
			ID:          id,
			StoreID:     e.ID,
			Name:        e.Name,
			Description: desc,
			Tags:        e.Tags,
			Secret:      p.secret(l.client, id, e.ID),
		})
	}
	return specs
}

func (p *Pipeline) secret(client secretstore.Client, credentialID, storeID string) *credential.Secret {
	return lazy.NewExpiring(func(ctx context.Context) (secretstore.SecretValue, error) {
		v, err := client.GetSecretValue(ctx, storeID)
		if err != nil {
			p.metrics.SecretFetch(metrics.FetchError)
			p.logger.Debug("Fetching %s failed: %v", storeID, err)
			return secretstore.SecretValue{}, &credential.SecretUnavailableError{ID: credentialID, Err: err}
		}
		p.metrics.SecretFetch(metrics.FetchSuccess)
		return v, nil
	}, p.secretTTL, lazy.WithClock(p.now))
}

// Close releases clients that hold connections.
func (p *Pipeline) Close() error {
	var result *multierror.Error
	for _, src := range p.sources {
		if c, ok := src.Client.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing %s: %w", src.Client.Name(), err))
			}
		}
	}
	return result.ErrorOrNil()
}
