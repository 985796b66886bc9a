// Package dispatch maps a secret's type tag to the builder that turns it into
// a typed credential.
package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/pkg/credential"
)

// IntegrationFactory builds credentials whose shape is owned by another
// system, such as GitHub App installations. Implementations must be safe for
// concurrent use.
type IntegrationFactory interface {
	Create(spec Spec) (credential.Credential, error)
}

// DeclineObserver is notified for every declined spec.
type DeclineObserver func(t credential.Type, reason string)

// Registry dispatches specs to builders. Builders are registered at startup;
// Create is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	builders     map[credential.Type]Builder
	integrations map[credential.Type]IntegrationFactory

	defaultType credential.Type
	tagPrefix   string
	logger      *logging.Logger
	observer    DeclineObserver
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultType sets the type used when an entry carries no type tag.
func WithDefaultType(t credential.Type) Option {
	return func(r *Registry) {
		r.defaultType = t
	}
}

// WithTagPrefix overrides DefaultTagPrefix.
func WithTagPrefix(prefix string) Option {
	return func(r *Registry) {
		r.tagPrefix = prefix
	}
}

// WithIntegration plugs an external factory in for t.
func WithIntegration(t credential.Type, f IntegrationFactory) Option {
	return func(r *Registry) {
		r.integrations[t] = f
	}
}

// WithDeclineObserver registers a callback for declines.
func WithDeclineObserver(o DeclineObserver) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates a registry with the built-in builders. githubApp is
// always registered and declines unless an integration is supplied.
func NewRegistry(logger *logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Registry{
		builders:     builtinBuilders(),
		integrations: make(map[credential.Type]IntegrationFactory),
		defaultType:  credential.TypeString,
		tagPrefix:    DefaultTagPrefix,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.builders[credential.TypeGitHubApp] = r.integrationBuilder(credential.TypeGitHubApp)
	for t := range r.integrations {
		r.builders[t] = r.integrationBuilder(t)
	}
	return r
}

func (r *Registry) integrationBuilder(t credential.Type) Builder {
	return func(s Spec) (credential.Credential, error) {
		r.mu.RLock()
		f := r.integrations[t]
		r.mu.RUnlock()
		if f == nil {
			return nil, fmt.Errorf("%w: %s", ErrIntegrationUnavailable, t)
		}
		return f.Create(s)
	}
}

// Register adds or replaces the builder for t.
func (r *Registry) Register(t credential.Type, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[t] = b
}

// IsSupported reports whether a builder is registered for t.
func (r *Registry) IsSupported(t credential.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[t]
	return ok
}

// SupportedTypes returns the registered types, sorted.
func (r *Registry) SupportedTypes() []credential.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]credential.Type, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// TagPrefix returns the prefix reserved tag names are read under.
func (r *Registry) TagPrefix() string {
	return r.tagPrefix
}

// TypeOf returns the type an entry with tags dispatches to.
func (r *Registry) TypeOf(tags map[string]string) credential.Type {
	if v, ok := tags[r.tagPrefix+TagType]; ok && v != "" {
		return credential.Type(v)
	}
	return r.defaultType
}

// Create dispatches spec. When spec.Type is empty it is derived from the
// spec's tags. A decline returns an error wrapping ErrDeclined, already
// logged; any other error is a build failure.
func (r *Registry) Create(spec Spec) (credential.Credential, error) {
	if spec.TagPrefix == "" {
		spec.TagPrefix = r.tagPrefix
	}
	if spec.Type == "" {
		spec.Type = r.TypeOf(spec.Tags)
	}

	r.mu.RLock()
	build, ok := r.builders[spec.Type]
	r.mu.RUnlock()

	var (
		cred credential.Credential
		err  error
	)
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnsupportedType, spec.Type)
	} else {
		cred, err = build(spec)
	}

	if err != nil {
		if IsDeclined(err) {
			r.declined(spec, err)
			return nil, fmt.Errorf("credential %s: %w", spec.ID, err)
		}
		return nil, fmt.Errorf("failed to build %s credential %s: %w", spec.Type, spec.ID, err)
	}
	if cred == nil {
		err = fmt.Errorf("%w: builder returned no credential", ErrDeclined)
		r.declined(spec, err)
		return nil, fmt.Errorf("credential %s: %w", spec.ID, err)
	}
	return cred, nil
}

func (r *Registry) declined(spec Spec, err error) {
	reason := DeclineReason(err)
	if reason == "unsupported_type" {
		r.logger.Debug("Skipping %s (%s): %v", spec.ID, spec.StoreID, err)
	} else {
		r.logger.Warn("Skipping %s (%s): %v", spec.ID, spec.StoreID, err)
	}
	if r.observer != nil {
		r.observer(spec.Type, reason)
	}
}
