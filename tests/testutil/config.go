// Package testutil provides shared test helpers for smcreds tests.
//
// It contains a configuration builder that writes smcreds.yaml files and a
// logger that captures output for assertions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/pkg/transform"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder builds smcreds configurations programmatically.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithClient(config.ClientConfig{Type: config.ClientAWSSecretsManager, Name: "ci"}).
//	    WithNameTransform(transform.Spec{Type: transform.KindRemovePrefix, Prefix: "ci/"}).
//	    Write()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder holding a minimal definition (version: 1,
// no clients).
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config:  &config.Definition{Version: 1},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithClient appends a secret store client.
func (b *TestConfigBuilder) WithClient(c config.ClientConfig) *TestConfigBuilder {
	b.config.Clients = append(b.config.Clients, c)
	return b
}

// WithTagPrefix sets the tag prefix.
func (b *TestConfigBuilder) WithTagPrefix(prefix string) *TestConfigBuilder {
	b.config.TagPrefix = prefix
	return b
}

// WithFilter appends a listing filter.
func (b *TestConfigBuilder) WithFilter(key string, values ...string) *TestConfigBuilder {
	b.config.ListSecrets.Filters = append(b.config.ListSecrets.Filters, config.FilterConfig{
		Key:    key,
		Values: values,
	})
	return b
}

// WithNameTransform sets the credential ID transformer.
func (b *TestConfigBuilder) WithNameTransform(spec transform.Spec) *TestConfigBuilder {
	b.config.Transformations.Name = spec
	return b
}

// WithDescriptionTransform sets the description transformer.
func (b *TestConfigBuilder) WithDescriptionTransform(spec transform.Spec) *TestConfigBuilder {
	b.config.Transformations.Description = spec
	return b
}

// WithCache enables list caching with the given TTL.
func (b *TestConfigBuilder) WithCache(ttl, secretTTL time.Duration) *TestConfigBuilder {
	b.config.Cache = config.CacheConfig{
		Enabled:   true,
		TTL:       config.Duration(ttl),
		SecretTTL: config.Duration(secretTTL),
	}
	return b
}

// Build returns the definition as built so far. Defaults are not applied.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.config
}

// Write serializes the definition to smcreds.yaml in a temporary directory
// and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.config)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	return writeFile(b.t, b.tempDir, data)
}

// WriteTestConfig writes a hand-written YAML document to a temporary
// smcreds.yaml and returns its path.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), []byte(yamlContent))
}

func writeFile(t *testing.T, dir string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, config.DefaultPath)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
