package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/pkg/transform"
	"github.com/systmms/smcreds/tests/testutil"
)

func TestBuiltConfigLoads(t *testing.T) {
	t.Parallel()

	builder := testutil.NewTestConfig(t).
		WithTagPrefix("team:").
		WithClient(config.ClientConfig{
			Type:    config.ClientAWSSecretsManager,
			Name:    "ci",
			Region:  "us-east-1",
			Timeout: config.Duration(10 * time.Second),
		}).
		WithFilter(string(secretstore.FilterTagKey), "team:type").
		WithNameTransform(transform.Spec{Type: transform.KindRemovePrefixes, Prefixes: []string{"ci/", "build/"}}).
		WithDescriptionTransform(transform.Spec{Type: transform.KindHide}).
		WithCache(5*time.Minute, 30*time.Second)

	assert.Len(t, builder.Build().Clients, 1)

	logger := testutil.NewTestLogger(t)
	cfg := &config.Config{Path: builder.Write(), Logger: logger.Logger}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "team:", def.TagPrefix)
	assert.Equal(t, "ci", def.Clients[0].DisplayName(0))
	assert.Equal(t, 10*time.Second, def.Clients[0].Timeout.Std())
	assert.Equal(t, []secretstore.Filter{{Key: secretstore.FilterTagKey, Values: []string{"team:type"}}}, def.Filters())
	assert.True(t, def.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, def.Cache.TTL.Std())
	assert.Equal(t, 30*time.Second, def.Cache.SecretTTL.Std())

	chain, err := def.Transformers()
	require.NoError(t, err)
	name, desc := chain.Apply("build/deploy", "deploy key")
	assert.Equal(t, "deploy", name)
	assert.Equal(t, "", desc)
}

func TestHandWrittenConfigRejected(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: testutil.WriteTestConfig(t, "version: 2\nclients: []\n")}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}
