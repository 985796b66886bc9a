package secretstores

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/smcreds/internal/config"
	"github.com/systmms/smcreds/internal/secretstores/awssm"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/tests/fakes"
)

func TestSecretStoreRegistry(t *testing.T) {
	registry := NewRegistry()

	t.Run("GetSupportedTypes", func(t *testing.T) {
		assert.Equal(t, []string{"aws.secretsmanager", "gcp.secretmanager"}, registry.GetSupportedTypes())
	})

	t.Run("IsSupported", func(t *testing.T) {
		assert.True(t, registry.IsSupported("aws.secretsmanager"))
		assert.True(t, registry.IsSupported("gcp.secretmanager"))
		assert.False(t, registry.IsSupported("azure.keyvault"))
		assert.False(t, registry.IsSupported("unknown"))
	})

	t.Run("CreateAWSClient", func(t *testing.T) {
		client, err := registry.CreateClient(context.Background(), "prod", config.ClientConfig{
			Type:            "aws.secretsmanager",
			Region:          "eu-west-1",
			Endpoint:        "http://localhost:4566",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		}, 25)
		require.NoError(t, err)

		awsClient, ok := client.(*awssm.Client)
		require.True(t, ok)
		assert.Equal(t, "prod", awsClient.Name())
		assert.Equal(t, "eu-west-1", awsClient.Region())
	})

	t.Run("CreateGCPClientRequiresProject", func(t *testing.T) {
		t.Setenv("GOOGLE_CLOUD_PROJECT", "")
		t.Setenv("GCLOUD_PROJECT", "")
		t.Setenv("GCP_PROJECT", "")

		_, err := registry.CreateClient(context.Background(), "gcp", config.ClientConfig{Type: "gcp.secretmanager"}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create gcp.secretmanager client gcp")
		assert.Contains(t, err.Error(), "project is required")
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := registry.CreateClient(context.Background(), "v", config.ClientConfig{Type: "vault"}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown client type: vault")
	})
}

func TestRegistryCustomFactory(t *testing.T) {
	registry := NewRegistry()
	store := fakes.NewFakeStore("memory")

	var gotPageSize int32
	registry.Register("memory", func(_ context.Context, name string, _ config.ClientConfig, pageSize int32) (secretstore.Client, error) {
		gotPageSize = pageSize
		return store, nil
	})

	client, err := registry.CreateClient(context.Background(), "mem", config.ClientConfig{Type: "memory"}, 10)
	require.NoError(t, err)
	assert.Same(t, store, client)
	assert.Equal(t, int32(10), gotPageSize)
	assert.Contains(t, registry.GetSupportedTypes(), "memory")

	errBoom := errors.New("boom")
	registry.Register("broken", func(context.Context, string, config.ClientConfig, int32) (secretstore.Client, error) {
		return nil, errBoom
	})
	_, err = registry.CreateClient(context.Background(), "b", config.ClientConfig{Type: "broken"}, 0)
	assert.ErrorIs(t, err, errBoom)
}
