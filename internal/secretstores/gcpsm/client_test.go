package gcpsm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/systmms/smcreds/internal/secretstores/gcpsm"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/tests/fakes"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, fake *fakes.FakeGCPSecretAPI, cfg gcpsm.Config) *gcpsm.Client {
	t.Helper()
	if cfg.Project == "" {
		cfg.Project = "proj"
	}
	c, err := gcpsm.New(context.Background(), "gcp-test", cfg,
		gcpsm.WithSecretManagerAPI(fake),
		gcpsm.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return c
}

func TestNewRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	_, err := gcpsm.New(context.Background(), "gcp", gcpsm.Config{}, gcpsm.WithSecretManagerAPI(fakes.NewFakeGCPSecretAPI()))
	require.Error(t, err)

	t.Setenv("GCLOUD_PROJECT", "from-env")
	c, err := gcpsm.New(context.Background(), "gcp", gcpsm.Config{}, gcpsm.WithSecretManagerAPI(fakes.NewFakeGCPSecretAPI()))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Project())
	assert.NoError(t, c.Close())
}

func TestListSecretsMapsEntries(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.AddSecret("proj", "db", map[string]string{"smcreds-type": "usernamePassword"}, map[string]string{"description": "database"}, []byte("pw"))
	expired := fake.AddSecret("proj", "old", nil, nil, []byte("x"))
	expired.Expiration = &secretmanagerpb.Secret_ExpireTime{ExpireTime: timestamppb.New(now.Add(-time.Minute))}
	future := fake.AddSecret("proj", "soon", nil, nil, []byte("y"))
	future.Expiration = &secretmanagerpb.Secret_ExpireTime{ExpireTime: timestamppb.New(now.Add(time.Hour))}
	fake.AddSecret("other-proj", "foreign", nil, nil, nil)

	c := newClient(t, fake, gcpsm.Config{})
	page, err := c.ListSecrets(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)

	db := page.Entries[0]
	assert.Equal(t, "projects/proj/secrets/db", db.ID)
	assert.Equal(t, "db", db.Name)
	assert.Equal(t, "database", db.Description)
	assert.Equal(t, map[string]string{"smcreds-type": "usernamePassword"}, db.Tags)
	assert.False(t, db.Deleted())

	assert.True(t, page.Entries[1].Deleted(), "expired secrets count as deleted")
	assert.False(t, page.Entries[2].Deleted())

	require.Len(t, fake.ListRequests, 1)
	assert.Equal(t, "projects/proj", fake.ListRequests[0].GetParent())
	assert.Equal(t, int32(gcpsm.DefaultPageSize), fake.ListRequests[0].GetPageSize())
}

func TestListSecretsLabelFilter(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.AddSecret("proj", "typed", map[string]string{"smcreds-type": "string"}, nil, nil)
	fake.AddSecret("proj", "plain", map[string]string{"team": "ci"}, nil, nil)

	c := newClient(t, fake, gcpsm.Config{PageSize: 1})
	assert.True(t, c.Supports(secretstore.FilterTagKey))
	assert.False(t, c.Supports(secretstore.FilterTagValue))

	filters := []secretstore.Filter{
		{Key: secretstore.FilterTagKey, Values: []string{"smcreds-type", "Invalid:Key"}},
		{Key: secretstore.FilterTagValue, Values: []string{"string"}},
	}
	entries, err := secretstore.NewLister(c).List(context.Background(), filters)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "typed", entries[0].Name)

	assert.Equal(t, "(labels.smcreds-type:*)", fake.ListRequests[0].GetFilter())
}

func TestListSecretsUnsatisfiableFilter(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.AddSecret("proj", "typed", map[string]string{"smcreds-type": "string"}, nil, nil)

	c := newClient(t, fake, gcpsm.Config{})
	page, err := c.ListSecrets(context.Background(), []secretstore.Filter{{Key: secretstore.FilterTagKey, Values: []string{"smcreds:type"}}}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Empty(t, fake.ListRequests, "no call for a filter that matches nothing")
}

func TestListSecretsPagination(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		fake.AddSecret("proj", n, nil, nil, nil)
	}

	entries, err := secretstore.NewLister(newClient(t, fake, gcpsm.Config{PageSize: 2})).List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Len(t, fake.ListRequests, 3)
}

func TestGetSecretValue(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.AddSecret("proj", "db", nil, nil, []byte("hunter2"))

	v, err := newClient(t, fake, gcpsm.Config{}).GetSecretValue(context.Background(), "projects/proj/secrets/db")
	require.NoError(t, err)
	text, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", text)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.AddSecret("proj", "denied", nil, nil, []byte("x"))
	fake.AddError("projects/proj/secrets/denied", fakes.GCPPermissionDeniedError("caller lacks secretmanager.versions.access"))
	fake.AddSecret("proj", "throttled", nil, nil, []byte("x"))
	fake.AddError("projects/proj/secrets/throttled", fakes.GCPResourceExhaustedError())
	c := newClient(t, fake, gcpsm.Config{})

	_, err := c.GetSecretValue(context.Background(), "projects/proj/secrets/missing")
	var nf secretstore.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "projects/proj/secrets/missing", nf.ID)

	_, err = c.GetSecretValue(context.Background(), "projects/proj/secrets/denied")
	var auth secretstore.AuthError
	require.ErrorAs(t, err, &auth)
	assert.Contains(t, auth.Message, "secretmanager.versions.access")

	_, err = c.GetSecretValue(context.Background(), "projects/proj/secrets/throttled")
	require.Error(t, err)
	assert.False(t, errors.As(err, &auth))
	assert.Contains(t, err.Error(), "GCP Secret Manager error")
}

func TestListErrorAbortsListing(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretAPI()
	fake.ListError = fakes.GCPUnauthenticatedError("token expired")

	_, err := secretstore.NewLister(newClient(t, fake, gcpsm.Config{})).List(context.Background(), nil)
	var listErr *secretstore.ListingError
	require.ErrorAs(t, err, &listErr)
	var auth secretstore.AuthError
	require.ErrorAs(t, err, &auth)
}

func TestValidLabelKey(t *testing.T) {
	t.Parallel()

	assert.True(t, gcpsm.ValidLabelKey("smcreds-type"))
	assert.True(t, gcpsm.ValidLabelKey("a_b"))
	assert.False(t, gcpsm.ValidLabelKey("smcreds:type"))
	assert.False(t, gcpsm.ValidLabelKey("Upper"))
	assert.False(t, gcpsm.ValidLabelKey(""))
}
