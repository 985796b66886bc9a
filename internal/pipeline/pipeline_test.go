package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/smcreds/internal/dispatch"
	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/internal/metrics"
	"github.com/systmms/smcreds/internal/pipeline"
	"github.com/systmms/smcreds/pkg/credential"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/pkg/transform"
	"github.com/systmms/smcreds/tests/fakes"
)

var deletedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func ciStore() *fakes.FakeStore {
	return fakes.NewFakeStore("ci").
		WithSecret(fakes.Secret{
			Name:        "ci/db",
			Description: "database login",
			Tags:        map[string]string{"smcreds:type": "usernamePassword", "smcreds:username": "admin"},
			Value:       "s3cr3t",
		}).
		WithSecret(fakes.Secret{Name: "ci/token", Value: "tok"}).
		WithSecret(fakes.Secret{
			Name:  "ci/ticket",
			Tags:  map[string]string{"smcreds:type": "kerberosTicket"},
			Value: "x",
		}).
		WithSecret(fakes.Secret{Name: "ci/old", Value: "gone", DeletedAt: &deletedAt})
}

func ids(creds []credential.Credential) []string {
	out := make([]string, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.ID())
	}
	return out
}

func TestRunBuildsTypedCredentials(t *testing.T) {
	t.Parallel()

	store := ciStore()
	p := pipeline.New(
		[]pipeline.Source{{Client: store}},
		pipeline.WithTransformers(transform.NewChain(transform.NewRemovePrefix("ci/"), transform.Identity{})),
	)

	creds, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "token"}, ids(creds))
	assert.Equal(t, 0, store.TotalGetCalls(), "building must not fetch secrets")

	up, ok := creds[0].(*credential.UsernamePassword)
	require.True(t, ok)
	assert.Equal(t, "admin", up.Username())
	assert.Equal(t, "database login", up.Description())
	assert.Equal(t, fakes.ARN("ci/db"), up.StoreID())

	for i := 0; i < 3; i++ {
		pw, err := up.Password(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", pw)
	}
	assert.Equal(t, 1, store.GetCalls(fakes.ARN("ci/db")))

	str, ok := creds[1].(*credential.String)
	require.True(t, ok)
	assert.Equal(t, credential.TypeString, str.Type())
	got, err := str.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestRunExcludesDeletedAcrossPages(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("paged").WithPageSize(2)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		s := fakes.Secret{Name: name, Value: name}
		if i%2 == 1 {
			s.DeletedAt = &deletedAt
		}
		store.WithSecret(s)
	}

	creds, err := pipeline.New([]pipeline.Source{{Client: store}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, ids(creds))
	assert.Equal(t, 3, store.ListCalls())
}

func TestRunAppliesFilters(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("aws").
		WithSecret(fakes.Secret{Name: "tagged", Tags: map[string]string{"smcreds:type": "string"}}).
		WithSecret(fakes.Secret{Name: "untagged"})

	p := pipeline.New([]pipeline.Source{{Client: store}}, pipeline.WithFilters([]secretstore.Filter{
		{Key: secretstore.FilterTagKey, Values: []string{"smcreds:type"}},
	}))
	creds, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tagged"}, ids(creds))
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	p := pipeline.New([]pipeline.Source{{Client: ciStore()}})

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestRunDedupesByStoreID(t *testing.T) {
	t.Parallel()

	shared := fakes.Secret{ID: "arn:shared", Name: "shared", Value: "first"}
	first := fakes.NewFakeStore("first").WithSecret(shared)
	second := fakes.NewFakeStore("second").
		WithSecret(fakes.Secret{ID: "arn:shared", Name: "shared-copy", Value: "second"}).
		WithSecret(fakes.Secret{Name: "other", Value: "o"})

	creds, err := pipeline.New([]pipeline.Source{{Client: first}, {Client: second}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "other"}, ids(creds))

	v, err := creds[0].(*credential.String).Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, 0, second.GetCalls("arn:shared"))
}

func TestRunWarnsOnIDCollision(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := fakes.NewFakeStore("aws").
		WithSecret(fakes.Secret{Name: "team-a/deploy"}).
		WithSecret(fakes.Secret{Name: "team-b/deploy"})

	p := pipeline.New([]pipeline.Source{{Client: store}},
		pipeline.WithLogger(logging.NewWithWriter(&buf, false, true)),
		pipeline.WithTransformers(transform.NewChain(
			transform.NewRemovePrefixes([]string{"team-a/", "team-b/"}), transform.Identity{},
		)),
	)

	creds, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy", "deploy"}, ids(creds))
	assert.Contains(t, buf.String(), "Credential id deploy is produced by both "+fakes.ARN("team-a/deploy")+" and "+fakes.ARN("team-b/deploy"))
}

func TestRunSkipsEmptyIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := fakes.NewFakeStore("aws").
		WithSecret(fakes.Secret{Name: "ci/"}).
		WithSecret(fakes.Secret{Name: "ci/kept"})

	p := pipeline.New([]pipeline.Source{{Client: store}},
		pipeline.WithLogger(logging.NewWithWriter(&buf, false, true)),
		pipeline.WithTransformers(transform.NewChain(transform.NewRemovePrefix("ci/"), transform.Hide{})),
	)

	creds, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, ids(creds))
	assert.Equal(t, "", creds[0].Description())
	assert.Contains(t, buf.String(), "empty credential id")
}

func TestRunListingFailureAborts(t *testing.T) {
	t.Parallel()

	errThrottled := errors.New("throttled")
	good := ciStore()
	bad := fakes.NewFakeStore("bad").
		WithPageSize(1).
		WithSecret(fakes.Secret{Name: "x"}).
		WithSecret(fakes.Secret{Name: "y"}).
		WithListError(1, errThrottled)

	creds, err := pipeline.New([]pipeline.Source{{Client: good}, {Client: bad}}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, creds, "no partial result")
	assert.ErrorIs(t, err, errThrottled)

	var listErr *secretstore.ListingError
	require.True(t, errors.As(err, &listErr))
	assert.Equal(t, "bad", listErr.Store)
	assert.Equal(t, 1, listErr.Page)
}

func TestRunBuildFailureAborts(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken builder")
	registry := dispatch.NewRegistry(nil)
	registry.Register("broken", func(dispatch.Spec) (credential.Credential, error) {
		return nil, errBroken
	})

	store := ciStore().WithSecret(fakes.Secret{Name: "ci/bad", Tags: map[string]string{"smcreds:type": "broken"}})
	creds, err := pipeline.New([]pipeline.Source{{Client: store}}, pipeline.WithRegistry(registry)).Run(context.Background())
	require.ErrorIs(t, err, errBroken)
	assert.Nil(t, creds)
	assert.False(t, dispatch.IsDeclined(err))
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.New([]pipeline.Source{{Client: ciStore()}}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSecretFetchFailureSurfacesLazily(t *testing.T) {
	t.Parallel()

	errDenied := secretstore.AuthError{Store: "ci", Message: "access denied"}
	store := fakes.NewFakeStore("ci").
		WithSecret(fakes.Secret{Name: "token", Value: "recovered"}).
		WithGetError(fakes.ARN("token"), errDenied)

	creds, err := pipeline.New([]pipeline.Source{{Client: store}}).Run(context.Background())
	require.NoError(t, err, "fetch failures never fail the run")
	require.Len(t, creds, 1)

	str := creds[0].(*credential.String)
	_, err = str.Secret(context.Background())
	var unavailable *credential.SecretUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "token", unavailable.ID)
	assert.ErrorIs(t, err, errDenied)

	store.ClearGetError(fakes.ARN("token"))
	v, err := str.Secret(context.Background())
	require.NoError(t, err, "failures are not cached")
	assert.Equal(t, "recovered", v)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSecretTTLAndSnapshot(t *testing.T) {
	t.Parallel()

	clk := &clock{now: deletedAt}
	store := fakes.NewFakeStore("ci").WithSecret(fakes.Secret{Name: "token", Value: "v1"})
	p := pipeline.New([]pipeline.Source{{Client: store}},
		pipeline.WithSecretTTL(time.Minute),
		pipeline.WithClock(clk.Now),
	)

	creds, err := p.Run(context.Background())
	require.NoError(t, err)
	str := creds[0].(*credential.String)

	v, err := str.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	snap, err := str.Snapshot(context.Background())
	require.NoError(t, err)

	store.SetValue(fakes.ARN("token"), "v2")
	clk.Advance(2 * time.Minute)

	v, err = str.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", v, "expired secret is fetched again")
	assert.Equal(t, 2, store.GetCalls(fakes.ARN("token")))

	store.WithGetError(fakes.ARN("token"), errors.New("store gone"))
	v, err = snap.(*credential.String).Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "snapshot keeps the captured value")
	assert.Equal(t, 2, store.GetCalls(fakes.ARN("token")))
}

func TestRunRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	store := ciStore().WithPageSize(2)

	p := pipeline.New([]pipeline.Source{{Client: store}}, pipeline.WithMetrics(rec), pipeline.WithFanoutLimit(2))
	creds, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = creds[1].(*credential.String).Secret(context.Background())
	require.NoError(t, err)

	expected := `
# HELP smcreds_declined_total Total number of entries declined by the credential factory, by reason
# TYPE smcreds_declined_total counter
smcreds_declined_total{reason="unsupported_type"} 1
# HELP smcreds_list_pages_total Total number of secret listing pages read, by client
# TYPE smcreds_list_pages_total counter
smcreds_list_pages_total{client="ci"} 2
# HELP smcreds_secret_fetch_total Total number of secret value fetches, by result
# TYPE smcreds_secret_fetch_total counter
smcreds_secret_fetch_total{result="success"} 1
# HELP smcreds_credentials Number of credentials produced by the last run, by type
# TYPE smcreds_credentials gauge
smcreds_credentials{type="string"} 1
smcreds_credentials{type="usernamePassword"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"smcreds_declined_total", "smcreds_list_pages_total", "smcreds_secret_fetch_total", "smcreds_credentials"))

	count, err := testutil.GatherAndCount(reg, "smcreds_pipeline_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type closingStore struct {
	*fakes.FakeStore
	closed bool
	err    error
}

func (c *closingStore) Close() error {
	c.closed = true
	return c.err
}

func TestClose(t *testing.T) {
	t.Parallel()

	ok := &closingStore{FakeStore: fakes.NewFakeStore("ok")}
	failing := &closingStore{FakeStore: fakes.NewFakeStore("failing"), err: errors.New("conn reset")}
	plain := fakes.NewFakeStore("plain")

	p := pipeline.New([]pipeline.Source{{Client: ok}, {Client: plain}, {Client: failing}})
	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing failing: conn reset")
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)
}
