package secretstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/tests/fakes"
)

func names(entries []secretstore.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestListerPaginatesToCompletion(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("fake").WithPageSize(2)
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		store.WithSecret(fakes.Secret{Name: n, Value: n})
	}

	var pages []int
	lister := secretstore.NewLister(store, secretstore.WithPageObserver(func(_ string, page, n int) {
		pages = append(pages, n)
	}))

	got, err := lister.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names(got))
	assert.Equal(t, 3, store.ListCalls())
	assert.Equal(t, []int{2, 2, 1}, pages)
}

func TestListerExcludesDeletedAcrossPages(t *testing.T) {
	t.Parallel()

	deleted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := fakes.NewFakeStore("fake").WithPageSize(2).
		WithSecret(fakes.Secret{Name: "keep-1"}).
		WithSecret(fakes.Secret{Name: "gone-1", DeletedAt: &deleted}).
		WithSecret(fakes.Secret{Name: "gone-2", DeletedAt: &deleted}).
		WithSecret(fakes.Secret{Name: "gone-3", DeletedAt: &deleted}).
		WithSecret(fakes.Secret{Name: "keep-2"})

	got, err := secretstore.NewLister(store).List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep-1", "keep-2"}, names(got))
	for _, e := range got {
		assert.False(t, e.Deleted())
	}
}

func TestListerAppliesUnsupportedFiltersLocally(t *testing.T) {
	t.Parallel()

	typed := map[string]string{"smcreds:type": "string"}
	store := fakes.NewFakeStore("fake").
		WithSecret(fakes.Secret{Name: "typed", Tags: typed}).
		WithSecret(fakes.Secret{Name: "untagged"}).
		WithSecret(fakes.Secret{Name: "other", Tags: map[string]string{"team": "ci"}})

	filters := []secretstore.Filter{{Key: secretstore.FilterTagKey, Values: []string{"smcreds:type"}}}

	got, err := secretstore.NewLister(store).List(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, []string{"typed"}, names(got))
}

func TestListerTrustsServerSideFilters(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("fake").
		WithServerFilter(secretstore.FilterTagValue).
		WithSecret(fakes.Secret{Name: "ci", Tags: map[string]string{"team": "ci"}}).
		WithSecret(fakes.Secret{Name: "ops", Tags: map[string]string{"team": "ops"}})

	filters := []secretstore.Filter{{Key: secretstore.FilterTagValue, Values: []string{"ops", "qa"}}}

	got, err := secretstore.NewLister(store).List(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, names(got))
}

func TestListerAbortsOnPageFailure(t *testing.T) {
	t.Parallel()

	errThrottled := errors.New("throttled")
	store := fakes.NewFakeStore("fake").WithPageSize(1).
		WithSecret(fakes.Secret{Name: "a"}).
		WithSecret(fakes.Secret{Name: "b"}).
		WithSecret(fakes.Secret{Name: "c"}).
		WithListError(1, errThrottled)

	got, err := secretstore.NewLister(store).List(context.Background(), nil)
	require.ErrorIs(t, err, errThrottled)
	assert.Nil(t, got, "no partial result")

	var listErr *secretstore.ListingError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, "fake", listErr.Store)
	assert.Equal(t, 1, listErr.Page)
}

// loopingClient always hands back the same page token.
type loopingClient struct {
	calls int
}

func (c *loopingClient) Name() string                        { return "looping" }
func (c *loopingClient) Supports(secretstore.FilterKey) bool { return false }

func (c *loopingClient) ListSecrets(context.Context, []secretstore.Filter, string) (secretstore.Page, error) {
	c.calls++
	return secretstore.Page{
		Entries:   []secretstore.Entry{{ID: "x", Name: "x"}},
		NextToken: "same",
	}, nil
}

func (c *loopingClient) GetSecretValue(context.Context, string) (secretstore.SecretValue, error) {
	return secretstore.SecretValue{}, errors.New("not implemented")
}

func TestListerRejectsRepeatedPageToken(t *testing.T) {
	t.Parallel()

	client := &loopingClient{}
	_, err := secretstore.NewLister(client).List(context.Background(), nil)
	require.ErrorIs(t, err, secretstore.ErrRepeatedPageToken)
	assert.Equal(t, 2, client.calls)
}

func TestListerHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("fake").WithSecret(fakes.Secret{Name: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := secretstore.NewLister(store).List(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.ListCalls())
}

func TestListerIsIdempotent(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore("fake").WithPageSize(3)
	for _, n := range []string{"q", "w", "e", "r", "t", "y", "u"} {
		store.WithSecret(fakes.Secret{Name: n})
	}
	lister := secretstore.NewLister(store)

	first, err := lister.List(context.Background(), nil)
	require.NoError(t, err)
	second, err := lister.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSecretValue(t *testing.T) {
	t.Parallel()

	v := secretstore.NewStringValue("hunter2")
	assert.False(t, v.IsBinary())
	assert.Equal(t, 7, v.Len())
	text, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", text)
	assert.Equal(t, "[REDACTED]", v.String())

	bin := secretstore.NewBinaryValue([]byte{0xff, 0xfe, 0x00})
	assert.True(t, bin.IsBinary())
	_, err = bin.Text()
	require.ErrorIs(t, err, secretstore.ErrNotText)
	raw, err := bin.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, raw)

	var empty secretstore.SecretValue
	text, err = empty.Text()
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
