package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/systmms/smcreds/pkg/secretstore"
)

// Secret is one secret held by a FakeStore.
type Secret struct {
	ID          string // defaults to an ARN derived from Name
	Name        string
	Description string
	Tags        map[string]string
	Value       string
	Binary      []byte
	DeletedAt   *time.Time
}

// FakeStore is an in-memory secretstore.Client with configurable paging,
// server-side filter support and failure injection.
//
// Example usage:
//
//	store := fakes.NewFakeStore("aws").
//	    WithPageSize(1).
//	    WithSecret(fakes.Secret{Name: "a", Value: "1"}).
//	    WithListError(1, errors.New("throttled"))
type FakeStore struct {
	name      string
	pageSize  int
	supported map[secretstore.FilterKey]bool

	secrets    []Secret
	listErrors map[int]error    // page index -> error
	getErrors  map[string]error // id -> error
	getDelay   time.Duration

	listCalls int
	getCalls  map[string]int

	mu sync.Mutex
}

// NewFakeStore creates an empty FakeStore. By default every page holds all
// secrets and no filter is evaluated server side.
func NewFakeStore(name string) *FakeStore {
	return &FakeStore{
		name:       name,
		supported:  make(map[secretstore.FilterKey]bool),
		listErrors: make(map[int]error),
		getErrors:  make(map[string]error),
		getCalls:   make(map[string]int),
	}
}

// WithPageSize sets how many secrets a page holds. Zero means unbounded.
func (f *FakeStore) WithPageSize(n int) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
	return f
}

// WithServerFilter marks key as evaluated server side.
func (f *FakeStore) WithServerFilter(key secretstore.FilterKey) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supported[key] = true
	return f
}

// WithSecret appends a secret. Listing order is insertion order.
func (f *FakeStore) WithSecret(s Secret) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = ARN(s.Name)
	}
	f.secrets = append(f.secrets, s)
	return f
}

// WithListError makes the given zero-based page fail.
func (f *FakeStore) WithListError(page int, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrors[page] = err
	return f
}

// WithGetError makes GetSecretValue fail for id.
func (f *FakeStore) WithGetError(id string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrors[id] = err
	return f
}

// ClearGetError removes a failure injected with WithGetError.
func (f *FakeStore) ClearGetError(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.getErrors, id)
}

// WithGetDelay simulates network latency on GetSecretValue.
func (f *FakeStore) WithGetDelay(d time.Duration) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getDelay = d
	return f
}

// SetValue replaces the payload of the secret with the given id.
func (f *FakeStore) SetValue(id, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.secrets {
		if f.secrets[i].ID == id {
			f.secrets[i].Value = value
			f.secrets[i].Binary = nil
		}
	}
}

// Name implements secretstore.Client.
func (f *FakeStore) Name() string {
	return f.name
}

// Supports implements secretstore.Client.
func (f *FakeStore) Supports(k secretstore.FilterKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supported[k]
}

// ListSecrets implements secretstore.Client. Page tokens are decimal offsets.
func (f *FakeStore) ListSecrets(ctx context.Context, filters []secretstore.Filter, pageToken string) (secretstore.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return secretstore.Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	var matching []Secret
	for _, s := range f.secrets {
		if f.serverMatches(filters, s) {
			matching = append(matching, s)
		}
	}

	page := 0
	if f.pageSize > 0 {
		page = offset / f.pageSize
	}
	if err, ok := f.listErrors[page]; ok {
		return secretstore.Page{}, err
	}

	end := len(matching)
	if f.pageSize > 0 && offset+f.pageSize < end {
		end = offset + f.pageSize
	}
	if offset > len(matching) {
		offset = len(matching)
	}

	var out secretstore.Page
	for _, s := range matching[offset:end] {
		out.Entries = append(out.Entries, toEntry(s))
	}
	if end < len(matching) {
		out.NextToken = strconv.Itoa(end)
	}
	return out, nil
}

func (f *FakeStore) serverMatches(filters []secretstore.Filter, s Secret) bool {
	e := toEntry(s)
	for _, flt := range filters {
		if f.supported[flt.Key] && !flt.Matches(e) {
			return false
		}
	}
	return true
}

// GetSecretValue implements secretstore.Client.
func (f *FakeStore) GetSecretValue(ctx context.Context, id string) (secretstore.SecretValue, error) {
	f.mu.Lock()
	f.getCalls[id]++
	delay := f.getDelay
	err, failing := f.getErrors[id]
	var found *Secret
	for i := range f.secrets {
		if f.secrets[i].ID == id {
			s := f.secrets[i]
			found = &s
			break
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return secretstore.SecretValue{}, ctx.Err()
		}
	}
	if failing {
		return secretstore.SecretValue{}, err
	}
	if found == nil {
		return secretstore.SecretValue{}, secretstore.NotFoundError{Store: f.name, ID: id}
	}
	if found.Binary != nil {
		return secretstore.NewBinaryValue(append([]byte(nil), found.Binary...)), nil
	}
	return secretstore.NewStringValue(found.Value), nil
}

// ListCalls returns how many times ListSecrets was called.
func (f *FakeStore) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// GetCalls returns how many times GetSecretValue was called for id.
func (f *FakeStore) GetCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[id]
}

// TotalGetCalls returns the number of GetSecretValue calls across all ids.
func (f *FakeStore) TotalGetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.getCalls {
		total += n
	}
	return total
}

// IDs returns the ids of all secrets, sorted.
func (f *FakeStore) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.secrets))
	for _, s := range f.secrets {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// ARN returns the fake ARN for a secret name.
func ARN(name string) string {
	return "arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name
}

func toEntry(s Secret) secretstore.Entry {
	tags := make(map[string]string, len(s.Tags))
	for k, v := range s.Tags {
		tags[k] = v
	}
	return secretstore.Entry{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Tags:        tags,
		DeletedAt:   s.DeletedAt,
	}
}
