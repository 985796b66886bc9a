package secretstore

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/systmms/smcreds/internal/secure"
)

// Client is the remote secret store as seen by the pipeline.
type Client interface {
	// Name identifies the client in logs, metrics and errors.
	Name() string

	// ListSecrets returns one page of secret entries. Server-side filtering
	// is applied for every filter key Supports reports true for; other
	// filters may be ignored.
	ListSecrets(ctx context.Context, filters []Filter, pageToken string) (Page, error)

	// GetSecretValue fetches the current payload of the secret identified by
	// id (the Entry.ID returned by ListSecrets).
	GetSecretValue(ctx context.Context, id string) (SecretValue, error)

	// Supports reports whether the store evaluates filters with key k itself.
	Supports(k FilterKey) bool
}

// Page is one page of a listing.
type Page struct {
	Entries   []Entry
	NextToken string
}

// Entry is one secret record as listed by the store. Entries are immutable
// once listed.
type Entry struct {
	// ID is the store-assigned stable identifier (an ARN for AWS, a resource
	// name for GCP). It is what GetSecretValue takes.
	ID string

	// Name is the human-readable secret name.
	Name string

	// Description is optional and may be empty.
	Description string

	// Tags are the secret's key/value tags (labels on GCP).
	Tags map[string]string

	// DeletedAt is set when the secret is scheduled for deletion.
	DeletedAt *time.Time
}

// Deleted reports whether the entry is scheduled for deletion.
func (e Entry) Deleted() bool {
	return e.DeletedAt != nil
}

// Tag returns the value of tag key and whether it is present.
func (e Entry) Tag(key string) (string, bool) {
	v, ok := e.Tags[key]
	return v, ok
}

// SecretValue is a secret payload, either text or binary.
type SecretValue struct {
	buf    *secure.SecureBuffer
	binary bool
}

// NewStringValue seals a text payload.
func NewStringValue(s string) SecretValue {
	return SecretValue{buf: secure.NewSecureBuffer([]byte(s))}
}

// NewBinaryValue seals a binary payload. b is wiped.
func NewBinaryValue(b []byte) SecretValue {
	return SecretValue{buf: secure.NewSecureBuffer(b), binary: true}
}

// IsBinary reports whether the store returned the payload as binary.
func (v SecretValue) IsBinary() bool {
	return v.binary
}

// Len returns the payload size in bytes.
func (v SecretValue) Len() int {
	if v.buf == nil {
		return 0
	}
	return v.buf.Len()
}

// Bytes returns a copy of the payload.
func (v SecretValue) Bytes() ([]byte, error) {
	if v.buf == nil {
		return []byte{}, nil
	}
	return v.buf.Bytes()
}

// Text returns the payload as a string. Binary payloads are accepted when they
// are valid UTF-8.
func (v SecretValue) Text() (string, error) {
	b, err := v.Bytes()
	if err != nil {
		return "", err
	}
	if v.binary && !utf8.Valid(b) {
		return "", ErrNotText
	}
	return string(b), nil
}

// String implements fmt.Stringer and never reveals the payload.
func (v SecretValue) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (v SecretValue) GoString() string {
	return "[REDACTED]"
}
