package credential

import (
	"context"

	"github.com/systmms/smcreds/pkg/lazy"
	"github.com/systmms/smcreds/pkg/secretstore"
)

// Type is the credential kind selected by an entry's type tag.
type Type string

const (
	TypeString               Type = "string"
	TypeUsernamePassword     Type = "usernamePassword"
	TypeJSONUsernamePassword Type = "usernamePasswordJSON"
	TypeFile                 Type = "file"
	TypeCertificate          Type = "certificate"
	TypeAWSCredentials       Type = "awsCredentials"
	TypeSSHUserPrivateKey    Type = "sshUserPrivateKey"
	TypeGitHubApp            Type = "githubApp"
)

// Types lists every type smcreds knows about, in display order.
func Types() []Type {
	return []Type{
		TypeString,
		TypeUsernamePassword,
		TypeJSONUsernamePassword,
		TypeFile,
		TypeCertificate,
		TypeAWSCredentials,
		TypeSSHUserPrivateKey,
		TypeGitHubApp,
	}
}

// Secret is the lazily fetched payload a credential is built around.
type Secret = lazy.Value[secretstore.SecretValue]

// Credential is the capability set shared by all variants.
type Credential interface {
	// ID is the credential identifier: the transformed secret name.
	ID() string

	// StoreID is the identifier of the backing secret in its store.
	StoreID() string

	// Description is the transformed description, possibly empty.
	Description() string

	Type() Type

	// Tags returns a copy of the backing entry's tags.
	Tags() map[string]string

	// Snapshot resolves every lazy value and returns an equivalent credential
	// that never fetches again.
	Snapshot(ctx context.Context) (Credential, error)
}

// Meta is the descriptive part of a credential.
type Meta struct {
	ID          string
	StoreID     string
	Description string
	Tags        map[string]string
}

type base struct {
	meta Meta
	typ  Type
}

func newBase(m Meta, t Type) base {
	tags := make(map[string]string, len(m.Tags))
	for k, v := range m.Tags {
		tags[k] = v
	}
	m.Tags = tags
	return base{meta: m, typ: t}
}

func (b base) ID() string          { return b.meta.ID }
func (b base) StoreID() string     { return b.meta.StoreID }
func (b base) Description() string { return b.meta.Description }
func (b base) Type() Type          { return b.typ }

func (b base) Tags() map[string]string {
	out := make(map[string]string, len(b.meta.Tags))
	for k, v := range b.meta.Tags {
		out[k] = v
	}
	return out
}

func readText(ctx context.Context, id string, s *Secret) (string, error) {
	v, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	text, err := v.Text()
	if err != nil {
		return "", &UnavailableError{ID: id, Reason: "payload is not text", Err: err}
	}
	return text, nil
}

func readBytes(ctx context.Context, id string, s *Secret) ([]byte, error) {
	v, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, &UnavailableError{ID: id, Reason: "payload could not be read", Err: err}
	}
	return b, nil
}
