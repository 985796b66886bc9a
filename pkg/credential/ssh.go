package credential

import (
	"context"

	"golang.org/x/crypto/ssh"

	"github.com/systmms/smcreds/pkg/lazy"
)

// SSHUserPrivateKey is an SSH private key with a username from a tag. The key
// passphrase is always empty.
type SSHUserPrivateKey struct {
	base
	username string
	key      *Secret
}

// NewSSHUserPrivateKey creates an SSHUserPrivateKey credential.
func NewSSHUserPrivateKey(m Meta, username string, key *Secret) *SSHUserPrivateKey {
	return &SSHUserPrivateKey{base: newBase(m, TypeSSHUserPrivateKey), username: username, key: key}
}

// Username returns the username.
func (c *SSHUserPrivateKey) Username() string {
	return c.username
}

// Passphrase returns the key passphrase, which is always empty.
func (c *SSHUserPrivateKey) Passphrase() string {
	return ""
}

// PrivateKey returns the key text as stored.
func (c *SSHUserPrivateKey) PrivateKey(ctx context.Context) (string, error) {
	return readText(ctx, c.meta.ID, c.key)
}

// Signer parses the key into an ssh.Signer.
func (c *SSHUserPrivateKey) Signer(ctx context.Context) (ssh.Signer, error) {
	raw, err := readBytes(ctx, c.meta.ID, c.key)
	if err != nil {
		return nil, err
	}
	defer wipe(raw)

	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, &UnavailableError{ID: c.meta.ID, Reason: "private key could not be parsed", Err: err}
	}
	return signer, nil
}

// Snapshot implements Credential.
func (c *SSHUserPrivateKey) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.key)
	if err != nil {
		return nil, err
	}
	return &SSHUserPrivateKey{base: c.base, username: c.username, key: s}, nil
}
