package credential

import (
	"context"
	"crypto/x509"

	"github.com/systmms/smcreds/pkg/lazy"
	"software.sslmate.com/src/go-pkcs12"
)

// KeyStore is a decoded PKCS#12 bundle.
type KeyStore struct {
	PrivateKey  interface{}
	Certificate *x509.Certificate
	CACerts     []*x509.Certificate
}

// Certificate is a PKCS#12 keystore protected by the empty passphrase.
type Certificate struct {
	base
	content *Secret
}

// NewCertificate creates a Certificate credential.
func NewCertificate(m Meta, content *Secret) *Certificate {
	return &Certificate{base: newBase(m, TypeCertificate), content: content}
}

// Password returns the keystore passphrase, which is always empty (not
// absent).
func (c *Certificate) Password() string {
	return ""
}

// Raw returns the PKCS#12 bytes.
func (c *Certificate) Raw(ctx context.Context) ([]byte, error) {
	return readBytes(ctx, c.meta.ID, c.content)
}

// KeyStore decodes the payload. Decoding happens on every call; the fetched
// bytes are memoized, the parsed keys are not.
func (c *Certificate) KeyStore(ctx context.Context) (*KeyStore, error) {
	raw, err := c.Raw(ctx)
	if err != nil {
		return nil, err
	}
	defer wipe(raw)

	key, cert, ca, err := pkcs12.DecodeChain(raw, c.Password())
	if err != nil {
		return nil, &UnavailableError{ID: c.meta.ID, Reason: "keystore could not be loaded", Err: err}
	}
	return &KeyStore{PrivateKey: key, Certificate: cert, CACerts: ca}, nil
}

// Snapshot implements Credential.
func (c *Certificate) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.content)
	if err != nil {
		return nil, err
	}
	return &Certificate{base: c.base, content: s}, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
