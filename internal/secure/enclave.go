package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is read.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer is an immutable, encrypted-at-rest copy of a secret payload.
// It is safe for concurrent use.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewSecureBuffer seals data into an enclave. memguard wipes the source slice
// once it has been copied, so callers must not rely on data afterwards.
// An empty payload is valid and yields an empty buffer.
func NewSecureBuffer(data []byte) *SecureBuffer {
	b := &SecureBuffer{size: len(data)}
	if len(data) > 0 {
		b.enclave = memguard.NewEnclave(data)
	}
	return b
}

// Len returns the payload length in bytes.
func (b *SecureBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Bytes decrypts the payload and returns a copy the caller owns. The locked
// plaintext buffer used for decryption is wiped before returning.
func (b *SecureBuffer) Bytes() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.enclave == nil {
		return []byte{}, nil
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, locked.Size())
	copy(out, locked.Bytes())
	return out, nil
}

// Destroy drops the enclave. Further reads return ErrDestroyed. Destroy is
// idempotent.
func (b *SecureBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enclave = nil
	b.destroyed = true
}
