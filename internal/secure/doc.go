// Package secure keeps fetched secret payloads out of plain process memory.
//
// Every payload read from a secret store is sealed into a memguard enclave
// (XSalsa20Poly1305 encrypted, key held in locked memory) as soon as it
// arrives. Plaintext exists only for the duration of an accessor call:
//
//	buf := secure.NewSecureBuffer(payload) // payload is wiped
//	plain, err := buf.Bytes()              // caller-owned copy
//
// Nothing in this package writes to disk. Call memguard.Purge at process exit
// to wipe the enclave key.
//
// It does NOT protect against:
//
//   - Attackers with root access to the running process
//   - Copies the caller makes of the plaintext returned by Bytes
package secure
