package credential

import "fmt"

// SecretUnavailableError reports that a credential's secret could not be
// fetched. It is returned at read time and is never cached: a later read
// retries the fetch.
type SecretUnavailableError struct {
	ID  string
	Err error
}

func (e *SecretUnavailableError) Error() string {
	return fmt.Sprintf("secret for credential %s is unavailable: %v", e.ID, e.Err)
}

func (e *SecretUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError reports a structured payload that lacks a mandatory
// field. The message names the credential and the field only; nothing else
// from the payload is ever included.
type MalformedPayloadError struct {
	ID string
	// Field is the missing field. Empty when the payload is not a JSON object
	// at all.
	Field string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("credential %s: secret payload is not a JSON object", e.ID)
	}
	return fmt.Sprintf("credential %s: secret payload is missing mandatory string field %q", e.ID, e.Field)
}

// UnavailableError reports secret material that was fetched but cannot be
// turned into the credential's shape, e.g. an unreadable keystore.
type UnavailableError struct {
	ID     string
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("credentials unavailable for %s: %s", e.ID, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
