// Package secretstore defines the secret store abstraction smcreds lists
// secrets from, and the paginated Lister built on top of it.
//
// # Client contract
//
// A Client exposes two remote operations:
//
//	ListSecrets(ctx, filters, pageToken) -> (Page, error)
//	GetSecretValue(ctx, id)              -> (SecretValue, error)
//
// The page token is opaque. An empty token starts a listing and an empty
// NextToken in the returned Page ends it. Clients must be safe for concurrent
// use: a single Client is shared by every credential built from its listing.
//
// Clients report which filter keys they evaluate server side through
// Supports. The Lister evaluates the remaining filters itself, so filtering
// behaves identically across backends.
//
// # Listing
//
// Lister.List walks every page to completion, drops deleted entries, applies
// client-side filters and returns the full, ordered result. A failure on any
// page aborts the listing with a ListingError; partial results are never
// returned.
//
// # Secret values
//
// SecretValue holds text or binary payloads sealed in protected memory. Its
// String and GoString methods always render "[REDACTED]", so a value that ends
// up in a log line or error message never leaks.
package secretstore
