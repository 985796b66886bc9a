// Package credential defines the typed credentials smcreds materializes from
// secret store entries.
//
// # Variants
//
// Every credential implements Credential, which carries descriptive metadata
// and a Snapshot operation. The secret material itself is reached through
// variant-specific accessors:
//
//	*String                Secret(ctx)
//	*UsernamePassword      Username(), Password(ctx)
//	*JSONUsernamePassword  Username(ctx), Password(ctx)
//	*File                  FileName(), Content(ctx)
//	*Certificate           KeyStore(ctx), Password()
//	*AWSCredentials        AccessKeyID(), SecretAccessKey(ctx), Role(), Retrieve(ctx)
//	*SSHUserPrivateKey     Username(), PrivateKey(ctx), Signer(ctx)
//
// Use a type switch to reach them:
//
//	switch c := cred.(type) {
//	case *credential.UsernamePassword:
//	    pw, err := c.Password(ctx)
//	case *credential.File:
//	    data, err := c.Content(ctx)
//	}
//
// # Laziness
//
// Credentials hold a lazy.Value bound to the remote secret, never the resolved
// bytes. The first accessor call fetches the payload; later calls reuse it
// until the value's expiry. Payload-derived fields such as the JSON username
// are parsed at read time, so a malformed payload fails the read, not the
// listing.
//
// # Snapshots
//
// Snapshot resolves every lazy value a credential holds and returns an
// otherwise identical credential that never contacts the store again. Use it
// when a credential must outlive the store connection.
//
// # Errors
//
// Read-time failures are reported as SecretUnavailableError,
// MalformedPayloadError or UnavailableError. None of them ever include secret
// material in their message.
package credential
