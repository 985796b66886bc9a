// Package fakes provides test doubles for smcreds store clients.
//
// FakeStore implements secretstore.Client directly and is what most pipeline
// and dispatch tests use. FakeSecretsManagerClient and FakeGCPSecretAPI stand
// in for the cloud SDK clients underneath the AWS and GCP adapters.
//
// Fakes are manually implemented (not generated) to provide precise control
// over paging, failures and call counting.
//
// Usage:
//
//	store := fakes.NewFakeStore("test").
//	    WithPageSize(2).
//	    WithSecret(fakes.Secret{Name: "ci/db", Value: "hunter2", Tags: map[string]string{"smcreds:type": "string"}})
//	lister := secretstore.NewLister(store)
package fakes
