// Package fakes provides test doubles for qb's external collaborators.
//
// The SDK fakes stand in for the cloud secret manager clients, so the
// credential backends can be exercised without network access. The
// remaining fakes replace the credential store, the operator prompt and
// ansible-vault for tests of the field and env workflows.
//
// Usage:
//
//	client := fakes.NewFakeKeyringClient()
//	store := credentials.NewKeyringStoreWithClient(client)
//	// exercise store...
package fakes
