package fakes

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrFakeKeyringLocked simulates a keyring that refuses access.
var ErrFakeKeyringLocked = errors.New("fake keyring: collection is locked")

// FakeKeyringClient is a test double for credentials.KeyringClient.
type FakeKeyringClient struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// GetErr is returned by Get() if set (overrides Secrets lookup)
	GetErr error

	// SetErr is returned by Set() if set
	SetErr error
}

// NewFakeKeyringClient creates an empty fake keyring.
func NewFakeKeyringClient() *FakeKeyringClient {
	return &FakeKeyringClient{Secrets: make(map[string]map[string]string)}
}

// Get returns keyring.ErrNotFound for unknown items, like the real keyring.
func (f *FakeKeyringClient) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return "", f.GetErr
	}
	if accounts, ok := f.Secrets[service]; ok {
		if value, ok := accounts[account]; ok {
			return value, nil
		}
	}
	return "", keyring.ErrNotFound
}

// Set stores value under service/account.
func (f *FakeKeyringClient) Set(service, account, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetErr != nil {
		return f.SetErr
	}
	if f.Secrets == nil {
		f.Secrets = make(map[string]map[string]string)
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
	return nil
}
