package fakes

import (
	"context"
	"sync"

	"github.com/bloombuilt/qb/internal/credentials"
)

// FakeStore is an in-memory credentials.Store.
type FakeStore struct {
	mu sync.Mutex

	// Secrets maps accounts to passwords
	Secrets map[string]string

	// GetErr and PutErr, when set, fail every call
	GetErr error
	PutErr error

	// Gets and Puts record the accounts touched, in order
	Gets []string
	Puts []string
}

// NewFakeStore creates an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{Secrets: make(map[string]string)}
}

func (f *FakeStore) Name() string {
	return "fake"
}

func (f *FakeStore) Get(_ context.Context, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Gets = append(f.Gets, account)
	if f.GetErr != nil {
		return "", f.GetErr
	}
	value, ok := f.Secrets[account]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return value, nil
}

func (f *FakeStore) Put(_ context.Context, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Puts = append(f.Puts, account)
	if f.PutErr != nil {
		return f.PutErr
	}
	f.Secrets[account] = secret
	return nil
}

// Lookup returns the stored value without recording a call.
func (f *FakeStore) Lookup(account string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Secrets[account]
	return v, ok
}
