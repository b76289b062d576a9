package credentials

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringClient is the subset of the OS keyring qb needs.
type KeyringClient interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
}

// systemKeyring talks to macOS Keychain, Secret Service or Windows
// Credential Manager through go-keyring.
type systemKeyring struct{}

func (systemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// KeyringStore keeps passwords in the OS keyring under ServiceName.
type KeyringStore struct {
	service string
	client  KeyringClient
}

// NewKeyringStore creates a store backed by the platform keyring.
func NewKeyringStore() *KeyringStore {
	return NewKeyringStoreWithClient(systemKeyring{})
}

// NewKeyringStoreWithClient creates a keyring store with a custom client.
func NewKeyringStoreWithClient(client KeyringClient) *KeyringStore {
	return &KeyringStore{service: ServiceName, client: client}
}

func (s *KeyringStore) Name() string {
	return BackendKeyring
}

func (s *KeyringStore) Get(ctx context.Context, account string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := s.client.Get(s.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", &StoreError{Backend: BackendKeyring, Op: "get", Account: account, Err: err}
	}
	return value, nil
}

func (s *KeyringStore) Put(ctx context.Context, account, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Set(s.service, account, secret); err != nil {
		return &StoreError{Backend: BackendKeyring, Op: "set", Account: account, Err: err}
	}
	return nil
}
