// Package credentials stores and resolves the per-field vault password.
//
// A Store is a keyed secret backend (OS keyring or a cloud secret manager).
// Resolvers layer lookup policy on top of a Store: an explicit override,
// the stored value, and finally an interactive prompt.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	qberrors "github.com/bloombuilt/qb/internal/errors"
)

// ServiceName namespaces every credential qb writes.
const ServiceName = "com.bloombuilt.qb"

// Backend names accepted by Open.
const (
	BackendKeyring           = "keyring"
	BackendAWSSecretsManager = "aws-secretsmanager"
	BackendAWSSSM            = "aws-ssm"
	BackendGCPSecretManager  = "gcp-secretmanager"
	BackendAzureKeyVault     = "azure-keyvault"
)

// ErrNotFound is returned by a Store when no secret exists for an account.
var ErrNotFound = errors.New("credential not found")

// Store is a keyed secret backend.
type Store interface {
	Name() string
	Get(ctx context.Context, account string) (string, error)
	Put(ctx context.Context, account, secret string) error
}

// Key identifies the password of one field inside one workspace.
type Key struct {
	Workspace string
	Field     string

	// AppName feeds the read-only legacy account.
	AppName string
}

// Account is the store account for this key: "<workspace>.<field>".
func (k Key) Account() string {
	return k.Workspace + "." + k.Field
}

// LegacyAccount is the account older releases wrote: "<app>.<field>".
// It is empty when no app name is known.
func (k Key) LegacyAccount() string {
	if strings.TrimSpace(k.AppName) == "" {
		return ""
	}
	return k.AppName + "." + k.Field
}

// Validate checks the key has enough information to address a secret.
func (k Key) Validate() error {
	if k.Workspace == "" {
		return fmt.Errorf("credential key has no workspace")
	}
	if k.Field == "" {
		return fmt.Errorf("credential key has no field")
	}
	return nil
}

// Save writes secret for key into store.
func Save(ctx context.Context, store Store, key Key, secret string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("refusing to store an empty password for field %s", key.Field)
	}
	return store.Put(ctx, key.Account(), secret)
}

// StoreError describes a failed backend operation.
type StoreError struct {
	Backend string
	Op      string
	Account string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Account, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Options configures the store returned by Open.
type Options struct {
	Backend  string
	Region   string
	Endpoint string
	Project  string
	VaultURL string
	Prefix   string

	AccessKeyID     string
	SecretAccessKey string
}

// Open constructs the Store named by opts.Backend. An empty name selects
// the OS keyring.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendKeyring:
		return NewKeyringStore(), nil
	case BackendAWSSecretsManager:
		return NewAWSSecretsManagerStore(ctx, opts)
	case BackendAWSSSM:
		return NewAWSSSMStore(ctx, opts)
	case BackendGCPSecretManager:
		return NewGCPSecretManagerStore(ctx, opts)
	case BackendAzureKeyVault:
		return NewAzureKeyVaultStore(opts)
	default:
		return nil, qberrors.ConfigError{
			Field:      "backend",
			Value:      opts.Backend,
			Message:    "unknown credential backend",
			Suggestion: "Use one of: " + strings.Join(Backends(), ", "),
		}
	}
}

// Backends lists the supported backend names.
func Backends() []string {
	return []string{
		BackendKeyring,
		BackendAWSSecretsManager,
		BackendAWSSSM,
		BackendGCPSecretManager,
		BackendAzureKeyVault,
	}
}

// secretName joins prefix, service and account into a backend-side name,
// mapping every byte not accepted by allowed to '-'.
func secretName(prefix, sep, account string, allowed func(rune) bool) string {
	parts := []string{}
	if p := strings.Trim(prefix, sep); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, ServiceName, account)
	name := strings.Join(parts, sep)
	return strings.Map(func(r rune) rune {
		if allowed(r) || string(r) == sep {
			return r
		}
		return '-'
	}, name)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
