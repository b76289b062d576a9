package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	qberrors "github.com/bloombuilt/qb/internal/errors"
)

// AzureSecretsAPI is the subset of the Key Vault secrets client used here.
type AzureSecretsAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureKeyVaultStore keeps passwords as Key Vault secrets.
type AzureKeyVaultStore struct {
	client AzureSecretsAPI
	prefix string
}

// NewAzureKeyVaultStore authenticates with DefaultAzureCredential against
// opts.VaultURL.
func NewAzureKeyVaultStore(opts Options) (*AzureKeyVaultStore, error) {
	if opts.VaultURL == "" {
		return nil, qberrors.ConfigError{
			Field:      "QB_AZURE_VAULT_URL",
			Message:    BackendAzureKeyVault + " backend needs a vault URL",
			Suggestion: "Set QB_AZURE_VAULT_URL, e.g. https://myvault.vault.azure.net/",
		}
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(opts.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return NewAzureKeyVaultStoreWithClient(client, opts.Prefix), nil
}

// NewAzureKeyVaultStoreWithClient creates a store around client.
func NewAzureKeyVaultStoreWithClient(client AzureSecretsAPI, prefix string) *AzureKeyVaultStore {
	return &AzureKeyVaultStore{client: client, prefix: prefix}
}

func (s *AzureKeyVaultStore) Name() string {
	return BackendAzureKeyVault
}

// SecretName returns the Key Vault secret name used for account. Key
// Vault only accepts alphanumerics and dashes.
func (s *AzureKeyVaultStore) SecretName(account string) string {
	return secretName(s.prefix, "-", account, isAlnum)
}

func (s *AzureKeyVaultStore) Get(ctx context.Context, account string) (string, error) {
	resp, err := s.client.GetSecret(ctx, s.SecretName(account), "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return "", ErrNotFound
		}
		return "", &StoreError{Backend: BackendAzureKeyVault, Op: "get", Account: account, Err: err}
	}
	if resp.Value == nil {
		return "", ErrNotFound
	}
	return *resp.Value, nil
}

func (s *AzureKeyVaultStore) Put(ctx context.Context, account, secret string) error {
	contentType := "text/plain"
	_, err := s.client.SetSecret(ctx, s.SecretName(account), azsecrets.SetSecretParameters{
		Value:       &secret,
		ContentType: &contentType,
	}, nil)
	if err != nil {
		return &StoreError{Backend: BackendAzureKeyVault, Op: "set", Account: account, Err: err}
	}
	return nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
