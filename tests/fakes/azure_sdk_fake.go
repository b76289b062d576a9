package fakes

import (
	"context"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory Key Vault.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex

	// Secrets maps secret names to values
	Secrets map[string]string
	// ContentTypes records the content type each secret was set with
	ContentTypes map[string]string
	// Errors maps secret names to errors to return
	Errors map[string]error
}

// NewFakeAzureKeyVaultClient creates an empty fake.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets:      make(map[string]string),
		ContentTypes: make(map[string]string),
		Errors:       make(map[string]error),
	}
}

// AddSecretString seeds a secret.
func (f *FakeAzureKeyVaultClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddError makes calls for name fail with err.
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// GetSecret returns the latest value or a 404 ResponseError.
func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[name]; err != nil {
		return azsecrets.GetSecretResponse{}, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{Value: to.Ptr(value)},
	}, nil
}

// SetSecret stores a value.
func (f *FakeAzureKeyVaultClient) SetSecret(_ context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[name]; err != nil {
		return azsecrets.SetSecretResponse{}, err
	}
	if parameters.Value == nil {
		return azsecrets.SetSecretResponse{}, &azcore.ResponseError{StatusCode: 400, ErrorCode: "BadParameter"}
	}
	f.Secrets[name] = *parameters.Value
	if parameters.ContentType != nil {
		f.ContentTypes[name] = *parameters.ContentType
	}
	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{Value: parameters.Value},
	}, nil
}

// AzureNotFoundError creates a Key Vault 404 error
func AzureNotFoundError(secretName string) error {
	return &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  "SecretNotFound",
	}
}

// AzureForbiddenError creates a Key Vault 403 error
func AzureForbiddenError(message string) error {
	return &azcore.ResponseError{
		StatusCode: 403,
		ErrorCode:  "Forbidden",
	}
}
