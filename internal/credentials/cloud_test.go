package credentials_test

import (
	"context"
	"testing"

	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloombuilt/qb/internal/credentials"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/tests/fakes"
)

// storeRoundTrip checks the behaviour every backend shares.
func storeRoundTrip(t *testing.T, store credentials.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "abc123.staging")
	assert.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, store.Put(ctx, "abc123.staging", "first"))
	got, err := store.Get(ctx, "abc123.staging")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, store.Put(ctx, "abc123.staging", "second"))
	got, err = store.Get(ctx, "abc123.staging")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = store.Get(ctx, "abc123.production")
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestAWSSecretsManagerStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	store := credentials.NewAWSSecretsManagerStoreWithClient(client, "")
	assert.Equal(t, "aws-secretsmanager", store.Name())

	storeRoundTrip(t, store)

	assert.Equal(t, "second", client.Secrets["com.bloombuilt.qb/abc123.staging"])
	assert.Equal(t, []string{
		"GetSecretValue",
		"PutSecretValue", "CreateSecret",
		"GetSecretValue",
		"PutSecretValue",
		"GetSecretValue",
		"GetSecretValue",
	}, client.Calls)
}

func TestAWSSecretsManagerStorePrefixAndErrors(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSecretsManagerClient()
	store := credentials.NewAWSSecretsManagerStoreWithClient(client, "/team/")
	id := store.SecretID("abc123.staging")
	assert.Equal(t, "team/com.bloombuilt.qb/abc123.staging", id)

	client.AddError(id, assert.AnError)
	_, err := store.Get(context.Background(), "abc123.staging")
	var storeErr *credentials.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Op)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAWSSSMStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSSMClient()
	store := credentials.NewAWSSSMStoreWithClient(client, "")
	assert.Equal(t, "aws-ssm", store.Name())

	storeRoundTrip(t, store)

	name := "/com.bloombuilt.qb/abc123.staging"
	assert.Equal(t, name, store.ParameterName("abc123.staging"))
	assert.Equal(t, "second", client.Parameters[name])
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, client.Types[name])
}

func TestGCPSecretManagerStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	store := credentials.NewGCPSecretManagerStoreWithClient(client, "proj", "")
	assert.Equal(t, "gcp-secretmanager", store.Name())

	storeRoundTrip(t, store)

	id := store.SecretID("abc123.staging")
	assert.Equal(t, "com-bloombuilt-qb_abc123-staging", id)
	assert.Len(t, client.Versions["projects/proj/secrets/"+id], 2)
	assert.Equal(t, "qb", client.Secrets["projects/proj/secrets/"+id].GetLabels()["managed-by"])
}

func TestGCPSecretManagerStorePermissionDenied(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	store := credentials.NewGCPSecretManagerStoreWithClient(client, "proj", "qb")
	id := store.SecretID("abc123.staging")
	assert.Equal(t, "qb_com-bloombuilt-qb_abc123-staging", id)

	client.AddError("projects/proj/secrets/"+id, fakes.GCPPermissionDeniedError("denied"))
	_, err := store.Get(context.Background(), "abc123.staging")
	require.Error(t, err)
	assert.NotErrorIs(t, err, credentials.ErrNotFound)
	assert.Contains(t, err.Error(), "PermissionDenied")
}

func TestAzureKeyVaultStore(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	store := credentials.NewAzureKeyVaultStoreWithClient(client, "")
	assert.Equal(t, "azure-keyvault", store.Name())

	storeRoundTrip(t, store)

	name := store.SecretName("abc123.staging")
	assert.Equal(t, "com-bloombuilt-qb-abc123-staging", name)
	assert.Equal(t, "second", client.Secrets[name])
	assert.Equal(t, "text/plain", client.ContentTypes[name])
}

func TestAzureKeyVaultStoreForbidden(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	store := credentials.NewAzureKeyVaultStoreWithClient(client, "")
	client.AddError(store.SecretName("abc123.staging"), fakes.AzureForbiddenError("nope"))

	_, err := store.Get(context.Background(), "abc123.staging")
	require.Error(t, err)
	assert.NotErrorIs(t, err, credentials.ErrNotFound)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := credentials.Open(context.Background(), credentials.Options{Backend: "floppy-disk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floppy-disk")
	assert.Contains(t, err.Error(), "aws-ssm")

	var cfgErr qberrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "backend", cfgErr.Field)
}

func TestOpenRequiresBackendSettings(t *testing.T) {
	t.Parallel()

	_, err := credentials.Open(context.Background(), credentials.Options{Backend: "gcp-secretmanager"})
	assert.ErrorContains(t, err, "QB_GCP_PROJECT")

	_, err = credentials.Open(context.Background(), credentials.Options{Backend: "azure-keyvault"})
	assert.ErrorContains(t, err, "QB_AZURE_VAULT_URL")
}

func TestOpenDefaultsToKeyring(t *testing.T) {
	t.Parallel()

	store, err := credentials.Open(context.Background(), credentials.Options{})
	require.NoError(t, err)
	assert.Equal(t, "keyring", store.Name())
}
