package credentials

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSSecretsManagerStore keeps one secret per account in AWS Secrets Manager.
type AWSSecretsManagerStore struct {
	client SecretsManagerAPI
	prefix string
}

// NewAWSSecretsManagerStore creates a store using the default AWS credential
// chain. opts.Endpoint redirects the client, e.g. to LocalStack.
func NewAWSSecretsManagerStore(ctx context.Context, opts Options) (*AWSSecretsManagerStore, error) {
	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*secretsmanager.Options)
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return NewAWSSecretsManagerStoreWithClient(secretsmanager.NewFromConfig(cfg, clientOpts...), opts.Prefix), nil
}

// NewAWSSecretsManagerStoreWithClient creates a store around client.
func NewAWSSecretsManagerStoreWithClient(client SecretsManagerAPI, prefix string) *AWSSecretsManagerStore {
	return &AWSSecretsManagerStore{client: client, prefix: prefix}
}

func (s *AWSSecretsManagerStore) Name() string {
	return BackendAWSSecretsManager
}

// SecretID returns the secret name used for account.
func (s *AWSSecretsManagerStore) SecretID(account string) string {
	return secretName(s.prefix, "/", account, awsNameChar)
}

func (s *AWSSecretsManagerStore) Get(ctx context.Context, account string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.SecretID(account)),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", &StoreError{Backend: BackendAWSSecretsManager, Op: "get", Account: account, Err: err}
	}
	if out.SecretString == nil {
		return "", ErrNotFound
	}
	return aws.ToString(out.SecretString), nil
}

// Put writes a new secret version, creating the secret on first use.
func (s *AWSSecretsManagerStore) Put(ctx context.Context, account, secret string) error {
	id := s.SecretID(account)
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(id),
		SecretString: aws.String(secret),
	})
	if err == nil {
		return nil
	}

	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return &StoreError{Backend: BackendAWSSecretsManager, Op: "put", Account: account, Err: err}
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(id),
		SecretString: aws.String(secret),
		Description:  aws.String("qb vault password"),
	})
	if err != nil {
		return &StoreError{Backend: BackendAWSSecretsManager, Op: "create", Account: account, Err: err}
	}
	return nil
}
