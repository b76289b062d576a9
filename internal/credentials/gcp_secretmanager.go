package credentials

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	qberrors "github.com/bloombuilt/qb/internal/errors"
)

// GCPSecretManagerAPI is the subset of the Secret Manager client used here.
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
}

// GCPSecretManagerStore keeps passwords in Google Cloud Secret Manager.
// Each Put adds a new version; Get reads "latest".
type GCPSecretManagerStore struct {
	client  GCPSecretManagerAPI
	project string
	prefix  string
}

// NewGCPSecretManagerStore creates a store using Application Default
// Credentials. opts.Project is required.
func NewGCPSecretManagerStore(ctx context.Context, opts Options) (*GCPSecretManagerStore, error) {
	if opts.Project == "" {
		return nil, qberrors.ConfigError{
			Field:      "QB_GCP_PROJECT",
			Message:    BackendGCPSecretManager + " backend needs a project",
			Suggestion: "Set QB_GCP_PROJECT to the project holding the secrets",
		}
	}

	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	client, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return NewGCPSecretManagerStoreWithClient(client, opts.Project, opts.Prefix), nil
}

// NewGCPSecretManagerStoreWithClient creates a store around client.
func NewGCPSecretManagerStoreWithClient(client GCPSecretManagerAPI, project, prefix string) *GCPSecretManagerStore {
	return &GCPSecretManagerStore{client: client, project: project, prefix: prefix}
}

func (s *GCPSecretManagerStore) Name() string {
	return BackendGCPSecretManager
}

// SecretID returns the secret ID used for account.
func (s *GCPSecretManagerStore) SecretID(account string) string {
	return secretName(s.prefix, "_", account, isAlnum)
}

func (s *GCPSecretManagerStore) parent() string {
	return "projects/" + s.project
}

func (s *GCPSecretManagerStore) secretPath(account string) string {
	return s.parent() + "/secrets/" + s.SecretID(account)
}

func (s *GCPSecretManagerStore) Get(ctx context.Context, account string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretPath(account) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", &StoreError{Backend: BackendGCPSecretManager, Op: "get", Account: account, Err: err}
	}
	if resp.GetPayload() == nil {
		return "", ErrNotFound
	}
	return string(resp.GetPayload().GetData()), nil
}

func (s *GCPSecretManagerStore) Put(ctx context.Context, account, secret string) error {
	_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   s.parent(),
		SecretId: s.SecretID(account),
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
			Labels: map[string]string{"managed-by": "qb"},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return &StoreError{Backend: BackendGCPSecretManager, Op: "create", Account: account, Err: err}
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretPath(account),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(secret)},
	})
	if err != nil {
		return &StoreError{Backend: BackendGCPSecretManager, Op: "add-version", Account: account, Err: err}
	}
	return nil
}
