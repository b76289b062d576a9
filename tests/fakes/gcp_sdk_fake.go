package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager keyed by
// full resource name (projects/X/secrets/Y).
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex

	// Secrets holds created secrets
	Secrets map[string]*secretmanagerpb.Secret
	// Versions holds every payload added, oldest first
	Versions map[string][][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:  make(map[string]*secretmanagerpb.Secret),
		Versions: make(map[string][][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretString seeds a secret with one version.
func (f *FakeGCPSecretManagerClient) AddSecretString(projectID, secretID, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretID)
	f.Secrets[name] = &secretmanagerpb.Secret{Name: name}
	f.Versions[name] = append(f.Versions[name], []byte(value))
}

// AddError makes calls for resourceName fail with err.
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resourceName] = err
}

// AccessSecretVersion serves "latest" or a 1-based version number.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret, version, _ := strings.Cut(req.GetName(), "/versions/")
	if err := f.Errors[secret]; err != nil {
		return nil, err
	}
	versions := f.Versions[secret]
	if len(versions) == 0 {
		return nil, GCPNotFoundError(req.GetName())
	}
	data := versions[len(versions)-1]
	if version != "latest" {
		var n int
		if _, err := fmt.Sscanf(version, "%d", &n); err != nil || n < 1 || n > len(versions) {
			return nil, GCPNotFoundError(req.GetName())
		}
		data = versions[n-1]
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

// CreateSecret registers a secret, or fails with AlreadyExists.
func (f *FakeGCPSecretManagerClient) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest, _ ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "Secret [%s] already exists", name)
	}
	secret := &secretmanagerpb.Secret{Name: name, Labels: req.GetSecret().GetLabels()}
	f.Secrets[name] = secret
	return secret, nil
}

// AddSecretVersion appends a payload to an existing secret.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetParent()
	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, GCPNotFoundError(name)
	}
	f.Versions[name] = append(f.Versions[name], req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", name, len(f.Versions[name])),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// GCPNotFoundError creates a gRPC NotFound error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Resource %s not found", resourceName)
}

// GCPPermissionDeniedError creates a gRPC PermissionDenied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}
