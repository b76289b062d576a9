package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their current string value
	Secrets map[string]string
	// Errors maps secret names to errors returned by every call
	Errors map[string]error

	// Calls records operation names in order
	Calls []string
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString seeds a secret.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddError makes every call for name fail with err.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func (f *FakeSecretsManagerClient) record(op, name string) error {
	f.Calls = append(f.Calls, op)
	return f.Errors[name]
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// GetSecretValue returns the stored value or ResourceNotFoundException.
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err := f.record("GetSecretValue", name); err != nil {
		return nil, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return nil, notFound(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         params.SecretId,
		SecretString: aws.String(value),
	}, nil
}

// PutSecretValue updates an existing secret.
func (f *FakeSecretsManagerClient) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err := f.record("PutSecretValue", name); err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, notFound(name)
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{Name: params.SecretId}, nil
}

// CreateSecret creates a new secret.
func (f *FakeSecretsManagerClient) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err := f.record("CreateSecret", name); err != nil {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("secret already exists")}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

// FakeSSMClient is an in-memory Parameter Store.
type FakeSSMClient struct {
	mu sync.Mutex

	// Parameters maps names to values
	Parameters map[string]string
	// Types records the type each parameter was written with
	Types map[string]ssmtypes.ParameterType
	// Errors maps names to errors returned by every call
	Errors map[string]error
}

// NewFakeSSMClient creates an empty fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Types:      make(map[string]ssmtypes.ParameterType),
		Errors:     make(map[string]error),
	}
}

// AddParameter seeds a SecureString parameter.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Parameters[name] = value
	f.Types[name] = ssmtypes.ParameterTypeSecureString
}

// GetParameter returns the stored value or ParameterNotFound.
func (f *FakeSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	value, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found: " + name)}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  params.Name,
			Value: aws.String(value),
			Type:  f.Types[name],
		},
	}, nil
}

// PutParameter stores a value. Existing names need Overwrite.
func (f *FakeSSMClient) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	if _, ok := f.Parameters[name]; ok && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("parameter exists: " + name)}
	}
	f.Parameters[name] = aws.ToString(params.Value)
	f.Types[name] = params.Type
	return &ssm.PutParameterOutput{Version: 1}, nil
}
