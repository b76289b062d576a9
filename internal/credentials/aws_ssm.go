package credentials

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the Systems Manager client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// AWSSSMStore keeps passwords as SecureString parameters in Parameter Store.
type AWSSSMStore struct {
	client SSMAPI
	prefix string
}

// NewAWSSSMStore creates a Parameter Store backed store.
func NewAWSSSMStore(ctx context.Context, opts Options) (*AWSSSMStore, error) {
	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*ssm.Options)
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		clientOpts = append(clientOpts, func(o *ssm.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return NewAWSSSMStoreWithClient(ssm.NewFromConfig(cfg, clientOpts...), opts.Prefix), nil
}

// NewAWSSSMStoreWithClient creates a store around client.
func NewAWSSSMStoreWithClient(client SSMAPI, prefix string) *AWSSSMStore {
	return &AWSSSMStore{client: client, prefix: prefix}
}

func (s *AWSSSMStore) Name() string {
	return BackendAWSSSM
}

// ParameterName returns the hierarchical parameter name used for account.
func (s *AWSSSMStore) ParameterName(account string) string {
	return "/" + secretName(s.prefix, "/", account, ssmNameChar)
}

func (s *AWSSSMStore) Get(ctx context.Context, account string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.ParameterName(account)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *ssmtypes.ParameterNotFound
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", &StoreError{Backend: BackendAWSSSM, Op: "get", Account: account, Err: err}
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", ErrNotFound
	}
	return aws.ToString(out.Parameter.Value), nil
}

func (s *AWSSSMStore) Put(ctx context.Context, account, secret string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.ParameterName(account)),
		Value:     aws.String(secret),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return &StoreError{Backend: BackendAWSSSM, Op: "put", Account: account, Err: err}
	}
	return nil
}

func ssmNameChar(r rune) bool {
	switch r {
	case '_', '.', '-':
		return true
	}
	return isAlnum(r)
}
