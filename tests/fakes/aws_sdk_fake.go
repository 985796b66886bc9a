package fakes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of Secrets Manager operations the awssm
// adapter uses.
type SecretsManagerAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// FakeSecretsManagerClient is an in-memory SecretsManagerAPI. Secrets are
// listed in insertion order; page tokens are decimal offsets. Filters follow
// the service's prefix-match semantics. Unlike the service, secrets scheduled
// for deletion are listed, so callers exercise their own exclusion.
type FakeSecretsManagerClient struct {
	// Secrets in listing order.
	Secrets []*SecretData
	// PageSize caps each page when MaxResults is not set. Zero means all.
	PageSize int
	// Errors maps secret ARNs or names to errors GetSecretValue returns.
	Errors map[string]error
	// ListSecretsFunc allows custom behavior for ListSecrets
	ListSecretsFunc func(ctx context.Context, params *secretsmanager.ListSecretsInput) (*secretsmanager.ListSecretsOutput, error)
	// GetSecretValueFunc allows custom behavior for GetSecretValue
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)

	// ListInputs records every ListSecrets input.
	ListInputs []*secretsmanager.ListSecretsInput

	mu sync.Mutex
}

// SecretData holds the data for a fake secret
type SecretData struct {
	ARN          string
	Name         string
	Description  string
	Tags         map[string]string
	SecretString *string
	SecretBinary []byte
	DeletedDate  *time.Time
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Errors: make(map[string]error),
	}
}

// AddSecretString adds a text secret and returns it for further tweaking.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string, tags map[string]string) *SecretData {
	return f.add(&SecretData{Name: name, SecretString: aws.String(value), Tags: tags})
}

// AddSecretBinary adds a binary secret.
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte, tags map[string]string) *SecretData {
	return f.add(&SecretData{Name: name, SecretBinary: value, Tags: tags})
}

func (f *FakeSecretsManagerClient) add(s *SecretData) *SecretData {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ARN == "" {
		s.ARN = ARN(s.Name)
	}
	f.Secrets = append(f.Secrets, s)
	return s
}

// AddError configures GetSecretValue to fail for a secret ARN or name.
func (f *FakeSecretsManagerClient) AddError(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[id] = err
}

// ListSecrets implements SecretsManagerAPI.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	f.ListInputs = append(f.ListInputs, params)
	custom := f.ListSecretsFunc
	f.mu.Unlock()
	if custom != nil {
		return custom(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []*SecretData
	for _, s := range f.Secrets {
		if matchesAWSFilters(params.Filters, s) {
			matching = append(matching, s)
		}
	}

	offset := 0
	if params.NextToken != nil {
		n, err := strconv.Atoi(*params.NextToken)
		if err != nil {
			return nil, &smithy.GenericAPIError{Code: "InvalidNextTokenException", Message: "invalid token"}
		}
		offset = n
	}
	size := f.PageSize
	if params.MaxResults != nil {
		size = int(*params.MaxResults)
	}
	end := len(matching)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	if offset > end {
		offset = end
	}

	out := &secretsmanager.ListSecretsOutput{}
	for _, s := range matching[offset:end] {
		entry := types.SecretListEntry{
			ARN:         aws.String(s.ARN),
			Name:        aws.String(s.Name),
			DeletedDate: s.DeletedDate,
		}
		if s.Description != "" {
			entry.Description = aws.String(s.Description)
		}
		for k, v := range s.Tags {
			entry.Tags = append(entry.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		out.SecretList = append(out.SecretList, entry)
	}
	if end < len(matching) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// GetSecretValue implements SecretsManagerAPI.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.GetSecretValueFunc != nil {
		return f.GetSecretValueFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.SecretId)
	if err, ok := f.Errors[id]; ok {
		return nil, err
	}
	for _, s := range f.Secrets {
		if s.ARN != id && s.Name != id {
			continue
		}
		if err, ok := f.Errors[s.Name]; ok {
			return nil, err
		}
		return &secretsmanager.GetSecretValueOutput{
			ARN:          aws.String(s.ARN),
			Name:         aws.String(s.Name),
			SecretString: s.SecretString,
			SecretBinary: s.SecretBinary,
		}, nil
	}
	return nil, &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", id)),
	}
}

func matchesAWSFilters(filters []types.Filter, s *SecretData) bool {
	for _, f := range filters {
		if !matchesAWSFilter(f, s) {
			return false
		}
	}
	return true
}

func matchesAWSFilter(f types.Filter, s *SecretData) bool {
	for _, v := range f.Values {
		switch f.Key {
		case types.FilterNameStringTypeName:
			if strings.HasPrefix(s.Name, v) {
				return true
			}
		case types.FilterNameStringTypeDescription:
			if strings.HasPrefix(s.Description, v) {
				return true
			}
		case types.FilterNameStringTypeTagKey:
			for k := range s.Tags {
				if strings.HasPrefix(k, v) {
					return true
				}
			}
		case types.FilterNameStringTypeTagValue:
			for _, tv := range s.Tags {
				if strings.HasPrefix(tv, v) {
					return true
				}
			}
		default:
			return true
		}
	}
	return false
}

// AWSAccessDeniedError returns the API error the service raises for missing
// permissions.
func AWSAccessDeniedError(message string) error {
	return &smithy.GenericAPIError{Code: "AccessDeniedException", Message: message, Fault: smithy.FaultClient}
}

// AWSThrottlingError returns a retryable throttling API error.
func AWSThrottlingError() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded", Fault: smithy.FaultClient}
}
