// Package awssm adapts AWS Secrets Manager to secretstore.Client.
package awssm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/systmms/smcreds/pkg/secretstore"
)

// Type is the client type in configuration.
const Type = "aws.secretsmanager"

// DefaultRegion is used when neither the configuration nor the environment
// names one.
const DefaultRegion = "us-east-1"

// SecretsManagerClientAPI is the subset of the Secrets Manager client the
// adapter calls. It allows injecting fakes in tests.
type SecretsManagerClientAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Config holds the connection parameters for one Secrets Manager client.
type Config struct {
	Region   string
	Endpoint string // optional, e.g. LocalStack

	// Static credentials, mainly for LocalStack. Both must be set to apply.
	AccessKeyID     string
	SecretAccessKey string

	// Optional STS assume-role.
	RoleARN         string
	ExternalID      string
	SessionDuration time.Duration

	// PageSize is passed as MaxResults. Zero leaves it to the service.
	PageSize int32
}

// Client is a Secrets Manager backed secretstore.Client.
type Client struct {
	name     string
	api      SecretsManagerClientAPI
	region   string
	pageSize int32
}

// Option configures a Client.
type Option func(*Client)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(api SecretsManagerClientAPI) Option {
	return func(c *Client) {
		c.api = api
	}
}

// New creates a Client. Unless an API client is injected, the default AWS
// credential chain is loaded, optionally replaced by static credentials and
// wrapped in an assume-role provider.
func New(ctx context.Context, name string, cfg Config, opts ...Option) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	c := &Client{
		name:     name,
		region:   region,
		pageSize: cfg.PageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api != nil {
		return c, nil
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg, func(o *sts.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		provider := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "smcreds"
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
			if cfg.SessionDuration > 0 {
				o.Duration = cfg.SessionDuration
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	c.api = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return c, nil
}

// Name implements secretstore.Client.
func (c *Client) Name() string {
	return c.name
}

// Region returns the region the client talks to.
func (c *Client) Region() string {
	return c.region
}

// Supports implements secretstore.Client. Secrets Manager filter values are
// prefix matches, so every filter is still sent to narrow the listing but
// exact matching is left to the lister.
func (c *Client) Supports(secretstore.FilterKey) bool {
	return false
}

// ListSecrets implements secretstore.Client.
func (c *Client) ListSecrets(ctx context.Context, filters []secretstore.Filter, pageToken string) (secretstore.Page, error) {
	input := &secretsmanager.ListSecretsInput{
		Filters: toAWSFilters(filters),
	}
	if c.pageSize > 0 {
		input.MaxResults = aws.Int32(c.pageSize)
	}
	if pageToken != "" {
		input.NextToken = aws.String(pageToken)
	}

	out, err := c.api.ListSecrets(ctx, input)
	if err != nil {
		return secretstore.Page{}, c.handleError(err, "")
	}

	page := secretstore.Page{
		Entries: make([]secretstore.Entry, 0, len(out.SecretList)),
	}
	for _, s := range out.SecretList {
		e, err := toEntry(s)
		if err != nil {
			return secretstore.Page{}, err
		}
		page.Entries = append(page.Entries, e)
	}
	if out.NextToken != nil {
		page.NextToken = *out.NextToken
	}
	return page, nil
}

// GetSecretValue implements secretstore.Client. id is the secret ARN.
func (c *Client) GetSecretValue(ctx context.Context, id string) (secretstore.SecretValue, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return secretstore.SecretValue{}, c.handleError(err, id)
	}

	switch {
	case out.SecretString != nil:
		return secretstore.NewStringValue(*out.SecretString), nil
	case out.SecretBinary != nil:
		return secretstore.NewBinaryValue(out.SecretBinary), nil
	}
	return secretstore.SecretValue{}, fmt.Errorf("secret %s has no value", id)
}

func toAWSFilters(filters []secretstore.Filter) []types.Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]types.Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, types.Filter{
			Key:    types.FilterNameStringType(f.Key),
			Values: append([]string(nil), f.Values...),
		})
	}
	return out
}

// errMalformedEntry is returned for list entries without an ARN.
var errMalformedEntry = errors.New("secret list entry has no ARN")

func toEntry(s types.SecretListEntry) (secretstore.Entry, error) {
	if s.ARN == nil || *s.ARN == "" {
		return secretstore.Entry{}, errMalformedEntry
	}
	e := secretstore.Entry{
		ID:        *s.ARN,
		Name:      aws.ToString(s.Name),
		Tags:      make(map[string]string, len(s.Tags)),
		DeletedAt: s.DeletedDate,
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	e.Description = aws.ToString(s.Description)
	for _, t := range s.Tags {
		if t.Key == nil {
			continue
		}
		e.Tags[*t.Key] = aws.ToString(t.Value)
	}
	return e, nil
}

// handleError converts AWS errors to secretstore errors.
func (c *Client) handleError(err error, id string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			return secretstore.NotFoundError{Store: c.name, ID: id}
		case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException",
			"InvalidSignatureException", "ExpiredTokenException", "IncompleteSignature":
			return secretstore.AuthError{
				Store:   c.name,
				Message: fmt.Sprintf("AWS authentication/authorization failed: %s", apiErr.ErrorMessage()),
				Err:     err,
			}
		}
	}
	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

var _ secretstore.Client = (*Client)(nil)
