package credential

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/systmms/smcreds/pkg/lazy"
)

// RoleAssumption carries optional STS assume-role parameters. smcreds does not
// assume the role itself; consumers do.
type RoleAssumption struct {
	RoleARN         string
	ExternalID      string
	MFASerialNumber string
	SessionDuration time.Duration
}

// AWSCredentials is an IAM access key pair.
type AWSCredentials struct {
	base
	accessKeyID string
	secretKey   *Secret
	role        *RoleAssumption
}

// NewAWSCredentials creates an AWSCredentials credential. role may be nil.
func NewAWSCredentials(m Meta, accessKeyID string, secretKey *Secret, role *RoleAssumption) *AWSCredentials {
	if role != nil {
		r := *role
		role = &r
	}
	return &AWSCredentials{
		base:        newBase(m, TypeAWSCredentials),
		accessKeyID: accessKeyID,
		secretKey:   secretKey,
		role:        role,
	}
}

// AccessKeyID returns the access key id.
func (c *AWSCredentials) AccessKeyID() string {
	return c.accessKeyID
}

// SecretAccessKey returns the secret key.
func (c *AWSCredentials) SecretAccessKey(ctx context.Context) (string, error) {
	return readText(ctx, c.meta.ID, c.secretKey)
}

// Role returns a copy of the role assumption parameters, or nil.
func (c *AWSCredentials) Role() *RoleAssumption {
	if c.role == nil {
		return nil
	}
	r := *c.role
	return &r
}

// Retrieve implements aws.CredentialsProvider with the static key pair.
// Wrap it in stscreds.NewAssumeRoleProvider to honour Role.
func (c *AWSCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	secret, err := c.SecretAccessKey(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     c.accessKeyID,
		SecretAccessKey: secret,
		Source:          "smcreds:" + c.meta.ID,
	}, nil
}

// Snapshot implements Credential.
func (c *AWSCredentials) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.secretKey)
	if err != nil {
		return nil, err
	}
	return &AWSCredentials{base: c.base, accessKeyID: c.accessKeyID, secretKey: s, role: c.Role()}, nil
}

var _ aws.CredentialsProvider = (*AWSCredentials)(nil)
