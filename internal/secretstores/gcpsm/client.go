// Package gcpsm adapts Google Cloud Secret Manager to secretstore.Client.
//
// Labels are exposed as tags and the "description" annotation as the
// description. Secrets whose expire_time has passed are reported as deleted.
// Label keys only allow lowercase letters, digits, "_" and "-", so the tag
// prefix must be label-safe (e.g. "smcreds-") when listing from GCP.
package gcpsm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/smcreds/pkg/secretstore"
)

// Type is the client type in configuration.
const Type = "gcp.secretmanager"

// DefaultPageSize is used when the configuration leaves the page size unset.
const DefaultPageSize = 100

// DescriptionAnnotation is the annotation read as the secret description.
const DescriptionAnnotation = "description"

var labelKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

// ValidLabelKey reports whether k can be a Secret Manager label key.
func ValidLabelKey(k string) bool {
	return labelKeyPattern.MatchString(k)
}

// SecretManagerAPI is the subset of Secret Manager operations the adapter
// calls, reduced to one list page per call so it can be faked.
type SecretManagerAPI interface {
	// ListSecretsPage returns the page selected by req.PageToken and the
	// token of the next page ("" at the end).
	ListSecretsPage(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) ([]*secretmanagerpb.Secret, string, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Config holds the connection parameters for one Secret Manager client.
type Config struct {
	Project string

	// CredentialsFile is a service account key file; "~/" is expanded.
	CredentialsFile string

	// ImpersonateServiceAccount, when set, is the principal all calls run as.
	ImpersonateServiceAccount string

	PageSize int32
}

// Client is a Secret Manager backed secretstore.Client.
type Client struct {
	name     string
	project  string
	pageSize int32
	api      SecretManagerAPI
	closer   func() error
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSecretManagerAPI sets a custom API implementation (for testing).
func WithSecretManagerAPI(api SecretManagerAPI) Option {
	return func(c *Client) {
		c.api = api
	}
}

// WithClock overrides the clock used to evaluate expire_time.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Client. The project falls back to GOOGLE_CLOUD_PROJECT,
// GCLOUD_PROJECT and GCP_PROJECT.
func New(ctx context.Context, name string, cfg Config, opts ...Option) (*Client, error) {
	project := cfg.Project
	if project == "" {
		project = projectFromEnv()
	}
	if project == "" {
		return nil, fmt.Errorf("project is required for %s", Type)
	}

	c := &Client{
		name:     name,
		project:  project,
		pageSize: cfg.PageSize,
		now:      time.Now,
		closer:   func() error { return nil },
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api != nil {
		return c, nil
	}

	clientOpts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sm, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	c.api = gapicAPI{client: sm}
	c.closer = sm.Close
	return c, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if path := cfg.CredentialsFile; path != "" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		opts = append(opts, option.WithCredentialsFile(path))
	}

	if cfg.ImpersonateServiceAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: cfg.ImpersonateServiceAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		opts = []option.ClientOption{option.WithTokenSource(ts)}
	}
	return opts, nil
}

func projectFromEnv() string {
	for _, k := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Name implements secretstore.Client.
func (c *Client) Name() string {
	return c.name
}

// Project returns the project secrets are listed from.
func (c *Client) Project() string {
	return c.project
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.closer()
}

// Supports implements secretstore.Client. Only label presence can be
// expressed exactly in the list filter syntax.
func (c *Client) Supports(k secretstore.FilterKey) bool {
	return k == secretstore.FilterTagKey
}

// ListSecrets implements secretstore.Client.
func (c *Client) ListSecrets(ctx context.Context, filters []secretstore.Filter, pageToken string) (secretstore.Page, error) {
	filter, satisfiable := listFilter(filters)
	if !satisfiable {
		return secretstore.Page{}, nil
	}

	secrets, next, err := c.api.ListSecretsPage(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:    "projects/" + c.project,
		PageSize:  c.pageSize,
		PageToken: pageToken,
		Filter:    filter,
	})
	if err != nil {
		return secretstore.Page{}, c.handleError(err, "")
	}

	page := secretstore.Page{
		Entries:   make([]secretstore.Entry, 0, len(secrets)),
		NextToken: next,
	}
	for _, s := range secrets {
		page.Entries = append(page.Entries, c.toEntry(s))
	}
	return page, nil
}

// listFilter renders tag-key filters as label presence terms. A tag-key
// filter whose values are all invalid label keys can match nothing.
func listFilter(filters []secretstore.Filter) (string, bool) {
	var clauses []string
	for _, f := range filters {
		if f.Key != secretstore.FilterTagKey {
			continue
		}
		var terms []string
		for _, v := range f.Values {
			if ValidLabelKey(v) {
				terms = append(terms, "labels."+v+":*")
			}
		}
		if len(terms) == 0 {
			return "", false
		}
		clauses = append(clauses, "("+strings.Join(terms, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), true
}

func (c *Client) toEntry(s *secretmanagerpb.Secret) secretstore.Entry {
	name := s.GetName()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	e := secretstore.Entry{
		ID:          s.GetName(),
		Name:        name,
		Description: s.GetAnnotations()[DescriptionAnnotation],
		Tags:        make(map[string]string, len(s.GetLabels())),
	}
	for k, v := range s.GetLabels() {
		e.Tags[k] = v
	}
	if exp := s.GetExpireTime(); exp != nil {
		if t := exp.AsTime(); !t.After(c.now()) {
			e.DeletedAt = &t
		}
	}
	return e
}

// GetSecretValue implements secretstore.Client. id is the secret resource
// name; the latest version is read.
func (c *Client) GetSecretValue(ctx context.Context, id string) (secretstore.SecretValue, error) {
	resp, err := c.api.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: id + "/versions/latest",
	})
	if err != nil {
		return secretstore.SecretValue{}, c.handleError(err, id)
	}
	if resp.GetPayload() == nil {
		return secretstore.SecretValue{}, fmt.Errorf("secret %s has no payload", id)
	}
	return secretstore.NewBinaryValue(resp.GetPayload().GetData()), nil
}

// handleError converts gRPC status errors to secretstore errors.
func (c *Client) handleError(err error, id string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return secretstore.NotFoundError{Store: c.name, ID: id}
	case codes.PermissionDenied, codes.Unauthenticated:
		return secretstore.AuthError{
			Store:   c.name,
			Message: fmt.Sprintf("GCP authentication/authorization failed: %s", status.Convert(err).Message()),
			Err:     err,
		}
	}
	return fmt.Errorf("GCP Secret Manager error: %w", err)
}

// gapicAPI adapts the generated client's iterator to one page per call.
type gapicAPI struct {
	client *secretmanager.Client
}

func (g gapicAPI) ListSecretsPage(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) ([]*secretmanagerpb.Secret, string, error) {
	it := g.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: req.GetParent(),
		Filter: req.GetFilter(),
	})
	var secrets []*secretmanagerpb.Secret
	next, err := iterator.NewPager(it, int(req.GetPageSize()), req.GetPageToken()).NextPage(&secrets)
	if err != nil {
		return nil, "", err
	}
	return secrets, next, nil
}

func (g gapicAPI) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.client.AccessSecretVersion(ctx, req)
}

var _ secretstore.Client = (*Client)(nil)
