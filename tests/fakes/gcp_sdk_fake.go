package fakes

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretAPI is an in-memory gcpsm.SecretManagerAPI. It understands the
// "labels.KEY:*" terms the adapter generates, joined with OR inside
// parentheses and AND between groups.
type FakeGCPSecretAPI struct {
	// Secrets in listing order.
	Secrets []*secretmanagerpb.Secret
	// Payloads maps secret resource names to their latest payload.
	Payloads map[string][]byte
	// Errors maps resource names to errors AccessSecretVersion returns.
	Errors map[string]error
	// ListError, when set, fails every ListSecretsPage call.
	ListError error

	// ListRequests records every list request.
	ListRequests []*secretmanagerpb.ListSecretsRequest

	mu sync.Mutex
}

// NewFakeGCPSecretAPI creates an empty fake.
func NewFakeGCPSecretAPI() *FakeGCPSecretAPI {
	return &FakeGCPSecretAPI{
		Payloads: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecret adds a secret with labels, annotations and a payload, and returns
// it for further tweaking.
func (f *FakeGCPSecretAPI) AddSecret(project, name string, labels, annotations map[string]string, payload []byte) *secretmanagerpb.Secret {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &secretmanagerpb.Secret{
		Name:        GCPSecretName(project, name),
		Labels:      labels,
		Annotations: annotations,
	}
	f.Secrets = append(f.Secrets, s)
	if payload != nil {
		f.Payloads[s.Name] = payload
	}
	return s
}

// AddError configures AccessSecretVersion to fail for a secret.
func (f *FakeGCPSecretAPI) AddError(resourceName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resourceName] = err
}

// ListSecretsPage implements gcpsm.SecretManagerAPI.
func (f *FakeGCPSecretAPI) ListSecretsPage(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) ([]*secretmanagerpb.Secret, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListRequests = append(f.ListRequests, req)
	if f.ListError != nil {
		return nil, "", f.ListError
	}

	groups := parseLabelFilter(req.GetFilter())
	var matching []*secretmanagerpb.Secret
	for _, s := range f.Secrets {
		if !strings.HasPrefix(s.GetName(), req.GetParent()+"/secrets/") {
			continue
		}
		if matchesLabelGroups(groups, s.GetLabels()) {
			matching = append(matching, s)
		}
	}

	offset := 0
	if tok := req.GetPageToken(); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, "", GCPInvalidArgumentError("invalid page token")
		}
		offset = n
	}
	end := len(matching)
	if size := int(req.GetPageSize()); size > 0 && offset+size < end {
		end = offset + size
	}
	if offset > end {
		offset = end
	}

	next := ""
	if end < len(matching) {
		next = strconv.Itoa(end)
	}
	return matching[offset:end], next, nil
}

// AccessSecretVersion implements gcpsm.SecretManagerAPI.
func (f *FakeGCPSecretAPI) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := strings.TrimSuffix(req.GetName(), "/versions/latest")
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	data, ok := f.Payloads[name]
	if !ok {
		return nil, GCPNotFoundError(req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    name + "/versions/1",
		Payload: &secretmanagerpb.SecretPayload{Data: append([]byte(nil), data...)},
	}, nil
}

var labelTerm = regexp.MustCompile(`labels\.([a-z0-9_-]+):\*`)

func parseLabelFilter(filter string) [][]string {
	if filter == "" {
		return nil
	}
	var groups [][]string
	for _, group := range strings.Split(filter, " AND ") {
		var keys []string
		for _, m := range labelTerm.FindAllStringSubmatch(group, -1) {
			keys = append(keys, m[1])
		}
		groups = append(groups, keys)
	}
	return groups
}

func matchesLabelGroups(groups [][]string, labels map[string]string) bool {
	for _, keys := range groups {
		found := false
		for _, k := range keys {
			if _, ok := labels[k]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GCPSecretName returns the resource name of a secret.
func GCPSecretName(project, name string) string {
	return "projects/" + project + "/secrets/" + name
}

// GCP error helpers

// GCPNotFoundError creates a GCP not found error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Resource %s not found", resourceName)
}

// GCPPermissionDeniedError creates a GCP permission denied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPUnauthenticatedError creates a GCP unauthenticated error
func GCPUnauthenticatedError(message string) error {
	return status.Error(codes.Unauthenticated, message)
}

// GCPInvalidArgumentError creates a GCP invalid argument error
func GCPInvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

// GCPResourceExhaustedError creates a GCP resource exhausted (throttled) error
func GCPResourceExhaustedError() error {
	return status.Errorf(codes.ResourceExhausted, "Quota exceeded")
}
