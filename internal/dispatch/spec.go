package dispatch

import (
	"github.com/systmms/smcreds/pkg/credential"
)

// DefaultTagPrefix namespaces the reserved tag keys.
const DefaultTagPrefix = "smcreds:"

// Reserved tag names, without prefix.
const (
	TagType               = "type"
	TagUsername           = "username"
	TagFilename           = "filename"
	TagAccessKeyID        = "accesskeyid"
	TagIAMRoleARN         = "iamrolearn"
	TagIAMExternalID      = "iamexternalid"
	TagIAMMFASerialNumber = "iammfaserialnumber"
	TagIAMSessionDuration = "iamsessionduration"
)

// Spec is everything a builder needs to produce one credential.
type Spec struct {
	Type credential.Type

	// ID is the transformed name; StoreID the store identifier the secret is
	// fetched by.
	ID      string
	StoreID string

	// Name is the untransformed secret name.
	Name        string
	Description string
	Tags        map[string]string

	// TagPrefix is prepended to reserved tag names by Tag.
	TagPrefix string

	Secret *credential.Secret
}

// Tag returns the reserved tag name (e.g. "username") under this Spec's prefix.
func (s Spec) Tag(name string) (string, bool) {
	v, ok := s.Tags[s.TagPrefix+name]
	return v, ok
}

// Meta returns the credential metadata for s.
func (s Spec) Meta() credential.Meta {
	return credential.Meta{
		ID:          s.ID,
		StoreID:     s.StoreID,
		Description: s.Description,
		Tags:        s.Tags,
	}
}
