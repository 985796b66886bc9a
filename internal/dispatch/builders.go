package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/systmms/smcreds/pkg/credential"
)

// Builder produces a credential from a spec, or declines with an error
// wrapping ErrDeclined. Builders must not fetch the secret.
type Builder func(spec Spec) (credential.Credential, error)

func builtinBuilders() map[credential.Type]Builder {
	return map[credential.Type]Builder{
		credential.TypeString:               buildString,
		credential.TypeUsernamePassword:     buildUsernamePassword,
		credential.TypeJSONUsernamePassword: buildJSONUsernamePassword,
		credential.TypeFile:                 buildFile,
		credential.TypeCertificate:          buildCertificate,
		credential.TypeAWSCredentials:       buildAWSCredentials,
		credential.TypeSSHUserPrivateKey:    buildSSHUserPrivateKey,
	}
}

func buildString(s Spec) (credential.Credential, error) {
	return credential.NewString(s.Meta(), s.Secret), nil
}

func buildUsernamePassword(s Spec) (credential.Credential, error) {
	username, err := requireTag(s, TagUsername)
	if err != nil {
		return nil, err
	}
	return credential.NewUsernamePassword(s.Meta(), username, s.Secret), nil
}

func buildJSONUsernamePassword(s Spec) (credential.Credential, error) {
	return credential.NewJSONUsernamePassword(s.Meta(), s.Secret), nil
}

func buildFile(s Spec) (credential.Credential, error) {
	filename, ok := s.Tag(TagFilename)
	if !ok || strings.TrimSpace(filename) == "" {
		filename = s.ID
	}
	return credential.NewFile(s.Meta(), filename, s.Secret), nil
}

func buildCertificate(s Spec) (credential.Credential, error) {
	return credential.NewCertificate(s.Meta(), s.Secret), nil
}

func buildAWSCredentials(s Spec) (credential.Credential, error) {
	accessKeyID, err := requireTag(s, TagAccessKeyID)
	if err != nil {
		return nil, err
	}

	var role *credential.RoleAssumption
	if arn, ok := s.Tag(TagIAMRoleARN); ok && arn != "" {
		role = &credential.RoleAssumption{RoleARN: arn}
		role.ExternalID, _ = s.Tag(TagIAMExternalID)
		role.MFASerialNumber, _ = s.Tag(TagIAMMFASerialNumber)
		if raw, ok := s.Tag(TagIAMSessionDuration); ok && raw != "" {
			d, err := ParseSessionDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s%s: %v", ErrInvalidTag, s.TagPrefix, TagIAMSessionDuration, err)
			}
			role.SessionDuration = d
		}
	}
	return credential.NewAWSCredentials(s.Meta(), accessKeyID, s.Secret, role), nil
}

func buildSSHUserPrivateKey(s Spec) (credential.Credential, error) {
	username, err := requireTag(s, TagUsername)
	if err != nil {
		return nil, err
	}
	return credential.NewSSHUserPrivateKey(s.Meta(), username, s.Secret), nil
}

func requireTag(s Spec, name string) (string, error) {
	v, ok := s.Tag(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s%s", ErrMissingTag, s.TagPrefix, name)
	}
	return v, nil
}

// ParseSessionDuration accepts a Go duration ("1h30m") or a whole number of
// seconds ("5400"). The result must be positive.
func ParseSessionDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	var d time.Duration
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d = time.Duration(secs) * time.Second
	} else {
		d, err = time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("not a duration or a number of seconds")
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
