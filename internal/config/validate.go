package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/systmms/smcreds/internal/dispatch"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/secretstores/gcpsm"
	"github.com/systmms/smcreds/pkg/credential"
	"github.com/systmms/smcreds/pkg/secretstore"
	"github.com/systmms/smcreds/pkg/transform"
)

// Validate checks the semantic rules the schema cannot express. All
// violations are reported together.
func (d *Definition) Validate() error {
	var result *multierror.Error

	if d.Version != 1 {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1' at the top of your smcreds.yaml file",
		})
	}

	if len(d.Clients) == 0 {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:      "clients",
			Message:    "at least one client is required",
			Suggestion: "Add an aws.secretsmanager or gcp.secretmanager entry under 'clients:'",
		})
	}

	if strings.TrimSpace(d.TagPrefix) == "" {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:   "tagPrefix",
			Message: "tag prefix must not be blank",
		})
	}

	if !isKnownType(d.DefaultType) {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:      "defaultType",
			Value:      d.DefaultType,
			Message:    "unknown credential type",
			Suggestion: "Use one of: " + knownTypes(),
		})
	}

	names := make(map[string]int)
	for i, c := range d.Clients {
		field := fmt.Sprintf("clients[%d]", i)
		switch c.Type {
		case ClientAWSSecretsManager:
			if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
				result = multierror.Append(result, smerrors.ConfigError{
					Field:      field + ".accessKeyId",
					Message:    "accessKeyId and secretAccessKey must be set together",
					Suggestion: "Remove both to use the default AWS credential chain",
				})
			}
			if c.RoleARN == "" && (c.ExternalID != "" || c.SessionDuration != 0) {
				result = multierror.Append(result, smerrors.ConfigError{
					Field:   field + ".roleArn",
					Message: "externalId and sessionDuration require roleArn",
				})
			}
		case ClientGCPSecretManager:
			if label := d.TagPrefix + dispatch.TagType; !gcpsm.ValidLabelKey(label) {
				result = multierror.Append(result, smerrors.ConfigError{
					Field:      "tagPrefix",
					Value:      d.TagPrefix,
					Message:    fmt.Sprintf("%s cannot be a GCP label key", label),
					Suggestion: "GCP labels allow lowercase letters, digits, '-' and '_'. Use a prefix such as 'smcreds-'",
				})
			}
		default:
			result = multierror.Append(result, smerrors.ConfigError{
				Field:      field + ".type",
				Value:      c.Type,
				Message:    "unknown client type",
				Suggestion: fmt.Sprintf("Use %s or %s", ClientAWSSecretsManager, ClientGCPSecretManager),
			})
		}
		if c.Timeout < 0 {
			result = multierror.Append(result, smerrors.ConfigError{
				Field:   field + ".timeout",
				Value:   c.Timeout.Std(),
				Message: "timeout must not be negative",
			})
		}

		name := c.DisplayName(i)
		if prev, dup := names[name]; dup {
			result = multierror.Append(result, smerrors.ConfigError{
				Field:   field + ".name",
				Value:   name,
				Message: fmt.Sprintf("duplicate client name (also used by clients[%d])", prev),
			})
		}
		names[name] = i
	}

	for i, f := range d.ListSecrets.Filters {
		if !secretstore.FilterKey(f.Key).Valid() {
			result = multierror.Append(result, smerrors.ConfigError{
				Field:      fmt.Sprintf("listSecrets.filters[%d].key", i),
				Value:      f.Key,
				Message:    "unknown filter key",
				Suggestion: "Use tag-key, tag-value, name or description",
			})
		}
		if len(f.Values) == 0 {
			result = multierror.Append(result, smerrors.ConfigError{
				Field:   fmt.Sprintf("listSecrets.filters[%d].values", i),
				Message: "a filter needs at least one value",
			})
		}
	}

	result = multierror.Append(result, validateNameTransformer(d.Transformations.Name)...)
	result = multierror.Append(result, validateDescriptionTransformer(d.Transformations.Description)...)

	if d.Cache.TTL < 0 || d.Cache.SecretTTL < 0 {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:   "cache",
			Message: "ttl and secretTTL must not be negative",
		})
	}
	if d.Fanout.Limit < 0 {
		result = multierror.Append(result, smerrors.ConfigError{
			Field:   "fanout.limit",
			Value:   d.Fanout.Limit,
			Message: "limit must not be negative",
		})
	}

	return result.ErrorOrNil()
}

func validateNameTransformer(s transform.Spec) []error {
	var errs []error
	switch s.Type {
	case transform.KindHide:
		errs = append(errs, smerrors.ConfigError{
			Field:      "transformations.name.type",
			Value:      s.Type,
			Message:    "the name transformer cannot hide names, credential ids must not be empty",
			Suggestion: "Use default, removePrefix or removePrefixes",
		})
	case transform.KindRemovePrefix:
		if strings.TrimSpace(s.Prefix) == "" {
			errs = append(errs, smerrors.ConfigError{
				Field:   "transformations.name.prefix",
				Message: "removePrefix needs a non-blank prefix",
			})
		}
	case transform.KindRemovePrefixes:
		if len(s.Prefixes) == 0 {
			errs = append(errs, smerrors.ConfigError{
				Field:   "transformations.name.prefixes",
				Message: "removePrefixes needs at least one prefix",
			})
		}
	}
	if _, err := s.Build(); err != nil {
		errs = append(errs, smerrors.ConfigError{
			Field:   "transformations.name.type",
			Value:   s.Type,
			Message: err.Error(),
		})
	}
	return errs
}

func validateDescriptionTransformer(s transform.Spec) []error {
	switch s.Type {
	case "", transform.KindDefault, transform.KindHide:
		return nil
	}
	return []error{smerrors.ConfigError{
		Field:      "transformations.description.type",
		Value:      s.Type,
		Message:    "unsupported description transformer",
		Suggestion: "Use default or hide",
	}}
}

func isKnownType(t string) bool {
	for _, known := range credential.Types() {
		if string(known) == t {
			return true
		}
	}
	return false
}

func knownTypes() string {
	var out []string
	for _, t := range credential.Types() {
		out = append(out, string(t))
	}
	return strings.Join(out, ", ")
}

// Transformers builds the name and description chain.
func (d *Definition) Transformers() (transform.Chain, error) {
	name, err := d.Transformations.Name.Build()
	if err != nil {
		return transform.Chain{}, fmt.Errorf("name transformer: %w", err)
	}
	desc, err := d.Transformations.Description.Build()
	if err != nil {
		return transform.Chain{}, fmt.Errorf("description transformer: %w", err)
	}
	return transform.NewChain(name, desc), nil
}

// Filters converts the listing criteria.
func (d *Definition) Filters() []secretstore.Filter {
	filters := make([]secretstore.Filter, 0, len(d.ListSecrets.Filters))
	for _, f := range d.ListSecrets.Filters {
		filters = append(filters, secretstore.Filter{
			Key:    secretstore.FilterKey(f.Key),
			Values: append([]string(nil), f.Values...),
		})
	}
	return filters
}
