package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/smcreds/internal/dispatch"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/logging"
	"github.com/systmms/smcreds/pkg/credential"
	"github.com/systmms/smcreds/pkg/transform"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "smcreds.yaml"

// Client types understood by internal/secretstores.
const (
	ClientAWSSecretsManager = "aws.secretsmanager"
	ClientGCPSecretManager  = "gcp.secretmanager"
)

// DefaultMetricsAddr is used by the serve command when metrics.addr is unset.
const DefaultMetricsAddr = ":9090"

//go:embed schema.json
var schemaJSON []byte

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the smcreds.yaml structure
type Definition struct {
	Version         int                   `yaml:"version"`
	TagPrefix       string                `yaml:"tagPrefix,omitempty"`
	DefaultType     string                `yaml:"defaultType,omitempty"`
	Clients         []ClientConfig        `yaml:"clients"`
	ListSecrets     ListSecretsConfig     `yaml:"listSecrets,omitempty"`
	Transformations TransformationsConfig `yaml:"transformations,omitempty"`
	Cache           CacheConfig           `yaml:"cache,omitempty"`
	Fanout          FanoutConfig          `yaml:"fanout,omitempty"`
	Metrics         MetricsConfig         `yaml:"metrics,omitempty"`
}

// ClientConfig selects and configures one remote secret store. Fields that
// do not apply to Type are ignored.
type ClientConfig struct {
	Type    string   `yaml:"type"`
	Name    string   `yaml:"name,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`

	// aws.secretsmanager
	Region          string   `yaml:"region,omitempty"`
	Endpoint        string   `yaml:"endpoint,omitempty"`
	AccessKeyID     string   `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string   `yaml:"secretAccessKey,omitempty"`
	RoleARN         string   `yaml:"roleArn,omitempty"`
	ExternalID      string   `yaml:"externalId,omitempty"`
	SessionDuration Duration `yaml:"sessionDuration,omitempty"`

	// gcp.secretmanager
	Project                   string `yaml:"project,omitempty"`
	CredentialsFile           string `yaml:"credentialsFile,omitempty"`
	ImpersonateServiceAccount string `yaml:"impersonateServiceAccount,omitempty"`
}

// DisplayName returns Name, or the type qualified by its position when no
// name was given.
func (c ClientConfig) DisplayName(index int) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s[%d]", c.Type, index)
}

// ListSecretsConfig controls how clients are listed.
type ListSecretsConfig struct {
	PageSize int            `yaml:"pageSize,omitempty"`
	Filters  []FilterConfig `yaml:"filters,omitempty"`
}

// FilterConfig is one listing criterion. See secretstore.Filter.
type FilterConfig struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

// TransformationsConfig holds the name and description transformers.
type TransformationsConfig struct {
	Name        transform.Spec `yaml:"name,omitempty"`
	Description transform.Spec `yaml:"description,omitempty"`
}

// CacheConfig controls memoization of the credential list and of fetched
// secret values. A zero TTL never expires.
type CacheConfig struct {
	Enabled   bool     `yaml:"enabled"`
	TTL       Duration `yaml:"ttl,omitempty"`
	SecretTTL Duration `yaml:"secretTTL,omitempty"`
}

// FanoutConfig bounds concurrent credential builds. Zero is unbounded.
type FanoutConfig struct {
	Limit int `yaml:"limit,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint of the serve command.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads, validates and parses the smcreds.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return smerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create smcreds.yaml or pass --config",
			}
		}
		return smerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	if c.Logger != nil {
		c.Logger.Debug("Loaded %s: %d client(s), tag prefix %q", c.Path, len(def.Clients), def.TagPrefix)
	}
	c.Definition = def
	return nil
}

// Parse decodes a configuration document, checks it against the embedded
// schema, fills defaults and validates it.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, smerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return nil, smerrors.ConfigError{
			Message:    "configuration file is empty",
			Suggestion: "Add 'version: 1' and at least one entry under 'clients:'",
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, smerrors.ConfigError{
			Message:    err.Error(),
			Suggestion: "Durations use Go syntax such as 30s, 5m or 1h",
		}
	}

	def.ApplyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func validateSchema(doc map[string]interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return smerrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Compare the file with the example in the README",
		}
	}
	return nil
}

// ApplyDefaults fills the optional fields left empty.
func (d *Definition) ApplyDefaults() {
	if d.TagPrefix == "" {
		d.TagPrefix = dispatch.DefaultTagPrefix
	}
	if d.DefaultType == "" {
		d.DefaultType = string(credential.TypeString)
	}
	if d.Metrics.Addr == "" {
		d.Metrics.Addr = DefaultMetricsAddr
	}
}
