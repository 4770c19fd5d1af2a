package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const EnvPrefix = "ATLAS"

type Config struct {
	Connections []ConnectionConfig `mapstructure:"connections" validate:"dive"`
	Pricing     PricingConfig      `mapstructure:"pricing"`
	Store       StoreConfig        `mapstructure:"store"`
	Server      ServerConfig       `mapstructure:"server"`
	Log         LogConfig          `mapstructure:"log"`

	// DatabricksConfig, when set, adds a connection for every complete
	// profile of that .databrickscfg file.
	DatabricksConfig string `mapstructure:"databrickscfg"`
}

type ConnectionConfig struct {
	ID            string           `mapstructure:"id" validate:"required"`
	Provider      string           `mapstructure:"provider" validate:"required,oneof=aws azure databricks snowflake yandex"`
	Scope         ScopeConfig      `mapstructure:"scope"`
	Credential    CredentialConfig `mapstructure:"credential"`
	ResourceTypes []string         `mapstructure:"resource_types"`
	Limits        LimitsConfig     `mapstructure:"limits"`
}

type ScopeConfig struct {
	OrganizationID string            `mapstructure:"organization_id"`
	AccountID      string            `mapstructure:"account_id"`
	FolderIDs      []string          `mapstructure:"folder_ids"`
	Regions        []string          `mapstructure:"regions"`
	Extra          map[string]string `mapstructure:"extra"`
}

// CredentialConfig names where a secret lives. When ValueEnv is set the
// value is read from that environment variable.
type CredentialConfig struct {
	Source   string `mapstructure:"source"`
	Value    string `mapstructure:"value"`
	ValueEnv string `mapstructure:"value_env"`
}

type LimitsConfig struct {
	MaxConcurrency    int           `mapstructure:"max_concurrency" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" validate:"gte=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=0"`
}

type PricingConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=duckdb memory"`
	Path   string `mapstructure:"path" validate:"required_if=Driver duckdb"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port string `mapstructure:"port" validate:"required,numeric"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pricing.path", "pricing.yaml")
	v.SetDefault("store.driver", "duckdb")
	v.SetDefault("store.path", "inventory-atlas.db")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
}

// Load reads the YAML config at path. With an empty path it looks for
// atlas.yaml in the working directory and $HOME/.atlas, and falls back to
// defaults when none exists. ATLAS_* environment variables override file
// values (ATLAS_SERVER_PORT overrides server.port).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("atlas")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.atlas")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Connections))
	for _, conn := range c.Connections {
		if _, dup := seen[conn.ID]; dup {
			return fmt.Errorf("invalid config: duplicate connection id %q", conn.ID)
		}
		seen[conn.ID] = struct{}{}
		for _, t := range conn.ResourceTypes {
			if !domain.ResourceType(t).Valid() {
				return fmt.Errorf("invalid config: connection %s: unknown resource type %q", conn.ID, t)
			}
		}
		if err := conn.validateProvider(); err != nil {
			return fmt.Errorf("invalid config: connection %s: %w", conn.ID, err)
		}
	}
	return nil
}

// credentialSources lists the accepted credential sources per provider. An
// empty source means the provider's default chain.
var credentialSources = map[domain.ProviderKind][]string{
	domain.ProviderAWS:        {"", "profile"},
	domain.ProviderAzure:      {"", "default", "cli", "profile"},
	domain.ProviderDatabricks: {"", "profile", "token"},
	domain.ProviderSnowflake:  {"file", "dsn"},
	domain.ProviderYandex:     {"key_file", "key", "iam_token"},
}

func (c ConnectionConfig) validateProvider() error {
	kind := domain.ProviderKind(c.Provider)
	source := c.Credential.Source
	if !slices.Contains(credentialSources[kind], source) {
		return fmt.Errorf("unsupported %s credential source %q", kind, source)
	}
	hasValue := c.Credential.Value != "" || c.Credential.ValueEnv != ""

	switch kind {
	case domain.ProviderAzure:
		if c.Scope.AccountID == "" {
			return errors.New("subscription id (scope.account_id) is required")
		}
	case domain.ProviderDatabricks:
		if source == "token" {
			if c.Scope.Extra["host"] == "" {
				return errors.New("workspace host (scope.extra.host) is required for token credentials")
			}
			if !hasValue {
				return errors.New("credential value is required for token credentials")
			}
		}
	case domain.ProviderSnowflake:
		if !hasValue {
			return fmt.Errorf("credential value is required for source %q", source)
		}
	case domain.ProviderYandex:
		if len(c.Scope.FolderIDs) == 0 {
			return errors.New("at least one folder id (scope.folder_ids) is required")
		}
		if !hasValue {
			return fmt.Errorf("credential value is required for source %q", source)
		}
	}
	return nil
}

// Domain converts a validated connection entry.
func (c ConnectionConfig) Domain() domain.Connection {
	value := c.Credential.Value
	if c.Credential.ValueEnv != "" {
		value = os.Getenv(c.Credential.ValueEnv)
	}

	conn := domain.Connection{
		ID:       c.ID,
		Provider: domain.ProviderKind(c.Provider),
		Scope: domain.Scope{
			OrganizationID: c.Scope.OrganizationID,
			AccountID:      c.Scope.AccountID,
			FolderIDs:      c.Scope.FolderIDs,
			Regions:        c.Scope.Regions,
			Extra:          c.Scope.Extra,
		},
		Credential: domain.CredentialHandle{Source: c.Credential.Source, Value: value},
		Limits: domain.Limits{
			MaxConcurrency:    c.Limits.MaxConcurrency,
			RequestsPerSecond: c.Limits.RequestsPerSecond,
			Burst:             c.Limits.Burst,
			CallTimeout:       c.Limits.CallTimeout,
			MaxAttempts:       c.Limits.MaxAttempts,
		}.WithDefaults(),
	}
	for _, t := range c.ResourceTypes {
		conn.ResourceTypes = append(conn.ResourceTypes, domain.ResourceType(t))
	}
	return conn
}
