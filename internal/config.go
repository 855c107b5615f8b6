package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Embedding providers.
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
)

// Duration wraps time.Duration so YAML configs can say "10s" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Sync        SyncConfig        `yaml:"sync"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Idempotency.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the vault directory and its owner.
type VaultConfig struct {
	Path string `yaml:"path"`
	// OwnerID scopes every ledger row this process writes. A single
	// process serves a single owner.
	OwnerID   string `yaml:"owner_id"`
	Extension string `yaml:"extension"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.OwnerID, validation.Required),
	)
}

// LedgerConfig holds the SQLite sync ledger configuration.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EmbeddingConfig selects and configures the embedding provider.
//
// Provider controls where vectors come from:
//   - "local" (default): deterministic hash embeddings, no network, good
//     for development and tests.
//   - "openai": the OpenAI embeddings API; APIKey must be non-empty.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Dims     int    `yaml:"dims"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = EmbeddingProviderLocal
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(EmbeddingProviderOpenAI, EmbeddingProviderLocal)),
	); err != nil {
		return err
	}
	if c.Provider == EmbeddingProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("embedding: provider is %q but api_key is empty", EmbeddingProviderOpenAI)
	}
	return nil
}

// SyncConfig bounds the watcher-to-embedding pipeline.
type SyncConfig struct {
	DebounceWindow Duration `yaml:"debounce_window"`
	Workers        int      `yaml:"workers"`
	QueueSize      int      `yaml:"queue_size"`
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseBackoff    Duration `yaml:"base_backoff"`
	OpTimeout      Duration `yaml:"op_timeout"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.QueueSize, validation.Min(0)),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
	)
}

// IdempotencyConfig bounds the lifetime of idempotency records.
type IdempotencyConfig struct {
	TTL           Duration `yaml:"ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// Validate validates the idempotency configuration.
func (c *IdempotencyConfig) Validate() error {
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			OwnerID:   "default",
			Extension: ".md",
		},
		Ledger: LedgerConfig{
			Path: "./laguz.db",
		},
		Embedding: EmbeddingConfig{
			Provider: EmbeddingProviderLocal,
			Dims:     256,
		},
		Sync: SyncConfig{
			DebounceWindow: Duration(10 * time.Second),
			Workers:        4,
			QueueSize:      256,
			MaxAttempts:    5,
			BaseBackoff:    Duration(time.Second),
			OpTimeout:      Duration(30 * time.Second),
		},
		Idempotency: IdempotencyConfig{
			TTL:           Duration(24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
