package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the migration engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (passwords)
// must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Legacy is the read-only SQL Server source being migrated from.
	Legacy LegacyConfig `yaml:"legacy"`

	// Destination is the DentalDesk PostgreSQL database.
	Destination DestinationConfig `yaml:"destination"`

	// Import tunes batch sizes and retry behavior.
	Import ImportConfig `yaml:"import"`

	// MigrationsPath is the directory holding destination schema migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// LegacyConfig holds SQL Server connection settings for the legacy source.
// The credential used here must be a read-only login; the engine verifies
// at startup that it cannot write and refuses to run otherwise.
type LegacyConfig struct {
	Host     string `yaml:"host" env:"LEGACY_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"LEGACY_PORT" env-default:"1433"`
	Database string `yaml:"database" env:"LEGACY_DATABASE" env-default:""`
	User     string `yaml:"user" env:"LEGACY_USER" env-default:""`
	Password string `yaml:"-" env:"LEGACY_PASSWORD"` // Secret - not in YAML

	Encrypt                bool `yaml:"encrypt" env:"LEGACY_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool `yaml:"trust_server_certificate" env:"LEGACY_TRUST_SERVER_CERT" env-default:"false"`
	// ConnectionTimeoutSeconds is deliberately conservative: the legacy
	// source is someone else's production system.
	ConnectionTimeoutSeconds int `yaml:"connection_timeout_seconds" env:"LEGACY_CONNECTION_TIMEOUT" env-default:"30"`
}

// DestinationConfig holds PostgreSQL destination configuration.
type DestinationConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dentaldesk"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dentaldesk"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ImportConfig tunes the batch pipeline.
type ImportConfig struct {
	// PageSize is the keyset page size for legacy extraction.
	PageSize int `yaml:"page_size" env:"IMPORT_PAGE_SIZE" env-default:"500"`
	// BatchSize is the number of records committed per destination transaction.
	BatchSize int `yaml:"batch_size" env:"IMPORT_BATCH_SIZE" env-default:"200"`
	// MaxRetries bounds retry attempts for transient connectivity errors.
	MaxRetries int `yaml:"max_retries" env:"IMPORT_MAX_RETRIES" env-default:"3"`
	// BackfillChunkSize bounds rows touched per backfill chunk.
	BackfillChunkSize int `yaml:"backfill_chunk_size" env:"IMPORT_BACKFILL_CHUNK_SIZE" env-default:"1000"`
}

// Load reads configuration from the given YAML path with environment
// variable overrides. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Legacy.Database == "" {
		return fmt.Errorf("legacy.database is required")
	}
	if c.Legacy.User == "" {
		return fmt.Errorf("legacy.user is required")
	}
	if c.Import.PageSize <= 0 {
		return fmt.Errorf("import.page_size must be positive")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the destination.
func (c *DestinationConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
