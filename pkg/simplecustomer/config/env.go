package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// settings is the flat, externally supplied form of ServerConfig. Fields left
// empty keep the value already in the config.
type settings struct {
	Port          string        `yaml:"port" json:"port" toml:"port" env:"PORT"`
	Environment   string        `yaml:"environment" json:"environment" toml:"environment" env:"ENVIRONMENT"`
	DatabaseURL   string        `yaml:"database_url" json:"database_url" toml:"database_url" env:"DATABASE_URL"`
	DBSchema      string        `yaml:"db_schema" json:"db_schema" toml:"db_schema" env:"DB_SCHEMA"`
	StorageURL    string        `yaml:"storage_url" json:"storage_url" toml:"storage_url" env:"STORAGE_URL"`
	KeyStrategy   string        `yaml:"key_strategy" json:"key_strategy" toml:"key_strategy" env:"KEY_STRATEGY"`
	PublicBaseURL string        `yaml:"public_base_url" json:"public_base_url" toml:"public_base_url" env:"PUBLIC_BASE_URL"`
	CursorSecret  string        `yaml:"cursor_secret" json:"cursor_secret" toml:"cursor_secret" env:"CURSOR_SECRET"`
	CursorMaxAge  time.Duration `yaml:"cursor_max_age" json:"cursor_max_age" toml:"cursor_max_age" env:"CURSOR_MAX_AGE"`
	MaxUploadSize string        `yaml:"max_upload_size" json:"max_upload_size" toml:"max_upload_size" env:"MAX_UPLOAD_SIZE"`
	LogLevel      string        `yaml:"log_level" json:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFormat     string        `yaml:"log_format" json:"log_format" toml:"log_format" env:"LOG_FORMAT"`

	AWSAccessKeyID     string `yaml:"aws_access_key_id" json:"aws_access_key_id" toml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key" json:"aws_secret_access_key" toml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `yaml:"aws_region" json:"aws_region" toml:"aws_region" env:"AWS_REGION"`
}

// WithEnv applies environment variable overrides.
//
// Database:
//
//	DATABASE_URL - one of:
//	               "memory" (default)
//	               "postgres://..." or "postgresql://..."
//	               "badger:///path/to/dir"
//	               "bolt:///path/to/customers.db"
//	               "mongodb://host/database?collection=customers"
//	               "firestore://project-id?collection=Customer"
//
// Storage:
//
//	STORAGE_URL - one of:
//	              "memory://" (default)
//	              "file:///path/to/data"
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&public_read=true"
//	              "gs://bucket?public_read=true"
//
// Also PORT, ENVIRONMENT, DB_SCHEMA, KEY_STRATEGY, PUBLIC_BASE_URL,
// CURSOR_SECRET, CURSOR_MAX_AGE, MAX_UPLOAD_SIZE, LOG_LEVEL, LOG_FORMAT and
// the AWS_* credentials.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var s settings
		if err := cleanenv.ReadEnv(&s); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return s.apply(c)
	}
}

// WithConfigFile reads a YAML, JSON, TOML or .env file. Environment variables
// override values from the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		var s settings
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return s.apply(c)
	}
}

func (s *settings) apply(c *ServerConfig) error {
	setString(&c.Port, s.Port)
	setString(&c.Environment, s.Environment)
	setString(&c.DBSchema, s.DBSchema)
	setString(&c.KeyStrategy, s.KeyStrategy)
	setString(&c.PublicBaseURL, s.PublicBaseURL)
	setString(&c.CursorSecret, s.CursorSecret)
	setString(&c.MaxUploadSize, s.MaxUploadSize)
	setString(&c.LogLevel, strings.ToLower(s.LogLevel))
	setString(&c.LogFormat, strings.ToLower(s.LogFormat))
	if s.CursorMaxAge != 0 {
		c.CursorMaxAge = s.CursorMaxAge
	}

	if s.DatabaseURL != "" {
		if err := applyDatabaseURL(c, s.DatabaseURL); err != nil {
			return err
		}
	}

	if s.StorageURL != "" {
		if err := applyStorageURL(c, s.StorageURL, s.AWSRegion); err != nil {
			return err
		}
	}
	if c.Storage.Type == StorageS3 {
		setConfig(c.Storage.Config, "access_key_id", s.AWSAccessKeyID)
		setConfig(c.Storage.Config, "secret_access_key", s.AWSSecretAccessKey)
	}

	return nil
}

// applyDatabaseURL detects the database type from the URL scheme
func applyDatabaseURL(c *ServerConfig, raw string) error {
	if raw == "memory" || raw == "memory://" {
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		c.DatabaseType = DatabasePostgres
	case "badger":
		c.DatabaseType = DatabaseBadger
	case "bolt":
		c.DatabaseType = DatabaseBolt
	case "mongodb", "mongodb+srv":
		c.DatabaseType = DatabaseMongo
	case "firestore":
		if u.Host == "" {
			return fmt.Errorf("firestore project cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = DatabaseFirestore
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...', 'badger://...', 'bolt://...', 'mongodb://...' or 'firestore://...')", raw)
	}

	if (c.DatabaseType == DatabaseBadger || c.DatabaseType == DatabaseBolt) && filePath(u) == "" {
		return fmt.Errorf("%s path cannot be empty in DATABASE_URL", c.DatabaseType)
	}

	c.DatabaseURL = raw
	return nil
}

// applyStorageURL configures the storage backend from its URL. For S3 the
// region query parameter wins over defaultRegion.
func applyStorageURL(c *ServerConfig, raw, defaultRegion string) error {
	if raw == "memory" || raw == "memory://" {
		c.Storage = StorageBackendConfig{Type: StorageMemory, Config: map[string]interface{}{}}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	q := u.Query()

	switch u.Scheme {
	case "file":
		path := filePath(u)
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage = StorageBackendConfig{
			Type: StorageFS,
			Config: map[string]interface{}{
				"base_dir": path,
			},
		}

	case "s3":
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		cfg := map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		}
		setConfig(cfg, "region", defaultRegion)
		setConfig(cfg, "region", q.Get("region"))
		setConfig(cfg, "endpoint", q.Get("endpoint"))
		setConfig(cfg, "use_path_style", q.Get("path_style"))
		setConfig(cfg, "public_read", q.Get("public_read"))
		setConfig(cfg, "create_bucket_if_not_exist", q.Get("create_bucket"))
		c.Storage = StorageBackendConfig{Type: StorageS3, Config: cfg}

	case "gs", "gcs":
		if u.Host == "" {
			return fmt.Errorf("GCS bucket name cannot be empty in STORAGE_URL")
		}
		cfg := map[string]interface{}{
			"bucket": u.Host,
		}
		setConfig(cfg, "endpoint", q.Get("endpoint"))
		setConfig(cfg, "public_read", q.Get("public_read"))
		c.Storage = StorageBackendConfig{Type: StorageGCS, Config: cfg}

	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'gs://...')", raw)
	}

	return nil
}

// filePath returns the path of a file-like URL. "badger:///var/data" and
// "badger://data" name /var/data and data.
func filePath(u *url.URL) string {
	return u.Host + u.Path
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setConfig(cfg map[string]interface{}, key, v string) {
	if v != "" {
		cfg[key] = v
	}
}
