package config

import (
	"fmt"
	"strings"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database from a URL, detecting its type from
// the scheme. See WithEnv for the accepted forms.
func WithDatabase(databaseURL string) Option {
	return func(c *ServerConfig) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL cannot be empty")
		}
		return applyDatabaseURL(c, databaseURL)
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorage configures the storage backend from a URL. See WithEnv for the
// accepted forms.
func WithStorage(storageURL string) Option {
	return func(c *ServerConfig) error {
		if storageURL == "" {
			return fmt.Errorf("storage URL cannot be empty")
		}
		return applyStorageURL(c, storageURL, "")
	}
}

// WithFilesystemStorage stores images below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   StorageFS,
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Storage stores images in an S3 bucket. endpoint may be empty for AWS.
func WithS3Storage(bucket, region, endpoint string, publicRead bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		cfg := map[string]interface{}{
			"bucket":      bucket,
			"region":      region,
			"public_read": publicRead,
		}
		if endpoint != "" {
			cfg["endpoint"] = endpoint
			cfg["use_path_style"] = true
		}
		c.Storage = StorageBackendConfig{Type: StorageS3, Config: cfg}
		return nil
	}
}

// WithGCSStorage stores images in a Cloud Storage bucket
func WithGCSStorage(bucket string, publicRead bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("GCS bucket cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   StorageGCS,
			Config: map[string]interface{}{"bucket": bucket, "public_read": publicRead},
		}
		return nil
	}
}

// WithKeyStrategy selects the object key generator (timestamp, git-like)
func WithKeyStrategy(strategy string) Option {
	return func(c *ServerConfig) error {
		c.KeyStrategy = strategy
		return nil
	}
}

// WithPublicBaseURL serves image URLs from a CDN or other fixed base URL
func WithPublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithPageSize overrides the listing page size
func WithPageSize(size int) Option {
	return func(c *ServerConfig) error {
		if size <= 0 {
			return fmt.Errorf("page size must be positive, got %d", size)
		}
		c.PageSize = size
		return nil
	}
}

// WithCursorSecret sets the page token signing key
func WithCursorSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.CursorSecret = secret
		return nil
	}
}

// WithCursorMaxAge expires page tokens after d
func WithCursorMaxAge(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d < 0 {
			return fmt.Errorf("cursor max age cannot be negative")
		}
		c.CursorMaxAge = d
		return nil
	}
}

// WithMaxUploadSize limits request bodies, e.g. "5MB"
func WithMaxUploadSize(size string) Option {
	return func(c *ServerConfig) error {
		c.MaxUploadSize = size
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		if level != "" {
			c.LogLevel = strings.ToLower(level)
		}
		if format != "" {
			c.LogFormat = strings.ToLower(format)
		}
		return nil
	}
}
