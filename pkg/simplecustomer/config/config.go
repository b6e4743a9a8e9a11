package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
)

// Database types
const (
	DatabaseMemory    = "memory"
	DatabasePostgres  = "postgres"
	DatabaseBadger    = "badger"
	DatabaseBolt      = "bolt"
	DatabaseMongo     = "mongo"
	DatabaseFirestore = "firestore"
)

// Storage backend types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageGCS    = "gcs"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: DatabaseMemory,
		Storage: StorageBackendConfig{
			Type:   StorageMemory,
			Config: map[string]interface{}{},
		},
		KeyStrategy:   objectkey.StrategyTimestamp,
		PageSize:      simplecustomer.DefaultPageSize,
		MaxUploadSize: "5MB",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// ServerConfig represents server configuration for the customer service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // memory, postgres, badger, bolt, mongo, firestore
	DBSchema     string // Postgres search_path; empty keeps the server default

	// Storage configuration
	Storage StorageBackendConfig

	// Object naming and addressing
	KeyStrategy   string // timestamp, git-like
	PublicBaseURL string // Overrides the backend's own public URLs

	// Listing
	PageSize     int
	CursorSecret string        // HMAC key for page tokens; empty uses a per-store key
	CursorMaxAge time.Duration // Zero means tokens never expire

	// MaxUploadSize is a human readable size such as "5MB". Units are binary, so "5MB" is 5 << 20 bytes.
	MaxUploadSize string

	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json
}

// StorageBackendConfig represents configuration for the image storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "gcs"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseBadger, DatabaseBolt, DatabaseMongo, DatabaseFirestore:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case StorageS3, StorageGCS:
		if getString(c.Storage.Config, "bucket", "") == "" {
			return fmt.Errorf("bucket is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public base URL must be an absolute http(s) URL: %q", c.PublicBaseURL)
		}
	} else if c.Environment == "production" && (c.Storage.Type == StorageMemory || c.Storage.Type == StorageFS) {
		return fmt.Errorf("public base URL is required for %s storage in production", c.Storage.Type)
	}

	if _, err := objectkey.NewGenerator(c.KeyStrategy); err != nil {
		return err
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.CursorMaxAge < 0 {
		return errors.New("cursor max age cannot be negative")
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	return nil
}

// MaxUploadBytes parses MaxUploadSize
func (c *ServerConfig) MaxUploadBytes() (int64, error) {
	size, err := units.RAMInBytes(c.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max upload size %q: %w", c.MaxUploadSize, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("max upload size must be positive, got %q", c.MaxUploadSize)
	}
	return size, nil
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
