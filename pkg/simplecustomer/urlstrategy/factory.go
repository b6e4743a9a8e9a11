package urlstrategy

import (
	"fmt"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	StrategyTypeCDN URLStrategyType = "cdn"
	StrategyTypeS3  URLStrategyType = "s3"
	StrategyTypeGCS URLStrategyType = "gcs"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type URLStrategyType

	BaseURL string // For CDN strategy

	Bucket    string // For S3 and GCS
	Region    string // For S3
	Endpoint  string // For S3
	PathStyle bool   // For S3
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.BaseURL == "" {
			return nil, fmt.Errorf("base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.BaseURL), nil

	case StrategyTypeS3:
		if config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 strategy")
		}
		return &S3Strategy{
			Bucket:    config.Bucket,
			Region:    config.Region,
			Endpoint:  config.Endpoint,
			PathStyle: config.PathStyle,
		}, nil

	case StrategyTypeGCS:
		if config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for GCS strategy")
		}
		return &GCSStrategy{Bucket: config.Bucket}, nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}
