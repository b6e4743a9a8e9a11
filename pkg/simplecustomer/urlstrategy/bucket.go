package urlstrategy

import (
	"fmt"
	"net/url"
	"strings"
)

// S3Strategy builds the public URL of an object in an S3 bucket, either
// virtual-hosted (bucket.host/key) or path-style (host/bucket/key).
type S3Strategy struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS host, e.g. "http://localhost:9000" for MinIO
	Endpoint  string
	PathStyle bool
}

func (s *S3Strategy) PublicURL(objectKey string) (string, error) {
	if s.Bucket == "" {
		return "", fmt.Errorf("bucket is required")
	}
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}

	scheme, host := "https", ""
	if s.Endpoint != "" {
		u, err := url.Parse(s.Endpoint)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid S3 endpoint: %s", s.Endpoint)
		}
		scheme, host = u.Scheme, u.Host
	} else {
		region := s.Region
		if region == "" {
			region = "us-east-1"
		}
		host = fmt.Sprintf("s3.%s.amazonaws.com", region)
	}

	key := escapeKey(objectKey)
	if s.PathStyle {
		return fmt.Sprintf("%s://%s/%s/%s", scheme, host, s.Bucket, key), nil
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.Bucket, host, key), nil
}

// GCSStrategy builds https://storage.googleapis.com/<bucket>/<key>
type GCSStrategy struct {
	Bucket string
}

func (s *GCSStrategy) PublicURL(objectKey string) (string, error) {
	if s.Bucket == "" {
		return "", fmt.Errorf("bucket is required")
	}
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, escapeKey(strings.TrimPrefix(objectKey, "/"))), nil
}
