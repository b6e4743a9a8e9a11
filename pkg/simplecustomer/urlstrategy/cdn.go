package urlstrategy

import (
	"fmt"
	"strings"
)

// CDNStrategy serves objects from a fixed base URL, e.g.
// "https://cdn.example.com/customers" or "/assets".
type CDNStrategy struct {
	BaseURL string
}

// NewCDNStrategy creates a CDN strategy rooted at baseURL
func NewCDNStrategy(baseURL string) *CDNStrategy {
	return &CDNStrategy{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *CDNStrategy) PublicURL(objectKey string) (string, error) {
	if s.BaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}
	return fmt.Sprintf("%s/%s", s.BaseURL, escapeKey(objectKey)), nil
}
