package urlstrategy

import (
	"net/url"
	"strings"
)

// URLStrategy turns a stored object key into the public URL recorded as a
// customer's imageUrl.
type URLStrategy interface {
	PublicURL(objectKey string) (string, error)
}

// Func adapts a plain function
type Func func(objectKey string) (string, error)

func (f Func) PublicURL(objectKey string) (string, error) {
	return f(objectKey)
}

// escapeKey escapes each path segment of an object key and keeps the separators
func escapeKey(objectKey string) string {
	parts := strings.Split(strings.TrimPrefix(objectKey, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
