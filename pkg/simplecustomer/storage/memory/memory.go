package memory

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	"github.com/tendant/simple-customer/pkg/simplecustomer/storage"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

const backendName = "memory"

// DefaultURLPrefix is where the backend expects to be mounted when serving objects
const DefaultURLPrefix = "/assets"

// Config options for the in-memory backend
type Config struct {
	KeyGenerator objectkey.Generator
	URLStrategy  urlstrategy.URLStrategy
}

// Object is a stored image
type Object struct {
	Data        []byte
	ContentType string
}

// Backend is an in-memory implementation of simplecustomer.Uploader. It also
// serves the stored objects over HTTP.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]Object
	naming  storage.Naming
}

// New creates a new in-memory backend
func New(config Config) *Backend {
	urls := config.URLStrategy
	if urls == nil {
		urls = urlstrategy.NewCDNStrategy(DefaultURLPrefix)
	}
	return &Backend{
		objects: make(map[string]Object),
		naming:  storage.NewNaming(config.KeyGenerator, urls),
	}
}

func (b *Backend) Upload(ctx context.Context, asset *simplecustomer.Asset) (*simplecustomer.UploadResult, error) {
	contentType, body, err := storage.ContentType(asset)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Err: err}
	}
	key := b.naming.ObjectKey(asset, contentType)

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}

	result, err := b.naming.Result(key)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}

	b.mu.Lock()
	b.objects[key] = Object{Data: data, ContentType: contentType}
	b.mu.Unlock()

	return result, nil
}

// Object returns a stored object
func (b *Backend) Object(key string) (Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	return obj, ok
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// ServeHTTP serves an object by key. Mount it behind http.StripPrefix.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	obj, ok := b.Object(strings.TrimPrefix(r.URL.Path, "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(obj.Data)
	}
}
