package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	customerstorage "github.com/tendant/simple-customer/pkg/simplecustomer/storage"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

const backendName = "gcs"

// Config options for the Google Cloud Storage backend
type Config struct {
	Bucket string
	// PublicRead uploads objects with the publicRead predefined ACL
	PublicRead bool
	// Endpoint overrides the API endpoint, e.g. for a storage emulator
	Endpoint string

	KeyGenerator objectkey.Generator
	URLStrategy  urlstrategy.URLStrategy // Defaults to https://storage.googleapis.com/<bucket>
}

// Backend is a Cloud Storage implementation of simplecustomer.Uploader
type Backend struct {
	client *storage.Client
	owned  bool
	config Config
	naming customerstorage.Naming
}

// New creates a client from application default credentials
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	b, err := NewWithClient(client, config)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of the client.
func NewWithClient(client *storage.Client, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	urls := config.URLStrategy
	if urls == nil {
		var err error
		urls, err = urlstrategy.NewURLStrategy(urlstrategy.Config{Type: urlstrategy.StrategyTypeGCS, Bucket: config.Bucket})
		if err != nil {
			return nil, err
		}
	}
	return &Backend{
		client: client,
		config: config,
		naming: customerstorage.NewNaming(config.KeyGenerator, urls),
	}, nil
}

// Close closes the client if the backend owns it
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

func (b *Backend) Upload(ctx context.Context, asset *simplecustomer.Asset) (*simplecustomer.UploadResult, error) {
	contentType, body, err := customerstorage.ContentType(asset)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Err: err}
	}
	key := b.naming.ObjectKey(asset, contentType)

	result, err := b.naming.Result(key)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.client.Bucket(b.config.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if b.config.PublicRead {
		w.PredefinedACL = "publicRead"
	}

	if _, err := io.Copy(w, body); err != nil {
		cancel()
		w.Close()
		return nil, uploadError(key, err)
	}
	if err := w.Close(); err != nil {
		return nil, uploadError(key, err)
	}

	return result, nil
}

func uploadError(key string, err error) error {
	uploadErr := &simplecustomer.UploadError{Backend: backendName, Key: key, Err: fmt.Errorf("failed to upload to GCS: %w", err)}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		uploadErr.Code = strconv.Itoa(apiErr.Code)
	}
	return uploadErr
}
