package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	"github.com/tendant/simple-customer/pkg/simplecustomer/storage"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

const backendName = "fs"

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Public URL prefix, "/assets" by default

	KeyGenerator objectkey.Generator
	URLStrategy  urlstrategy.URLStrategy // Overrides URLPrefix
}

// Backend is a filesystem implementation of simplecustomer.Uploader
type Backend struct {
	baseDir string
	naming  storage.Naming
}

// New creates a new filesystem backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	urls := config.URLStrategy
	if urls == nil {
		prefix := config.URLPrefix
		if prefix == "" {
			prefix = "/assets"
		}
		urls = urlstrategy.NewCDNStrategy(prefix)
	}

	return &Backend{
		baseDir: config.BaseDir,
		naming:  storage.NewNaming(config.KeyGenerator, urls),
	}, nil
}

func (b *Backend) Upload(ctx context.Context, asset *simplecustomer.Asset) (*simplecustomer.UploadResult, error) {
	contentType, body, err := storage.ContentType(asset)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Err: err}
	}
	key := b.naming.ObjectKey(asset, contentType)

	result, err := b.naming.Result(key)
	if err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}
	if err := b.write(ctx, key, body); err != nil {
		return nil, &simplecustomer.UploadError{Backend: backendName, Key: key, Err: err}
	}
	return result, nil
}

func (b *Backend) write(ctx context.Context, key string, body io.Reader) error {
	filePath, err := b.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(filePath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// path maps an object key to a file below the base directory
func (b *Backend) path(key string) (string, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.baseDir, filePath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key escapes base directory: %s", key)
	}
	return filePath, nil
}

// Handler serves the stored files. Mount it behind http.StripPrefix.
func (b *Backend) Handler() http.Handler {
	return http.FileServer(http.Dir(b.baseDir))
}
