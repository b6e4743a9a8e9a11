// Package storage holds what the image uploaders share: object naming and
// content type detection. The uploaders live in the sub-packages.
package storage

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

const defaultContentType = "application/octet-stream"

// Naming decides where an asset is stored and how it is addressed publicly
type Naming struct {
	Keys objectkey.Generator
	URLs urlstrategy.URLStrategy
	Now  func() time.Time
}

// NewNaming fills in the timestamp generator when keys is nil
func NewNaming(keys objectkey.Generator, urls urlstrategy.URLStrategy) Naming {
	if keys == nil {
		keys = objectkey.NewTimestampGenerator()
	}
	return Naming{Keys: keys, URLs: urls, Now: time.Now}
}

// ObjectKey names a new object for the asset
func (n Naming) ObjectKey(asset *simplecustomer.Asset, contentType string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return n.Keys.GenerateKey(uuid.Must(uuid.NewV7()), &objectkey.KeyMetadata{
		FileName:    asset.FileName,
		ContentType: contentType,
		UploadedAt:  now(),
	})
}

// Result resolves the public URL of a stored object
func (n Naming) Result(objectKey string) (*simplecustomer.UploadResult, error) {
	if n.URLs == nil {
		return nil, errors.New("no URL strategy configured")
	}
	url, err := n.URLs.PublicURL(objectKey)
	if err != nil {
		return nil, err
	}
	return &simplecustomer.UploadResult{ObjectKey: objectKey, PublicURL: url}, nil
}

// ContentType returns the declared content type of the asset, or sniffs it
// from the first 512 bytes. The returned reader yields the full body.
func ContentType(asset *simplecustomer.Asset) (string, io.Reader, error) {
	if asset == nil || asset.Body == nil {
		return "", nil, errors.New("asset has no body")
	}
	if asset.ContentType != "" {
		return asset.ContentType, asset.Body, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(asset.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	contentType := defaultContentType
	if n > 0 {
		contentType = http.DetectContentType(head)
	}
	return contentType, io.MultiReader(bytes.NewReader(head), asset.Body), nil
}
