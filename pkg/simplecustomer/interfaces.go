package simplecustomer

import "context"

// Store persists customers and owns the page token format.
//
// List returns at most pageSize customers in a stable order, starting after the
// position encoded in token (from the beginning when token is zero). The returned
// page carries a NextPageToken iff more customers follow. A token the store cannot
// read fails with ErrInvalidCursor.
//
// Get, Update and Delete fail with ErrCustomerNotFound when the id is unknown.
// Create assigns the id.
type Store interface {
	List(ctx context.Context, pageSize int, token PageToken) (*Page, error)
	Create(ctx context.Context, attrs Attributes) (*Customer, error)
	Get(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, id string, attrs Attributes) (*Customer, error)
	Delete(ctx context.Context, id string) error
}

// Uploader places an asset in object storage and returns its public URL.
// Failures should be reported as *UploadError.
type Uploader interface {
	Upload(ctx context.Context, asset *Asset) (*UploadResult, error)
}
