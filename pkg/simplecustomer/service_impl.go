package simplecustomer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// service implements the Service interface
type service struct {
	store    Store
	uploader Uploader
	pageSize int
	logger   *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the record store
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithUploader sets the image uploader. Without one, requests carrying an
// image fail with ErrUploadFailed.
func WithUploader(uploader Uploader) Option {
	return func(s *service) {
		s.uploader = uploader
	}
}

// WithPageSize overrides DefaultPageSize
func WithPageSize(size int) Option {
	return func(s *service) {
		s.pageSize = size
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		pageSize: DefaultPageSize,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if s.pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", s.pageSize)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) ListCustomers(ctx context.Context, req ListCustomersRequest) (*Page, error) {
	page, err := s.store.List(ctx, s.pageSize, req.PageToken)
	if err != nil {
		return nil, s.storeError("list", "", err)
	}
	if page == nil {
		return nil, s.storeError("list", "", errors.New("store returned no page"))
	}
	if page.Items == nil {
		page.Items = []*Customer{}
	}
	return page, nil
}

func (s *service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	attrs, err := prepare("create", "", req.Attributes)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.attachImage(ctx, "create", "", attrs, req.Image)
	if err != nil {
		return nil, err
	}

	customer, err := s.store.Create(ctx, attrs)
	if err != nil {
		s.logOrphan(ctx, "create", "", uploaded, err)
		return nil, s.storeError("create", "", err)
	}

	return customer, nil
}

func (s *service) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	customer, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("get", id, err)
	}
	return customer, nil
}

// UpdateCustomer checks that the customer exists before uploading anything, so
// an unknown id never produces an upload.
func (s *service) UpdateCustomer(ctx context.Context, req UpdateCustomerRequest) (*Customer, error) {
	attrs, err := prepare("update", req.ID, req.Attributes)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Get(ctx, req.ID); err != nil {
		return nil, s.storeError("update", req.ID, err)
	}

	uploaded, err := s.attachImage(ctx, "update", req.ID, attrs, req.Image)
	if err != nil {
		return nil, err
	}

	customer, err := s.store.Update(ctx, req.ID, attrs)
	if err != nil {
		s.logOrphan(ctx, "update", req.ID, uploaded, err)
		return nil, s.storeError("update", req.ID, err)
	}

	return customer, nil
}

func (s *service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError("delete", id, err)
	}
	return nil
}

// prepare validates a payload and returns a normalized copy the service may mutate.
func prepare(op, id string, attrs Attributes) (Attributes, error) {
	if err := attrs.Validate(); err != nil {
		return nil, &CustomerError{ID: id, Op: op, Err: err}
	}
	return attrs.Normalize(), nil
}

// attachImage uploads the image, if any, and writes its URL into attrs.
func (s *service) attachImage(ctx context.Context, op, id string, attrs Attributes, image *Asset) (*UploadResult, error) {
	if image == nil {
		return nil, nil
	}
	if s.uploader == nil {
		return nil, &CustomerError{ID: id, Op: op, Err: &UploadError{Err: errors.New("no uploader configured")}}
	}

	result, err := s.uploader.Upload(ctx, image)
	if err != nil {
		var uploadErr *UploadError
		if !errors.As(err, &uploadErr) {
			err = &UploadError{Err: err}
		}
		return nil, &CustomerError{ID: id, Op: op, Err: err}
	}
	if result == nil || result.PublicURL == "" {
		return nil, &CustomerError{ID: id, Op: op, Err: &UploadError{Err: errors.New("uploader returned no public URL")}}
	}

	s.logger.DebugContext(ctx, "Uploaded customer image", "op", op, "object_key", result.ObjectKey, "url", result.PublicURL)
	attrs[FieldImageURL] = result.PublicURL
	return result, nil
}

// logOrphan records an uploaded object whose record was never written.
func (s *service) logOrphan(ctx context.Context, op, id string, uploaded *UploadResult, cause error) {
	if uploaded == nil {
		return
	}
	s.logger.WarnContext(ctx, "Customer image left without a record",
		"op", op, "customer_id", id, "object_key", uploaded.ObjectKey, "url", uploaded.PublicURL, "error", cause)
}

// storeError classifies a store failure. Not-found and cursor errors keep their
// identity; everything else becomes a StoreError.
func (s *service) storeError(op, id string, err error) error {
	switch {
	case errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrInvalidCursor),
		errors.Is(err, ErrInvalidCustomer),
		errors.Is(err, ErrStoreFailure):
		return &CustomerError{ID: id, Op: op, Err: err}
	default:
		return &CustomerError{ID: id, Op: op, Err: &StoreError{Op: op, Err: err}}
	}
}
