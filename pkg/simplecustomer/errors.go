package simplecustomer

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrCustomerNotFound indicates a customer was not found
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidCursor indicates a page token is malformed, foreign or expired
	ErrInvalidCursor = errors.New("invalid page token")

	// ErrUploadFailed indicates an image upload failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrStoreFailure indicates the record store failed
	ErrStoreFailure = errors.New("store operation failed")

	// ErrInvalidCustomer indicates a customer payload was rejected
	ErrInvalidCustomer = errors.New("invalid customer")
)

// CustomerError represents an error related to customer operations
type CustomerError struct {
	ID  string
	Op  string
	Err error
}

func (e *CustomerError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("customer operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("customer operation %s failed for customer %s: %v", e.Op, e.ID, e.Err)
}

func (e *CustomerError) Unwrap() error {
	return e.Err
}

// StoreError wraps a record store failure that is not a not-found or cursor error.
// It matches ErrStoreFailure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// UploadError represents a failed image upload. It matches ErrUploadFailed.
type UploadError struct {
	Backend string
	Key     string
	Code    string // provider error code, when one is known
	Err     error
}

func (e *UploadError) Error() string {
	msg := "upload failed"
	if e.Backend != "" {
		msg = fmt.Sprintf("upload to %s failed", e.Backend)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s for key %s", msg, e.Key)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}
