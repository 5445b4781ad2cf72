package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means no caller identity where one is required
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden means the caller exists but isn't entitled to the file
	ErrForbidden = errors.New("access denied")

	ErrNotFound = errors.New("file not found")
)

// ValidationError rejects bad input before any store or database write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StorageError wraps a failed or timed-out object store call. When the
// call already went out on the wire the store-side state is unknown.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object store operation failed: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// MetadataError wraps a failed database call.
type MetadataError struct {
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata store operation failed: %v", e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}
