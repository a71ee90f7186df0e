package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty keys or path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrAccessDenied is returned when the provider refuses access.
	ErrAccessDenied = errors.New("access denied")

	// ErrExpired is returned when a signed URL is past its expiry.
	ErrExpired = errors.New("download link expired")

	// ErrBadSignature is returned when a signed URL was tampered with.
	ErrBadSignature = errors.New("invalid download signature")
)

// StorageError wraps a storage failure with the operation and key.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidKey returns true if the error indicates an invalid storage key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsDenied returns true for expired, forged or forbidden requests.
func IsDenied(err error) bool {
	return errors.Is(err, ErrExpired) || errors.Is(err, ErrBadSignature) || errors.Is(err, ErrAccessDenied)
}
