// Package metastore holds the small integer attributes the download pack
// reads and writes: a level's allowance and a member's consumed count.
//
// Values are addressed by (namespace, entity ID, field). A missing value
// reads as zero. Backends must make IncrementIfBelow atomic so concurrent
// downloads cannot push a counter past its limit.
package metastore

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidKey is returned for keys with an empty namespace or field.
var ErrInvalidKey = errors.New("metastore: invalid key")

// Key addresses a single attribute.
type Key struct {
	Namespace string
	ID        int64
	Field     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Namespace, k.ID, k.Field)
}

// Validate checks the key has every component.
func (k Key) Validate() error {
	if k.Namespace == "" || k.Field == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Store is a key/value store for integer attributes.
type Store interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key Key) (int64, bool, error)

	// Set stores value, replacing any existing value.
	Set(ctx context.Context, key Key, value int64) error

	// Delete removes the value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Increment adds one to the value and returns the result.
	Increment(ctx context.Context, key Key) (int64, error)

	// IncrementIfBelow adds one only when the current value is below limit.
	// It returns the value after the call and whether it was incremented.
	IncrementIfBelow(ctx context.Context, key Key, limit int64) (int64, bool, error)

	// Decrement subtracts one, never going below zero. A value that
	// reaches zero is deleted.
	Decrement(ctx context.Context, key Key) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
