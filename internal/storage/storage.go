// Package storage delivers product files.
//
// Two providers are supported:
//   - LocalStorage serves files from disk through the application, using
//     signed expiring URLs.
//   - R2Storage hands out S3 presigned URLs for a Cloudflare R2 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DefaultURLExpiry is used when URLOptions.Expiry is zero.
const DefaultURLExpiry = 24 * time.Hour

// Storage is the file delivery backend.
type Storage interface {
	// Get opens the object. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// URL returns a time-limited download URL for the object.
	URL(ctx context.Context, key string, opts URLOptions) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// URLOptions configures a download URL.
type URLOptions struct {
	// Expiry is how long the URL stays valid.
	Expiry time.Duration

	// Filename is suggested to the browser via Content-Disposition.
	Filename string

	// Ref ties the URL to the order it was issued for. It is signed into
	// local URLs and logged when the file is served.
	Ref string
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory holding product files.
	BasePath string

	// BaseURL is the URL prefix the file handler is mounted on.
	// Example: "http://localhost:8080/files"
	BaseURL string

	// SigningKey signs download URLs.
	SigningKey []byte
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region is required by the AWS SDK. R2 accepts "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// ProductFileKey returns the conventional key for a product deliverable.
// Format: products/{productID}/{filename}
func ProductFileKey(productID int64, filename string) string {
	return fmt.Sprintf("products/%d/%s", productID, filename)
}
