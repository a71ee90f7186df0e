package storage

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Query parameters on local download URLs.
const (
	ParamExpires  = "expires"
	ParamRef      = "ref"
	ParamFilename = "name"
	ParamSig      = "sig"
)

// LocalStorage serves product files from a directory on disk.
//
// URLs point back at the application's file handler and carry an expiry
// and a keyed signature over the key, expiry, ref and filename.
type LocalStorage struct {
	basePath   string
	baseURL    string
	signingKey []byte
	now        func() time.Time
	logger     *slog.Logger
}

// NewLocalStorage creates a LocalStorage rooted at cfg.BasePath, creating
// the directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("local storage requires a signing key")
	}

	key := cfg.SigningKey
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	logger.Info("initialized local storage",
		"base_path", absPath,
		"base_url", baseURL,
	)

	return &LocalStorage{
		basePath:   absPath,
		baseURL:    baseURL,
		signingKey: key,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// Get opens the file stored at key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if ctx.Err() != nil {
		return nil, ObjectInfo{}, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	if stat.IsDir() {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to open file: %w", err)}
	}

	return file, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType("", key, nil),
		LastModified: stat.ModTime(),
	}, nil
}

// URL returns a signed download URL. The file does not need to exist yet.
func (s *LocalStorage) URL(ctx context.Context, key string, opts URLOptions) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	expires := s.now().Add(expiry).Unix()

	q := url.Values{}
	q.Set(ParamExpires, strconv.FormatInt(expires, 10))
	if opts.Ref != "" {
		q.Set(ParamRef, opts.Ref)
	}
	if opts.Filename != "" {
		q.Set(ParamFilename, opts.Filename)
	}
	q.Set(ParamSig, s.sign(key, expires, opts.Ref, opts.Filename))

	return fmt.Sprintf("%s/%s?%s", s.baseURL, escapeKey(key), q.Encode()), nil
}

// Verify checks the signature and expiry of a download request for key and
// returns the options the URL was issued with.
func (s *LocalStorage) Verify(key string, query url.Values) (URLOptions, error) {
	expires, err := strconv.ParseInt(query.Get(ParamExpires), 10, 64)
	if err != nil {
		return URLOptions{}, &StorageError{Op: "Verify", Key: key, Err: ErrBadSignature}
	}

	opts := URLOptions{
		Ref:      query.Get(ParamRef),
		Filename: query.Get(ParamFilename),
	}
	want := s.sign(key, expires, opts.Ref, opts.Filename)
	if subtle.ConstantTimeCompare([]byte(want), []byte(query.Get(ParamSig))) != 1 {
		return URLOptions{}, &StorageError{Op: "Verify", Key: key, Err: ErrBadSignature}
	}
	if s.now().Unix() > expires {
		return URLOptions{}, &StorageError{Op: "Verify", Key: key, Err: ErrExpired}
	}
	return opts, nil
}

// Exists checks if a file is stored at key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	return true, nil
}

func (s *LocalStorage) sign(key string, expires int64, ref, filename string) string {
	h, _ := blake2b.New256(s.signingKey)
	fmt.Fprintf(h, "%s\n%d\n%s\n%s", key, expires, ref, filename)
	return hex.EncodeToString(h.Sum(nil))
}

// resolvePath maps a key to a path inside basePath, rejecting traversal.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") || filepath.IsAbs(cleanKey) {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
