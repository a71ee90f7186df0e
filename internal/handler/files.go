package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/storage"
)

// SignedFileStore serves files behind signed URLs.
// *storage.LocalStorage satisfies it.
type SignedFileStore interface {
	Verify(key string, query url.Values) (storage.URLOptions, error)
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// FilesHandler serves product files for local storage. Links are issued by
// the fulfillment service and checked here before anything is read.
//
// Route:
//   - GET /files/{key...} -> Serve
type FilesHandler struct {
	store  SignedFileStore
	logger *slog.Logger
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(store SignedFileStore, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers the file route. It is public; the signature is
// the credential.
func (h *FilesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /files/{key...}", h.Serve)
}

// Serve streams the file named by the path after checking its signature.
func (h *FilesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	opts, err := h.store.Verify(key, r.URL.Query())
	if err != nil {
		h.logger.Info("file download refused", "key", key, "error", err)
		ForbiddenResponse(w, r, h.logger)
		return
	}

	rc, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		switch {
		case storage.IsNotFound(err), storage.IsInvalidKey(err):
			NotFoundResponse(w, r, h.logger)
		default:
			InternalErrorResponse(w, r, h.logger, domain.Internal(err, "files.serve", "failed to open file"))
		}
		return
	}
	defer rc.Close()

	h.logger.Info("file downloaded", "key", key, "ref", opts.Ref, "size", info.Size)

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", storage.ContentDisposition(opts.Filename))
	w.Header().Set("Cache-Control", "private, no-store")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file download interrupted", "key", key, "error", err)
	}
}
