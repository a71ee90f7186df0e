package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/service"
)

// hardFailureBody is written for rejected requests that get no explanation.
const hardFailureBody = "-1"

// DownloadHandler serves the pack download endpoint.
//
// Route:
//   - POST /downloads/pack -> Download
type DownloadHandler struct {
	fulfillment service.FulfillmentService
	logger      *slog.Logger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(fulfillment service.FulfillmentService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// RegisterRoutes registers the download route. mw wraps it with the user
// loader and rate limiter; the endpoint itself accepts anonymous callers
// so they get the hard failure response rather than a login redirect.
func (h *DownloadHandler) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("POST /downloads/pack", mw(http.HandlerFunc(h.Download)))
}

// Download processes a pack download request and responds with the file
// manifest and a link to the first file.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeHardFailure(w, http.StatusBadRequest)
		return
	}

	req := domain.ParseFulfillmentRequest(r.PostForm)
	user := auth.GetUserFromRequest(r)

	result, err := h.fulfillment.Process(r.Context(), user, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	files := result.Files
	if files == nil {
		files = []domain.ManifestEntry{}
	}
	writeJSON(w, http.StatusOK, domain.FulfillmentResult{Files: files, File: result.File})
}

func (h *DownloadHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)

	switch {
	case domain.IsBusinessRule(err):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(ErrorCodeToHTTPStatus(code))
		_, _ = w.Write([]byte(domain.ErrorMessage(err)))
	case code == domain.EUNAUTHORIZED || code == domain.EFORBIDDEN:
		h.logger.Info("pack download rejected", "code", code, "error", err)
		h.writeHardFailure(w, http.StatusForbidden)
	case code == domain.EINVALID:
		h.logger.Info("pack download rejected", "code", code, "error", err)
		h.writeHardFailure(w, http.StatusBadRequest)
	default:
		ErrorResponse(w, r, h.logger, err)
	}
}

func (h *DownloadHandler) writeHardFailure(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(hardFailureBody))
}
