package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/csrf"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/service"
	"github.com/DukeRupert/packs/internal/templ/components/pack"
)

// LevelReader looks up subscription levels.
type LevelReader interface {
	GetLevel(ctx context.Context, levelID int64) (*domain.SubscriptionLevel, error)
}

// LevelHandler serves the download allowance field of the subscription
// level editor.
//
// Routes (admin only):
//   - GET  /admin/levels/{id}/downloads -> Show
//   - POST /admin/levels/{id}/downloads -> Save
type LevelHandler struct {
	levels        LevelReader
	quota         service.QuotaService
	nonces        NonceIssuer
	pluralLabel   string
	secureCookies bool
	logger        *slog.Logger
}

// NewLevelHandler creates a new LevelHandler.
func NewLevelHandler(
	levels LevelReader,
	quota service.QuotaService,
	nonces NonceIssuer,
	pluralLabel string,
	secureCookies bool,
	logger *slog.Logger,
) *LevelHandler {
	if pluralLabel == "" {
		pluralLabel = pack.DefaultPluralLabel
	}
	return &LevelHandler{
		levels:        levels,
		quota:         quota,
		nonces:        nonces,
		pluralLabel:   pluralLabel,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterRoutes registers the level routes behind requireAdmin.
func (h *LevelHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/levels/{id}/downloads", requireAdmin(http.HandlerFunc(h.Show)))
	mux.Handle("POST /admin/levels/{id}/downloads", requireAdmin(http.HandlerFunc(h.Save)))
}

// Show renders the allowance field. Level 0 is a level that has not been
// created yet and always shows an allowance of 0.
func (h *LevelHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	levelID, ok := parseLevelID(r)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	var allowance int64
	if levelID > 0 {
		if _, err := h.levels.GetLevel(r.Context(), levelID); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		var err error
		allowance, err = h.quota.GetAllowance(r.Context(), levelID)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	csrfToken, err := csrf.EnsureToken(w, r, h.secureCookies)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	data := pack.AllowanceFieldData{
		LevelID:     levelID,
		Allowance:   allowance,
		Nonce:       h.nonces.Create(domain.NonceActionSaveAllowance, user.ID),
		CSRFToken:   csrfToken,
		PluralLabel: h.pluralLabel,
		Action:      levelPath(levelID),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pack.AllowanceField(data).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render allowance field", "error", err, "level_id", levelID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Save stores the posted allowance and redirects back to the field. A
// missing or stale nonce saves nothing but still redirects.
func (h *LevelHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	levelID, ok := parseLevelID(r)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("level.save", "Invalid form submission."))
		return
	}
	if !csrf.ValidateRequest(r) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	value := domain.AbsInt(r.PostForm.Get(pack.FieldAllowance))
	token := r.PostForm.Get(pack.FieldAllowanceNonce)

	if err := h.quota.SetAllowance(r.Context(), levelID, value, token, user); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, levelPath(levelID), http.StatusSeeOther)
}

func parseLevelID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func levelPath(levelID int64) string {
	return fmt.Sprintf("/admin/levels/%d/downloads", levelID)
}
