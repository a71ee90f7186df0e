package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/email"
	"github.com/DukeRupert/packs/internal/service"
	"github.com/DukeRupert/packs/internal/templ/components/pack"
)

// NonceIssuer creates per-action anti-forgery tokens for forms.
type NonceIssuer interface {
	Create(action string, userID int64) string
}

// ProductReader looks up products for display.
type ProductReader interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

// PurchaseHandler renders the call-to-action on product pages.
//
// Route:
//   - GET /products/{id}/purchase-form -> PurchaseForm
type PurchaseHandler struct {
	products    ProductReader
	eligibility service.EligibilityService
	nonces      NonceIssuer
	cartAction  string
	logger      *slog.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler. cartAction is where the
// regular purchase form posts to.
func NewPurchaseHandler(
	products ProductReader,
	eligibility service.EligibilityService,
	nonces NonceIssuer,
	cartAction string,
	logger *slog.Logger,
) *PurchaseHandler {
	return &PurchaseHandler{
		products:    products,
		eligibility: eligibility,
		nonces:      nonces,
		cartAction:  cartAction,
		logger:      logger,
	}
}

// RegisterRoutes registers the purchase form route. mw loads the session
// user; anonymous visitors get the regular purchase form.
func (h *PurchaseHandler) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /products/{id}/purchase-form", mw(http.HandlerFunc(h.PurchaseForm)))
}

// PurchaseForm renders the pack download form when the member can redeem
// the product from their pack, otherwise the normal purchase form.
func (h *PurchaseHandler) PurchaseForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		NotFoundResponse(w, r, h.logger)
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUserFromRequest(r)
	show, err := h.eligibility.ShowDownloadButton(r.Context(), user, product)
	if err != nil {
		// The page still works with the purchase form.
		h.logger.Error("failed to check pack eligibility",
			"error", err,
			"user_id", domain.UserID(user),
			"product_id", product.ID,
		)
		show = false
	}

	formID := r.URL.Query().Get("form_id")
	component := pack.PurchaseForm(pack.PurchaseFormData{
		ProductID: product.ID,
		FormID:    formID,
		Name:      product.Name,
		Price:     email.FormatCents(product.Price),
		Action:    h.cartAction,
	})
	if show {
		component = pack.DownloadButton(pack.DownloadButtonData{
			ProductID: product.ID,
			FormID:    formID,
			Nonce:     h.nonces.Create(domain.NonceActionDownloadPack, user.ID),
			Action:    "/downloads/pack",
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render purchase form", "error", err, "product_id", product.ID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
