package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/packs/internal/billing"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/service"
)

// SourceStripe labels period resets triggered by the Stripe webhook.
const SourceStripe = "stripe"

// maxWebhookBody caps the size of a webhook payload.
const maxWebhookBody = 65536

// CustomerLookup finds the member behind a Stripe customer.
type CustomerLookup interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
}

// PaymentRecorder persists membership payments and tracks whether each one
// has started its download period.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, params service.RecordPaymentParams) (*service.RecordedPayment, error)
	MarkResetApplied(ctx context.Context, paymentID int64) error
}

// WebhookHandler records membership payments sent by Stripe and starts a
// new download period for the member.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC; Stripe authenticates with the webhook signature.
type WebhookHandler struct {
	verifier  billing.WebhookVerifier
	customers CustomerLookup
	payments  PaymentRecorder
	reset     service.ResetService
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. verifier may be nil when
// Stripe is not configured.
func NewWebhookHandler(
	verifier billing.WebhookVerifier,
	customers CustomerLookup,
	payments PaymentRecorder,
	reset service.ResetService,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		customers: customers,
		payments:  payments,
		reset:     reset,
		logger:    logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes a Stripe event. A non-2xx response makes
// Stripe retry, so only failures worth retrying return 500.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	logger := h.logger.With("event_type", event.Type, "event_id", event.ID)

	payment, ok, err := billing.PaymentFromEvent(event)
	switch {
	case errors.Is(err, billing.ErrNoCustomer):
		logger.Warn("payment event without customer ignored")
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		logger.Error("failed to parse payment event", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	case !ok:
		logger.Debug("unhandled webhook event type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.recordPayment(r.Context(), payment, logger); err != nil {
		logger.Error("failed to process membership payment", "error", err, "customer_id", payment.CustomerID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) recordPayment(ctx context.Context, payment *billing.Payment, logger *slog.Logger) error {
	user, err := h.customers.GetByStripeCustomerID(ctx, payment.CustomerID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			logger.Info("no member for stripe customer", "customer_id", payment.CustomerID)
			return nil
		}
		return err
	}

	recorded, err := h.payments.RecordPayment(ctx, service.RecordPaymentParams{
		UserID:        user.ID,
		LevelID:       payment.LevelID,
		Amount:        payment.Amount,
		Status:        payment.Status,
		TransactionID: payment.TransactionID,
	})
	if err != nil {
		return err
	}
	if recorded.ResetApplied {
		logger.Info("membership payment already processed",
			"user_id", user.ID,
			"transaction_id", payment.TransactionID,
		)
		return nil
	}
	if !recorded.Created {
		// An earlier delivery stored the payment but failed before the reset.
		logger.Info("applying pending reset for redelivered payment",
			"user_id", user.ID,
			"payment_id", recorded.ID,
			"transaction_id", payment.TransactionID,
		)
	}

	event := recorded.Event
	event.Source = SourceStripe
	if err := h.reset.OnPaymentRecorded(ctx, event); err != nil {
		return err
	}
	return h.payments.MarkResetApplied(ctx, recorded.ID)
}
