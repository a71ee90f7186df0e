package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/DukeRupert/packs/internal/billing"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

type mockVerifier struct {
	VerifyFunc func(payload []byte, signature string) (stripe.Event, error)
}

func (m *mockVerifier) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return m.VerifyFunc(payload, signature)
}

// passThroughVerifier decodes the body as an event when the signature is "ok".
func passThroughVerifier() *mockVerifier {
	return &mockVerifier{VerifyFunc: func(payload []byte, signature string) (stripe.Event, error) {
		if signature != "ok" {
			return stripe.Event{}, errors.New("bad signature")
		}
		var event stripe.Event
		err := json.Unmarshal(payload, &event)
		return event, err
	}}
}

func invoiceEvent(t *testing.T, customer string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": billing.EventInvoicePaymentSucceeded,
		"data": map[string]any{"object": map[string]any{
			"id":          "in_1",
			"customer":    customer,
			"amount_paid": 1900,
			"status":      "paid",
		}},
	})
	require.NoError(t, err)
	return body
}

// storedPayment is a payment row in the webhook fixture's fake store.
type storedPayment struct {
	id           int64
	resetApplied bool
}

type webhookFixture struct {
	handler  *WebhookHandler
	reset    *mockReset
	recorded []service.RecordPaymentParams
	payments map[string]*storedPayment // by transaction ID
	markErr  error
	lookup   error
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{reset: &mockReset{}, payments: map[string]*storedPayment{}}
	customers := &mockCustomers{GetByStripeCustomerIDFunc: func(_ context.Context, id string) (*domain.User, error) {
		if f.lookup != nil {
			return nil, f.lookup
		}
		if id != "cus_9" {
			return nil, domain.NotFound("user.get_by_stripe_customer_id", "user", 0)
		}
		return &domain.User{ID: 7}, nil
	}}
	payments := &mockMembership{
		RecordPaymentFunc: func(_ context.Context, p service.RecordPaymentParams) (*service.RecordedPayment, error) {
			f.recorded = append(f.recorded, p)
			stored, ok := f.payments[p.TransactionID]
			if !ok {
				stored = &storedPayment{id: int64(len(f.payments) + 12)}
				f.payments[p.TransactionID] = stored
			}
			return &service.RecordedPayment{
				ID:           stored.id,
				Event:        domain.PaymentRecorded{PaymentID: strconv.FormatInt(stored.id, 10), UserID: p.UserID, Amount: p.Amount, Status: p.Status},
				Created:      !ok,
				ResetApplied: stored.resetApplied,
			}, nil
		},
		MarkResetAppliedFunc: func(_ context.Context, paymentID int64) error {
			if f.markErr != nil {
				return f.markErr
			}
			for _, stored := range f.payments {
				if stored.id == paymentID {
					stored.resetApplied = true
				}
			}
			return nil
		},
	}
	f.handler = NewWebhookHandler(passThroughVerifier(), customers, payments, f.reset, newTestLogger())
	return f
}

func (f *webhookFixture) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	f.handler.HandleStripeWebhook(rec, req)
	return rec
}

func TestStripeWebhook_ResetsPeriod(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post(invoiceEvent(t, "cus_9"), "ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.recorded, 1)
	assert.Equal(t, service.RecordPaymentParams{UserID: 7, Amount: 1900, Status: "paid", TransactionID: "in_1"}, f.recorded[0])
	require.Len(t, f.reset.events, 1)
	assert.Equal(t, int64(7), f.reset.events[0].UserID)
	assert.Equal(t, SourceStripe, f.reset.events[0].Source)
}

func TestStripeWebhook_DuplicatePayment(t *testing.T) {
	f := newWebhookFixture()

	require.Equal(t, http.StatusOK, f.post(invoiceEvent(t, "cus_9"), "ok").Code)
	rec := f.post(invoiceEvent(t, "cus_9"), "ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.recorded, 2)
	assert.Len(t, f.reset.events, 1, "a processed payment must not reset the period again")
}

func TestStripeWebhook_RedeliveryAfterFailedReset(t *testing.T) {
	f := newWebhookFixture()
	f.reset.err = errors.New("redis down")

	rec := f.post(invoiceEvent(t, "cus_9"), "ok")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, f.payments, 1)
	assert.False(t, f.payments["in_1"].resetApplied)

	// Stripe retries the same invoice once the store is back.
	f.reset.err = nil
	rec = f.post(invoiceEvent(t, "cus_9"), "ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.payments, 1)
	require.Len(t, f.reset.events, 2)
	assert.Equal(t, int64(7), f.reset.events[1].UserID)
	assert.Equal(t, "12", f.reset.events[1].PaymentID)
	assert.True(t, f.payments["in_1"].resetApplied)

	// Later deliveries are no-ops.
	assert.Equal(t, http.StatusOK, f.post(invoiceEvent(t, "cus_9"), "ok").Code)
	assert.Len(t, f.reset.events, 2)
}

func TestStripeWebhook_MarkResetFailure(t *testing.T) {
	f := newWebhookFixture()
	f.markErr = errors.New("db down")

	rec := f.post(invoiceEvent(t, "cus_9"), "ok")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The retry resets again; clearing the count twice is harmless.
	f.markErr = nil
	rec = f.post(invoiceEvent(t, "cus_9"), "ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.reset.events, 2)
	assert.True(t, f.payments["in_1"].resetApplied)
}

func TestStripeWebhook_UnknownCustomer(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post(invoiceEvent(t, "cus_other"), "ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.recorded)
	assert.Empty(t, f.reset.events)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post(invoiceEvent(t, "cus_9"), "forged")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.recorded)
}

func TestStripeWebhook_RetryableFailures(t *testing.T) {
	t.Run("lookup error", func(t *testing.T) {
		f := newWebhookFixture()
		f.lookup = errors.New("db down")
		assert.Equal(t, http.StatusInternalServerError, f.post(invoiceEvent(t, "cus_9"), "ok").Code)
	})

	t.Run("reset error", func(t *testing.T) {
		f := newWebhookFixture()
		f.reset.err = errors.New("redis down")
		assert.Equal(t, http.StatusInternalServerError, f.post(invoiceEvent(t, "cus_9"), "ok").Code)
	})
}

func TestStripeWebhook_IgnoredEvents(t *testing.T) {
	f := newWebhookFixture()

	body, err := json.Marshal(map[string]any{
		"id":   "evt_2",
		"type": "customer.subscription.updated",
		"data": map[string]any{"object": map[string]any{"id": "sub_1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.post(body, "ok").Code)
	assert.Empty(t, f.recorded)
}

func TestStripeWebhook_NotConfigured(t *testing.T) {
	h := NewWebhookHandler(nil, nil, nil, nil, newTestLogger())
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
