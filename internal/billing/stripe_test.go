package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testSecret = "whsec_test"

func signedEvent(t *testing.T, secret, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestVerifyWebhookSignature(t *testing.T) {
	v := NewWebhookVerifier(testSecret)

	payload, header := signedEvent(t, testSecret, EventInvoicePaymentSucceeded, map[string]any{"id": "in_1"})
	event, err := v.VerifyWebhookSignature(payload, header)
	require.NoError(t, err)
	assert.Equal(t, EventInvoicePaymentSucceeded, string(event.Type))

	payload, header = signedEvent(t, "whsec_other", EventInvoicePaymentSucceeded, map[string]any{"id": "in_1"})
	_, err = v.VerifyWebhookSignature(payload, header)
	assert.Error(t, err)
}

func eventWith(t *testing.T, eventType string, object map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func TestPaymentFromEvent_Invoice(t *testing.T) {
	event := eventWith(t, EventInvoicePaymentSucceeded, map[string]any{
		"id":          "in_123",
		"customer":    "cus_9",
		"amount_paid": 1900,
		"status":      "paid",
		"metadata":    map[string]string{"level_id": "3"},
	})

	p, ok, err := PaymentFromEvent(event)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &Payment{
		CustomerID:    "cus_9",
		TransactionID: "in_123",
		LevelID:       3,
		Amount:        1900,
		Status:        "paid",
	}, p)
}

func TestPaymentFromEvent_CheckoutSession(t *testing.T) {
	paid := eventWith(t, EventCheckoutSessionCompleted, map[string]any{
		"id":             "cs_1",
		"customer":       "cus_9",
		"amount_total":   500,
		"payment_status": "paid",
	})
	p, ok, err := PaymentFromEvent(paid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cs_1", p.TransactionID)
	assert.Equal(t, int64(0), p.LevelID)

	unpaid := eventWith(t, EventCheckoutSessionCompleted, map[string]any{
		"id":             "cs_2",
		"customer":       "cus_9",
		"payment_status": "unpaid",
	})
	_, ok, err = PaymentFromEvent(unpaid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentFromEvent_Ignored(t *testing.T) {
	_, ok, err := PaymentFromEvent(eventWith(t, "customer.subscription.updated", map[string]any{"id": "sub_1"}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentFromEvent_NoCustomer(t *testing.T) {
	_, _, err := PaymentFromEvent(eventWith(t, EventInvoicePaymentSucceeded, map[string]any{"id": "in_1"}))
	assert.ErrorIs(t, err, ErrNoCustomer)
}
