// Package billing reads membership payments from Stripe webhooks.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Event types that record a membership payment.
const (
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// MetadataLevelID is the metadata key carrying the subscription level on
// invoices and checkout sessions.
const MetadataLevelID = "level_id"

// ErrNoCustomer is returned for payment events without a Stripe customer.
var ErrNoCustomer = errors.New("payment event has no customer")

// Payment is a membership payment extracted from a Stripe event.
type Payment struct {
	CustomerID    string
	TransactionID string // invoice or checkout session ID
	LevelID       int64  // 0 when the metadata does not say
	Amount        int64  // cents
	Status        string
}

// WebhookVerifier checks Stripe webhook signatures.
type WebhookVerifier interface {
	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

type stripeVerifier struct {
	webhookSecret string
}

// NewWebhookVerifier creates a verifier for the endpoint's signing secret.
func NewWebhookVerifier(webhookSecret string) WebhookVerifier {
	return &stripeVerifier{webhookSecret: webhookSecret}
}

func (s *stripeVerifier) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// PaymentFromEvent extracts the membership payment from event. It returns
// false for event types that do not record a payment and for checkout
// sessions that are not paid yet.
func PaymentFromEvent(event stripe.Event) (*Payment, bool, error) {
	switch string(event.Type) {
	case EventInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, false, fmt.Errorf("parse invoice: %w", err)
		}
		if invoice.Customer == nil || invoice.Customer.ID == "" {
			return nil, false, ErrNoCustomer
		}
		return &Payment{
			CustomerID:    invoice.Customer.ID,
			TransactionID: invoice.ID,
			LevelID:       levelFromMetadata(invoice.Metadata),
			Amount:        invoice.AmountPaid,
			Status:        string(invoice.Status),
		}, true, nil

	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, false, fmt.Errorf("parse checkout session: %w", err)
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil, false, nil
		}
		if session.Customer == nil || session.Customer.ID == "" {
			return nil, false, ErrNoCustomer
		}
		return &Payment{
			CustomerID:    session.Customer.ID,
			TransactionID: session.ID,
			LevelID:       levelFromMetadata(session.Metadata),
			Amount:        session.AmountTotal,
			Status:        string(session.PaymentStatus),
		}, true, nil
	}
	return nil, false, nil
}

func levelFromMetadata(md map[string]string) int64 {
	id, err := strconv.ParseInt(md[MetadataLevelID], 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
