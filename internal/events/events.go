// Package events delivers membership payment notifications from outside
// the HTTP process to the period reset hook.
//
// Two transports are supported and may run side by side: a RabbitMQ queue
// bound to the payments exchange, and a Postgres LISTEN on the channel the
// membership_payments trigger notifies. Both decode the same JSON body.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DukeRupert/packs/internal/domain"
)

const (
	SourceRabbitMQ = "rabbitmq"
	SourcePostgres = "postgres"

	// RoutingKeyPaymentRecorded is the RabbitMQ routing key for payments.
	RoutingKeyPaymentRecorded = "membership.payment.recorded"

	// ChannelMembershipPayment is the Postgres NOTIFY channel.
	ChannelMembershipPayment = "membership_payment"
)

// PaymentHandler receives decoded payment events.
type PaymentHandler interface {
	OnPaymentRecorded(ctx context.Context, event domain.PaymentRecorded) error
}

// PaymentHandlerFunc adapts a function to PaymentHandler.
type PaymentHandlerFunc func(ctx context.Context, event domain.PaymentRecorded) error

func (f PaymentHandlerFunc) OnPaymentRecorded(ctx context.Context, event domain.PaymentRecorded) error {
	return f(ctx, event)
}

// DecodePayment parses a payment notification body and tags it with source.
func DecodePayment(body []byte, source string) (domain.PaymentRecorded, error) {
	var event domain.PaymentRecorded
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.PaymentRecorded{}, fmt.Errorf("decode payment event: %w", err)
	}
	event.Source = source
	return event, nil
}
