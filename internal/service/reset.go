package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/metrics"
)

// ResetService starts a new download period when a membership payment is
// recorded.
//
// Events arrive from the Stripe webhook, the RabbitMQ consumer, the
// Postgres payment listener and packsctl. The same payment may be delivered
// by more than one of them; a reset clears the count and is therefore safe
// to repeat.
type ResetService interface {
	// OnPaymentRecorded clears the member's download count. The product,
	// amount and status of the payment do not matter. Payments without a
	// member are ignored.
	OnPaymentRecorded(ctx context.Context, event domain.PaymentRecorded) error
}

type resetService struct {
	quota  QuotaService
	logger *slog.Logger
}

// NewResetService creates a new ResetService.
func NewResetService(quota QuotaService, logger *slog.Logger) ResetService {
	return &resetService{
		quota:  quota,
		logger: logger,
	}
}

func (s *resetService) OnPaymentRecorded(ctx context.Context, event domain.PaymentRecorded) error {
	if event.UserID <= 0 {
		s.logger.Debug("payment without member ignored", "payment_id", event.PaymentID, "source", event.Source)
		return nil
	}

	if err := s.quota.ResetConsumed(ctx, event.UserID); err != nil {
		return err
	}

	source := event.Source
	if source == "" {
		source = "unknown"
	}
	metrics.PeriodResets.WithLabelValues(source).Inc()
	s.logger.Info("download period reset",
		"user_id", event.UserID,
		"payment_id", event.PaymentID,
		"source", source,
	)
	return nil
}
