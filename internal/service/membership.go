package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/repository"
)

// MembershipProvider answers which subscription level a member currently
// holds. It is the only thing the quota logic needs from the membership
// service.
type MembershipProvider interface {
	// ActiveLevel returns the member's level ID and true, or false when the
	// member has no active subscription.
	ActiveLevel(ctx context.Context, userID int64) (int64, bool, error)
}

// RecordPaymentParams describes a membership payment to persist.
type RecordPaymentParams struct {
	UserID        int64
	LevelID       int64 // 0 when unknown
	Amount        int64 // cents
	Status        string
	TransactionID string // provider reference, used for de-duplication
}

// RecordedPayment is a stored membership payment together with how far its
// processing got.
type RecordedPayment struct {
	ID    int64
	Event domain.PaymentRecorded

	// Created is false when the transaction had been recorded before.
	Created bool

	// ResetApplied reports whether the payment has already started a new
	// download period. A redelivered payment whose reset failed still has
	// this unset.
	ResetApplied bool
}

// MembershipService reads subscription levels and records membership
// payments.
type MembershipService interface {
	MembershipProvider

	// GetLevel loads one subscription level.
	// Returns domain.ENOTFOUND for unknown levels.
	GetLevel(ctx context.Context, levelID int64) (*domain.SubscriptionLevel, error)

	// ListLevels returns every subscription level ordered by ID.
	ListLevels(ctx context.Context) ([]domain.SubscriptionLevel, error)

	// RecordPayment stores the payment. When params.TransactionID was
	// recorded before, the stored payment is returned with Created unset
	// and nothing is written.
	RecordPayment(ctx context.Context, params RecordPaymentParams) (*RecordedPayment, error)

	// MarkResetApplied records that the payment started a new download
	// period, so redeliveries of the same transaction skip the reset.
	MarkResetApplied(ctx context.Context, paymentID int64) error
}

type membershipService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewMembershipService creates a Postgres-backed MembershipService.
func NewMembershipService(queries *repository.Queries, logger *slog.Logger) MembershipService {
	return &membershipService{
		queries: queries,
		logger:  logger,
	}
}

func (s *membershipService) ActiveLevel(ctx context.Context, userID int64) (int64, bool, error) {
	const op = "membership.active_level"

	if userID <= 0 {
		return 0, false, nil
	}

	m, err := s.queries.GetActiveMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, domain.Internal(err, op, "failed to load membership")
	}
	return m.LevelID, true, nil
}

func (s *membershipService) GetLevel(ctx context.Context, levelID int64) (*domain.SubscriptionLevel, error) {
	const op = "membership.get_level"

	l, err := s.queries.GetSubscriptionLevel(ctx, levelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription level", levelID)
		}
		return nil, domain.Internal(err, op, "failed to load subscription level")
	}
	return &domain.SubscriptionLevel{ID: l.ID, Name: l.Name}, nil
}

func (s *membershipService) ListLevels(ctx context.Context) ([]domain.SubscriptionLevel, error) {
	const op = "membership.list_levels"

	rows, err := s.queries.ListSubscriptionLevels(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscription levels")
	}

	levels := make([]domain.SubscriptionLevel, 0, len(rows))
	for _, l := range rows {
		levels = append(levels, domain.SubscriptionLevel{ID: l.ID, Name: l.Name})
	}
	return levels, nil
}

func (s *membershipService) RecordPayment(ctx context.Context, params RecordPaymentParams) (*RecordedPayment, error) {
	const op = "membership.record_payment"

	if params.UserID <= 0 {
		return nil, domain.Invalid(op, "payment has no member")
	}
	status := params.Status
	if status == "" {
		status = "complete"
	}
	txn := domain.ToNullString(params.TransactionID)

	created := true
	p, err := s.queries.InsertMembershipPayment(ctx, repository.InsertMembershipPaymentParams{
		UserID:        params.UserID,
		LevelID:       sql.NullInt64{Int64: params.LevelID, Valid: params.LevelID > 0},
		Amount:        params.Amount,
		Status:        status,
		TransactionID: txn,
	})
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		p, err = s.queries.GetMembershipPaymentByTransaction(ctx, txn)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record payment")
	}

	if !created {
		s.logger.Info("membership payment already recorded",
			"payment_id", p.ID,
			"user_id", p.UserID,
			"transaction_id", params.TransactionID,
			"reset_applied", p.ResetAppliedAt.Valid,
		)
	}

	return &RecordedPayment{
		ID: p.ID,
		Event: domain.PaymentRecorded{
			PaymentID: formatID(p.ID),
			UserID:    p.UserID,
			Amount:    p.Amount,
			Status:    p.Status,
		},
		Created:      created,
		ResetApplied: p.ResetAppliedAt.Valid,
	}, nil
}

func (s *membershipService) MarkResetApplied(ctx context.Context, paymentID int64) error {
	const op = "membership.mark_reset_applied"

	if err := s.queries.MarkPaymentResetApplied(ctx, paymentID); err != nil {
		return domain.Internal(err, op, "failed to mark payment reset")
	}
	return nil
}
