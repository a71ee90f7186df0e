package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/metastore"
	"github.com/DukeRupert/packs/internal/metrics"
)

// NonceVerifier checks per-action anti-forgery tokens.
type NonceVerifier interface {
	// Verify reports whether token was issued for action and userID and has
	// not expired. userID is 0 for anonymous callers.
	Verify(token, action string, userID int64) bool
}

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService reads and writes the two download pack counters: the
// allowance stored on a subscription level and the count of downloads a
// member has used since their last payment.
//
// Both counters live in the meta store, so every method works the same on
// the Postgres, Redis and memory backends. Store failures are returned as
// domain.EINTERNAL. A missing counter reads as 0.
//
// Handlers and the fulfillment service should go through ReserveDownload
// rather than pairing GetConsumed with IncrementConsumed; only the former
// is safe under concurrent requests from one member.
type QuotaService interface {
	// GetAllowance returns the level's allowance, 0 when unset.
	GetAllowance(ctx context.Context, levelID int64) (int64, error)

	// SetAllowance saves the level's allowance after verifying the save
	// nonce for actor. An absent or invalid token is a silent no-op.
	// A value of 0 removes the allowance. Negative values are stored as
	// their absolute value.
	SetAllowance(ctx context.Context, levelID, value int64, token string, actor *domain.User) error

	// GetConsumed returns the member's count for the current period.
	GetConsumed(ctx context.Context, userID int64) (int64, error)

	// IncrementConsumed adds one to the member's count without a bound.
	IncrementConsumed(ctx context.Context, userID int64) (int64, error)

	// ReserveDownload atomically claims a slot if the count is below
	// allowance. It returns the count after the call and whether a slot
	// was claimed.
	ReserveDownload(ctx context.Context, userID, allowance int64) (int64, bool, error)

	// ReleaseDownload gives back a slot claimed by ReserveDownload.
	ReleaseDownload(ctx context.Context, userID int64) error

	// ResetConsumed clears the member's count.
	ResetConsumed(ctx context.Context, userID int64) error

	// Usage summarizes the member's pack for the current period.
	Usage(ctx context.Context, userID int64) (*domain.PackUsage, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store       metastore.Store
	memberships MembershipProvider
	nonces      NonceVerifier
	logger      *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(
	store metastore.Store,
	memberships MembershipProvider,
	nonces NonceVerifier,
	logger *slog.Logger,
) QuotaService {
	return &quotaService{
		store:       store,
		memberships: memberships,
		nonces:      nonces,
		logger:      logger,
	}
}

func allowanceKey(levelID int64) metastore.Key {
	return metastore.Key{Namespace: domain.MetaNamespaceLevel, ID: levelID, Field: domain.FieldDownloadsAllowed}
}

func consumedKey(userID int64) metastore.Key {
	return metastore.Key{Namespace: domain.MetaNamespaceUser, ID: userID, Field: domain.FieldCurrentDownloadCount}
}

func (s *quotaService) GetAllowance(ctx context.Context, levelID int64) (int64, error) {
	const op = "quota.get_allowance"

	v, _, err := s.store.Get(ctx, allowanceKey(levelID))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read allowance")
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

func (s *quotaService) SetAllowance(ctx context.Context, levelID, value int64, token string, actor *domain.User) error {
	const op = "quota.set_allowance"

	if !s.nonces.Verify(token, domain.NonceActionSaveAllowance, domain.UserID(actor)) {
		metrics.AllowanceUpdates.WithLabelValues("rejected").Inc()
		s.logger.Warn("allowance save ignored: invalid nonce",
			"level_id", levelID,
			"user_id", domain.UserID(actor),
		)
		return nil
	}
	if levelID <= 0 {
		return domain.Invalid(op, "subscription level is required")
	}

	if value < 0 {
		value = -value
	}

	if value == 0 {
		if err := s.store.Delete(ctx, allowanceKey(levelID)); err != nil {
			return domain.Internal(err, op, "failed to clear allowance")
		}
		metrics.AllowanceUpdates.WithLabelValues("cleared").Inc()
		s.logger.Info("allowance cleared", "level_id", levelID, "user_id", domain.UserID(actor))
		return nil
	}

	if err := s.store.Set(ctx, allowanceKey(levelID), value); err != nil {
		return domain.Internal(err, op, "failed to save allowance")
	}
	metrics.AllowanceUpdates.WithLabelValues("saved").Inc()
	s.logger.Info("allowance saved",
		"level_id", levelID,
		"allowance", value,
		"user_id", domain.UserID(actor),
	)
	return nil
}

func (s *quotaService) GetConsumed(ctx context.Context, userID int64) (int64, error) {
	const op = "quota.get_consumed"

	v, _, err := s.store.Get(ctx, consumedKey(userID))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read download count")
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

func (s *quotaService) IncrementConsumed(ctx context.Context, userID int64) (int64, error) {
	const op = "quota.increment_consumed"

	v, err := s.store.Increment(ctx, consumedKey(userID))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to increment download count")
	}
	return v, nil
}

func (s *quotaService) ReserveDownload(ctx context.Context, userID, allowance int64) (int64, bool, error) {
	const op = "quota.reserve_download"

	v, ok, err := s.store.IncrementIfBelow(ctx, consumedKey(userID), allowance)
	if err != nil {
		return 0, false, domain.Internal(err, op, "failed to reserve download")
	}
	return v, ok, nil
}

func (s *quotaService) ReleaseDownload(ctx context.Context, userID int64) error {
	const op = "quota.release_download"

	if _, err := s.store.Decrement(ctx, consumedKey(userID)); err != nil {
		return domain.Internal(err, op, "failed to release download")
	}
	metrics.ReservationsReleased.Inc()
	return nil
}

func (s *quotaService) ResetConsumed(ctx context.Context, userID int64) error {
	const op = "quota.reset_consumed"

	if err := s.store.Delete(ctx, consumedKey(userID)); err != nil {
		return domain.Internal(err, op, "failed to reset download count")
	}
	return nil
}

func (s *quotaService) Usage(ctx context.Context, userID int64) (*domain.PackUsage, error) {
	usage := &domain.PackUsage{UserID: userID}

	levelID, ok, err := s.memberships.ActiveLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage.LevelID = levelID
	usage.HasLevel = ok

	if ok {
		if usage.Allowance, err = s.GetAllowance(ctx, levelID); err != nil {
			return nil, err
		}
	}
	if usage.Consumed, err = s.GetConsumed(ctx, userID); err != nil {
		return nil, err
	}
	return usage, nil
}
