package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
)

// EligibilityService decides whether a member can take a download from
// their pack.
//
// The answers are read-only snapshots used to render the product page.
// They never claim a slot; the fulfillment service re-checks everything
// when the download is requested.
type EligibilityService interface {
	// HasPackMembership is true when the member's active level carries an
	// allowance. Members without a subscription never have one.
	HasPackMembership(ctx context.Context, userID int64) (bool, error)

	// IsAtLimit is true when the member has an active level with an
	// allowance and has used all of it. Members without a subscription are
	// never at limit; check HasPackMembership as well.
	IsAtLimit(ctx context.Context, userID int64) (bool, error)

	// ShowDownloadButton decides whether the product page offers the pack
	// download instead of the purchase button. It is a display hint only.
	ShowDownloadButton(ctx context.Context, user *domain.User, product *domain.Product) (bool, error)
}

type eligibilityService struct {
	quota     QuotaService
	purchases Fulfillment
	logger    *slog.Logger
}

// NewEligibilityService creates a new EligibilityService.
func NewEligibilityService(quota QuotaService, purchases Fulfillment, logger *slog.Logger) EligibilityService {
	return &eligibilityService{
		quota:     quota,
		purchases: purchases,
		logger:    logger,
	}
}

func (s *eligibilityService) HasPackMembership(ctx context.Context, userID int64) (bool, error) {
	usage, err := s.quota.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return usage.Enabled(), nil
}

func (s *eligibilityService) IsAtLimit(ctx context.Context, userID int64) (bool, error) {
	usage, err := s.quota.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return usage.AtLimit(), nil
}

func (s *eligibilityService) ShowDownloadButton(ctx context.Context, user *domain.User, product *domain.Product) (bool, error) {
	if user == nil || product == nil || !product.EligibleForPack() {
		return false, nil
	}

	usage, err := s.quota.Usage(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if !usage.Enabled() {
		return false, nil
	}
	if !usage.AtLimit() {
		return true, nil
	}

	// Members at their limit still get the button for products they own.
	return s.purchases.HasCompletedPurchase(ctx, user.ID, product.ID)
}
