package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/metrics"
)

// FulfillmentService handles a member's request to download a product
// from their pack.
type FulfillmentService interface {
	// Process validates the request, then either returns the file from an
	// order the member already has, or grants the product against the
	// member's allowance.
	//
	// Hard failures (bad nonce, anonymous caller, missing product) carry
	// EUNAUTHORIZED, EINVALID or EFORBIDDEN. Membership and quota failures
	// carry EPAYMENT or EQUOTA with a message for the member.
	Process(ctx context.Context, user *domain.User, req domain.FulfillmentRequest) (*domain.FulfillmentResult, error)
}

type fulfillmentService struct {
	quota       QuotaService
	memberships MembershipProvider
	orders      Fulfillment
	nonces      NonceVerifier
	logger      *slog.Logger
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(
	quota QuotaService,
	memberships MembershipProvider,
	orders Fulfillment,
	nonces NonceVerifier,
	logger *slog.Logger,
) FulfillmentService {
	return &fulfillmentService{
		quota:       quota,
		memberships: memberships,
		orders:      orders,
		nonces:      nonces,
		logger:      logger,
	}
}

func (s *fulfillmentService) Process(ctx context.Context, user *domain.User, req domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
	const op = "fulfillment.process"

	if !s.nonces.Verify(req.Token, domain.NonceActionDownloadPack, domain.UserID(user)) {
		metrics.DownloadDenied("nonce")
		return nil, domain.Unauthorized(op, "invalid security token")
	}
	if user == nil {
		metrics.DownloadDenied("anonymous")
		return nil, domain.Unauthorized(op, "login required")
	}
	if req.ProductID <= 0 {
		metrics.DownloadDenied("invalid")
		return nil, domain.Invalid(op, "product is required")
	}

	logger := s.logger.With("user_id", user.ID, "product_id", req.ProductID)

	order, err := s.orders.LatestCompletedOrder(ctx, user.ID, req.ProductID)
	switch {
	case err == nil:
		return s.fromPriorPurchase(ctx, order, logger)
	case domain.ErrorCode(err) != domain.ENOTFOUND:
		return nil, err
	}

	return s.grant(ctx, user, req.ProductID, logger)
}

// fromPriorPurchase serves the first file of the order's first item. It
// never touches the member's count.
func (s *fulfillmentService) fromPriorPurchase(ctx context.Context, order *domain.Order, logger *slog.Logger) (*domain.FulfillmentResult, error) {
	result, err := s.resolve(ctx, order, order.FirstProductID())
	if err != nil {
		return nil, err
	}

	metrics.DownloadServed("prior_purchase")
	logger.Info("pack download served from prior purchase", "order_id", order.ID)
	return result, nil
}

func (s *fulfillmentService) grant(ctx context.Context, user *domain.User, productID int64, logger *slog.Logger) (*domain.FulfillmentResult, error) {
	const op = "fulfillment.grant"

	levelID, ok, err := s.memberships.ActiveLevel(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.DownloadDenied("no_membership")
		logger.Info("pack download refused: no membership")
		return nil, domain.NoMembership(op)
	}
	logger = logger.With("level_id", levelID)

	allowance, err := s.quota.GetAllowance(ctx, levelID)
	if err != nil {
		return nil, err
	}
	if allowance <= 0 {
		metrics.DownloadDenied("invalid_membership")
		logger.Info("pack download refused: level has no pack")
		return nil, domain.InvalidMembership(op)
	}

	product, err := s.orders.GetProduct(ctx, productID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			metrics.DownloadDenied("invalid")
			return nil, domain.Invalid(op, "unknown product")
		}
		return nil, err
	}

	// The limit is decided before product eligibility, so a member at the
	// limit hears about the limit whatever they clicked.
	used, reserved, err := s.quota.ReserveDownload(ctx, user.ID, allowance)
	if err != nil {
		return nil, err
	}
	if !reserved {
		metrics.DownloadDenied("limit")
		logger.Info("pack download refused: limit reached", "used", used, "allowance", allowance)
		return nil, domain.QuotaExceeded(op, used, allowance)
	}

	if !product.EligibleForPack() {
		s.release(ctx, user.ID, logger)
		metrics.DownloadDenied("ineligible_product")
		logger.Warn("pack download refused: product not eligible",
			"bundle", product.Bundle,
			"variable_prices", product.VariablePrices,
		)
		return nil, domain.Forbidden(op, "product cannot be downloaded with a membership")
	}

	order, err := s.createEntitlement(ctx, user, productID)
	if err != nil {
		s.release(ctx, user.ID, logger)
		return nil, err
	}

	if err := s.orders.AddNote(ctx, order.ID, domain.PackGrantNote); err != nil {
		logger.Error("failed to add grant note", "order_id", order.ID, "error", err)
	}

	// From here the member owns the product; a retry takes the prior
	// purchase branch, so the slot stays consumed.
	result, err := s.resolve(ctx, order, productID)
	if err != nil {
		return nil, err
	}
	result.Granted = true

	metrics.DownloadServed("grant")
	logger.Info("pack download granted",
		"order_id", order.ID,
		"used", used,
		"allowance", allowance,
	)
	return result, nil
}

// release gives back a slot taken by ReserveDownload.
func (s *fulfillmentService) release(ctx context.Context, userID int64, logger *slog.Logger) {
	if err := s.quota.ReleaseDownload(ctx, userID); err != nil {
		logger.Error("failed to release download slot", "error", err)
	}
}

// createEntitlement writes the zero-cost order and completes it without a
// purchase receipt. A pending order left by a failure is marked failed.
func (s *fulfillmentService) createEntitlement(ctx context.Context, user *domain.User, productID int64) (*domain.Order, error) {
	order, err := s.orders.CreateProvisionalEntitlement(ctx, domain.GrantParams{
		ProductID: productID,
		Buyer:     user.BuyerInfo(),
	})
	if err != nil {
		return nil, err
	}

	finalized, err := s.orders.FinalizeEntitlement(ctx, order.ID, domain.FinalizeOptions{SuppressReceipt: true})
	if err != nil {
		if abandonErr := s.orders.AbandonEntitlement(ctx, order.ID); abandonErr != nil {
			s.logger.Error("failed to abandon pending order", "order_id", order.ID, "error", abandonErr)
		}
		return nil, err
	}
	return finalized, nil
}

// resolve builds the response for productID: the full manifest and a link
// to its first file. An empty manifest yields an empty link.
func (s *fulfillmentService) resolve(ctx context.Context, order *domain.Order, productID int64) (*domain.FulfillmentResult, error) {
	manifest, err := s.orders.FileManifest(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := &domain.FulfillmentResult{Files: manifest.Public()}

	file, ok := manifest.First()
	if !ok {
		s.logger.Warn("product has no files", "product_id", productID, "order_id", order.ID)
		return result, nil
	}

	result.File, err = s.orders.DownloadURL(ctx, order, file)
	if err != nil {
		return nil, err
	}
	return result, nil
}
