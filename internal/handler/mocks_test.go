package handler

import (
	"context"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/service"
)

type mockProducts struct {
	GetProductFunc func(ctx context.Context, productID int64) (*domain.Product, error)
}

func (m *mockProducts) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return m.GetProductFunc(ctx, productID)
}

type mockEligibility struct {
	ShowDownloadButtonFunc func(ctx context.Context, user *domain.User, product *domain.Product) (bool, error)
}

func (m *mockEligibility) HasPackMembership(context.Context, int64) (bool, error) { return false, nil }
func (m *mockEligibility) IsAtLimit(context.Context, int64) (bool, error)         { return false, nil }

func (m *mockEligibility) ShowDownloadButton(ctx context.Context, user *domain.User, product *domain.Product) (bool, error) {
	return m.ShowDownloadButtonFunc(ctx, user, product)
}

type mockLevels struct {
	GetLevelFunc func(ctx context.Context, levelID int64) (*domain.SubscriptionLevel, error)
}

func (m *mockLevels) GetLevel(ctx context.Context, levelID int64) (*domain.SubscriptionLevel, error) {
	return m.GetLevelFunc(ctx, levelID)
}

// mockQuota implements service.QuotaService. Unset funcs return zero values.
type mockQuota struct {
	GetAllowanceFunc func(ctx context.Context, levelID int64) (int64, error)
	SetAllowanceFunc func(ctx context.Context, levelID, value int64, token string, actor *domain.User) error
}

var _ service.QuotaService = (*mockQuota)(nil)

func (m *mockQuota) GetAllowance(ctx context.Context, levelID int64) (int64, error) {
	if m.GetAllowanceFunc == nil {
		return 0, nil
	}
	return m.GetAllowanceFunc(ctx, levelID)
}

func (m *mockQuota) SetAllowance(ctx context.Context, levelID, value int64, token string, actor *domain.User) error {
	if m.SetAllowanceFunc == nil {
		return nil
	}
	return m.SetAllowanceFunc(ctx, levelID, value, token, actor)
}

func (m *mockQuota) GetConsumed(context.Context, int64) (int64, error)       { return 0, nil }
func (m *mockQuota) IncrementConsumed(context.Context, int64) (int64, error) { return 0, nil }
func (m *mockQuota) ReleaseDownload(context.Context, int64) error            { return nil }
func (m *mockQuota) ResetConsumed(context.Context, int64) error              { return nil }

func (m *mockQuota) ReserveDownload(context.Context, int64, int64) (int64, bool, error) {
	return 0, false, nil
}

func (m *mockQuota) Usage(_ context.Context, userID int64) (*domain.PackUsage, error) {
	return &domain.PackUsage{UserID: userID}, nil
}

// staticNonces issues "nonce-<action>" regardless of user.
type staticNonces struct{}

func (staticNonces) Create(action string, _ int64) string { return "nonce-" + action }

type mockMembership struct {
	RecordPaymentFunc    func(ctx context.Context, params service.RecordPaymentParams) (*service.RecordedPayment, error)
	MarkResetAppliedFunc func(ctx context.Context, paymentID int64) error
}

func (m *mockMembership) RecordPayment(ctx context.Context, params service.RecordPaymentParams) (*service.RecordedPayment, error) {
	return m.RecordPaymentFunc(ctx, params)
}

func (m *mockMembership) MarkResetApplied(ctx context.Context, paymentID int64) error {
	return m.MarkResetAppliedFunc(ctx, paymentID)
}

type mockCustomers struct {
	GetByStripeCustomerIDFunc func(ctx context.Context, customerID string) (*domain.User, error)
}

func (m *mockCustomers) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return m.GetByStripeCustomerIDFunc(ctx, customerID)
}

type mockReset struct {
	events []domain.PaymentRecorded
	err    error
}

func (m *mockReset) OnPaymentRecorded(_ context.Context, event domain.PaymentRecorded) error {
	m.events = append(m.events, event)
	return m.err
}
