package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/metastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLevel   = int64(10)
	testProduct = int64(42)
)

type fulfillmentFixture struct {
	svc         FulfillmentService
	quota       QuotaService
	store       *metastore.MemoryStore
	memberships *memberships
	orders      *memoryOrders
	member      *domain.User
}

func newFulfillmentFixture(t *testing.T, allowance int64) *fulfillmentFixture {
	t.Helper()
	ctx := context.Background()

	store := metastore.NewMemoryStore()
	m := newMemberships()
	nonces := stubNonces{valid: validToken}
	quota := NewQuotaService(store, m, nonces, newTestLogger())
	orders := newMemoryOrders()

	orders.addProduct(&domain.Product{
		ID:    testProduct,
		Name:  "Field Guide",
		Price: 1500,
		Files: domain.FileManifest{
			{Index: 0, Name: "guide.pdf", StorageKey: "products/42/guide.pdf"},
			{Index: 1, Name: "guide.epub", StorageKey: "products/42/guide.epub"},
		},
	})

	member := &domain.User{ID: 7, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	m.levels[member.ID] = testLevel
	if allowance > 0 {
		require.NoError(t, quota.SetAllowance(ctx, testLevel, allowance, validToken, &domain.User{ID: 1}))
	}

	return &fulfillmentFixture{
		svc:         NewFulfillmentService(quota, m, orders, nonces, newTestLogger()),
		quota:       quota,
		store:       store,
		memberships: m,
		orders:      orders,
		member:      member,
	}
}

func (f *fulfillmentFixture) download(productID int64) (*domain.FulfillmentResult, error) {
	return f.svc.Process(context.Background(), f.member, domain.FulfillmentRequest{ProductID: productID, Token: validToken})
}

func (f *fulfillmentFixture) consumed(t *testing.T) int64 {
	t.Helper()
	v, err := f.quota.GetConsumed(context.Background(), f.member.ID)
	require.NoError(t, err)
	return v
}

// Allowance 3, nothing used: the grant succeeds and uses one slot.
func TestFulfillment_GrantWithinAllowance(t *testing.T) {
	f := newFulfillmentFixture(t, 3)

	result, err := f.download(testProduct)
	require.NoError(t, err)

	assert.True(t, result.Granted)
	assert.Contains(t, result.File, "products/42/guide.pdf")
	assert.Equal(t, []domain.ManifestEntry{{Index: 0, Name: "guide.pdf"}, {Index: 1, Name: "guide.epub"}}, result.Files)
	assert.Equal(t, int64(1), f.consumed(t))

	order, err := f.orders.LatestCompletedOrder(context.Background(), f.member.ID, testProduct)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayManual, order.Gateway)
	assert.Equal(t, domain.OrderStatusComplete, order.Status)
	assert.Equal(t, int64(0), order.Total)
	assert.Equal(t, f.member.BuyerInfo(), order.UserInfo)
	assert.Equal(t, []string{domain.PackGrantNote}, f.orders.notes[order.ID])
	assert.Equal(t, []domain.FinalizeOptions{{SuppressReceipt: true}}, f.orders.finalizeOpt)
	assert.Contains(t, result.File, "ref="+order.Key)
}

// Allowance 3, all used: refused with the limit message and no order.
func TestFulfillment_LimitReached(t *testing.T) {
	f := newFulfillmentFixture(t, 3)
	require.NoError(t, f.store.Set(context.Background(), consumedKey(f.member.ID), 3))

	result, err := f.download(testProduct)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
	assert.Equal(t, domain.MsgLimitReached, domain.ErrorMessage(err))
	assert.Equal(t, int64(3), f.consumed(t))
	assert.Equal(t, 0, f.orders.grantCount())
}

// No subscription at all.
func TestFulfillment_NoMembership(t *testing.T) {
	f := newFulfillmentFixture(t, 3)
	delete(f.memberships.levels, f.member.ID)

	_, err := f.download(testProduct)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Equal(t, domain.MsgNoMembership, domain.ErrorMessage(err))
	assert.Equal(t, int64(0), f.consumed(t))
}

// Active level that carries no pack.
func TestFulfillment_LevelWithoutPack(t *testing.T) {
	f := newFulfillmentFixture(t, 0)

	_, err := f.download(testProduct)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Equal(t, domain.MsgInvalidMembership, domain.ErrorMessage(err))
	assert.Equal(t, 0, f.orders.grantCount())
}

// A product the member already owns is served without touching the count,
// even when the pack is exhausted.
func TestFulfillment_PriorPurchase(t *testing.T) {
	f := newFulfillmentFixture(t, 3)
	require.NoError(t, f.store.Set(context.Background(), consumedKey(f.member.ID), 3))
	paid := f.orders.addPurchase(f.member.ID, testProduct)

	result, err := f.download(testProduct)
	require.NoError(t, err)

	assert.False(t, result.Granted)
	assert.Contains(t, result.File, "products/42/guide.pdf")
	assert.Contains(t, result.File, "ref="+paid.Key)
	assert.Equal(t, int64(3), f.consumed(t))
	assert.Equal(t, 0, f.orders.grantCount())
}

func TestFulfillment_PriorPurchaseWithoutMembership(t *testing.T) {
	f := newFulfillmentFixture(t, 0)
	delete(f.memberships.levels, f.member.ID)
	f.orders.addPurchase(f.member.ID, testProduct)

	result, err := f.download(testProduct)
	require.NoError(t, err)
	assert.NotEmpty(t, result.File)
}

func TestFulfillment_RepeatDownloadIsIdempotent(t *testing.T) {
	f := newFulfillmentFixture(t, 3)

	first, err := f.download(testProduct)
	require.NoError(t, err)
	second, err := f.download(testProduct)
	require.NoError(t, err)

	assert.True(t, first.Granted)
	assert.False(t, second.Granted)
	assert.Equal(t, first.File, second.File)
	assert.Equal(t, int64(1), f.consumed(t))
	assert.Equal(t, 1, f.orders.grantCount())
}

func TestFulfillment_HardFailures(t *testing.T) {
	tests := []struct {
		name     string
		user     *domain.User
		req      domain.FulfillmentRequest
		wantCode string
	}{
		{"bad token", &domain.User{ID: 7}, domain.FulfillmentRequest{ProductID: testProduct, Token: "forged"}, domain.EUNAUTHORIZED},
		{"missing token", &domain.User{ID: 7}, domain.FulfillmentRequest{ProductID: testProduct}, domain.EUNAUTHORIZED},
		{"anonymous", nil, domain.FulfillmentRequest{ProductID: testProduct, Token: validToken}, domain.EUNAUTHORIZED},
		{"no product", &domain.User{ID: 7}, domain.FulfillmentRequest{Token: validToken}, domain.EINVALID},
		{"unknown product", &domain.User{ID: 7}, domain.FulfillmentRequest{ProductID: 999, Token: validToken}, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFulfillmentFixture(t, 3)

			result, err := f.svc.Process(context.Background(), tt.user, tt.req)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.False(t, domain.IsBusinessRule(err))
			assert.Equal(t, int64(0), f.consumed(t))
		})
	}
}

func TestFulfillment_IneligibleProduct(t *testing.T) {
	for _, p := range []*domain.Product{
		{ID: 50, Name: "Bundle", Bundle: true},
		{ID: 51, Name: "Tiered", VariablePrices: true},
	} {
		t.Run(p.Name, func(t *testing.T) {
			f := newFulfillmentFixture(t, 3)
			f.orders.addProduct(p)

			_, err := f.download(p.ID)
			assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
			assert.Equal(t, int64(0), f.consumed(t), "the reserved slot is given back")
			assert.Equal(t, 0, f.orders.grantCount())
		})
	}
}

// At the limit, the limit message wins over product eligibility.
func TestFulfillment_IneligibleProductAtLimit(t *testing.T) {
	f := newFulfillmentFixture(t, 2)
	f.orders.addProduct(&domain.Product{ID: 50, Name: "Bundle", Bundle: true})
	require.NoError(t, f.store.Set(context.Background(), consumedKey(f.member.ID), 2))

	_, err := f.download(50)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
	assert.Equal(t, domain.MsgLimitReached, domain.ErrorMessage(err))
	assert.Equal(t, int64(2), f.consumed(t))
}

func TestFulfillment_EmptyManifest(t *testing.T) {
	f := newFulfillmentFixture(t, 3)
	f.orders.addProduct(&domain.Product{ID: 60, Name: "Coming soon"})

	result, err := f.download(60)
	require.NoError(t, err)
	assert.True(t, result.Granted)
	assert.Equal(t, "", result.File)
	assert.Empty(t, result.Files)
	assert.Equal(t, int64(1), f.consumed(t))
}

func TestFulfillment_ReleasesSlotOnFailure(t *testing.T) {
	t.Run("create fails", func(t *testing.T) {
		f := newFulfillmentFixture(t, 3)
		f.orders.createErr = domain.Internal(errors.New("insert failed"), "order.create", "failed to create order")

		_, err := f.download(testProduct)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
		assert.Equal(t, int64(0), f.consumed(t))
	})

	t.Run("finalize fails", func(t *testing.T) {
		f := newFulfillmentFixture(t, 3)
		f.orders.finalizeErr = domain.Internal(errors.New("update failed"), "order.finalize", "failed to complete order")

		_, err := f.download(testProduct)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
		assert.Equal(t, int64(0), f.consumed(t))
		require.Len(t, f.orders.abandoned, 1)
		assert.Equal(t, 0, f.orders.grantCount())
	})

	t.Run("link fails after finalize keeps the slot", func(t *testing.T) {
		f := newFulfillmentFixture(t, 3)
		f.orders.urlErr = errors.New("presign failed")

		_, err := f.download(testProduct)
		require.Error(t, err)
		assert.Equal(t, int64(1), f.consumed(t))
		assert.Equal(t, 1, f.orders.grantCount())

		f.orders.urlErr = nil
		result, err := f.download(testProduct)
		require.NoError(t, err)
		assert.False(t, result.Granted)
		assert.Equal(t, int64(1), f.consumed(t))
	})
}

func TestFulfillment_ConcurrentGrantsRespectAllowance(t *testing.T) {
	const allowance = 3
	f := newFulfillmentFixture(t, allowance)

	const products = 12
	for i := int64(0); i < products; i++ {
		f.orders.addProduct(&domain.Product{
			ID:    100 + i,
			Name:  "Pattern",
			Files: domain.FileManifest{{Index: 0, Name: "pattern.pdf", StorageKey: "products/pattern.pdf"}},
		})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		granted  int
		refusals int
	)
	for i := int64(0); i < products; i++ {
		wg.Add(1)
		go func(productID int64) {
			defer wg.Done()
			_, err := f.download(productID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case domain.ErrorCode(err) == domain.EQUOTA:
				refusals++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(100 + i)
	}
	wg.Wait()

	assert.Equal(t, allowance, granted)
	assert.Equal(t, products-allowance, refusals)
	assert.Equal(t, int64(allowance), f.consumed(t))
	assert.Equal(t, allowance, f.orders.grantCount())
}
