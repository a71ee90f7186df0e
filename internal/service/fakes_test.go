package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/DukeRupert/packs/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubNonces accepts exactly one token.
type stubNonces struct {
	valid string
}

func (n stubNonces) Verify(token, action string, userID int64) bool {
	return token != "" && token == n.valid
}

// memberships maps user IDs to active level IDs.
type memberships struct {
	mu     sync.Mutex
	levels map[int64]int64
	err    error
}

func newMemberships() *memberships {
	return &memberships{levels: map[int64]int64{}}
}

func (m *memberships) ActiveLevel(_ context.Context, userID int64) (int64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[userID]
	return level, ok, nil
}

// memoryOrders is an in-memory Fulfillment.
type memoryOrders struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	orders   []*domain.Order
	notes    map[int64][]string
	nextID   int64

	createErr   error
	finalizeErr error
	urlErr      error
	abandoned   []int64
	finalizeOpt []domain.FinalizeOptions
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{
		products: map[int64]*domain.Product{},
		notes:    map[int64][]string{},
		nextID:   100,
	}
}

func (m *memoryOrders) addProduct(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// addPurchase records a conventional paid order.
func (m *memoryOrders) addPurchase(userID, productID int64) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o := &domain.Order{
		ID:      m.nextID,
		Key:     fmt.Sprintf("paid-%d", m.nextID),
		UserID:  userID,
		Gateway: "stripe",
		Status:  domain.OrderStatusComplete,
		Total:   1500,
		Items:   []domain.OrderItem{{ProductID: productID, ItemPrice: 1500}},
	}
	m.orders = append(m.orders, o)
	return o
}

func (m *memoryOrders) grantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.orders {
		if o.Gateway == domain.GatewayManual && o.Status.IsCompleted() {
			n++
		}
	}
	return n
}

func (m *memoryOrders) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.NotFound("test", "product", productID)
	}
	return p, nil
}

func (m *memoryOrders) FileManifest(_ context.Context, productID int64) (domain.FileManifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		return p.Files, nil
	}
	return nil, nil
}

func (m *memoryOrders) HasCompletedPurchase(ctx context.Context, userID, productID int64) (bool, error) {
	_, err := m.LatestCompletedOrder(ctx, userID, productID)
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		return false, nil
	}
	return err == nil, err
}

func (m *memoryOrders) LatestCompletedOrder(_ context.Context, userID, productID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.orders) - 1; i >= 0; i-- {
		o := m.orders[i]
		if o.UserID == userID && o.Status.IsCompleted() && o.FirstProductID() == productID {
			return o, nil
		}
	}
	return nil, domain.Errorf(domain.ENOTFOUND, "test", "no order")
}

func (m *memoryOrders) CreateProvisionalEntitlement(_ context.Context, params domain.GrantParams) (*domain.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o := &domain.Order{
		ID:        m.nextID,
		Key:       fmt.Sprintf("grant-%d", m.nextID),
		UserID:    params.Buyer.ID,
		Email:     params.Buyer.Email,
		FirstName: params.Buyer.FirstName,
		LastName:  params.Buyer.LastName,
		UserInfo:  params.Buyer,
		Gateway:   domain.GatewayManual,
		Status:    domain.OrderStatusPending,
		Items:     []domain.OrderItem{{ProductID: params.ProductID}},
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memoryOrders) FinalizeEntitlement(_ context.Context, orderID int64, opts domain.FinalizeOptions) (*domain.Order, error) {
	if m.finalizeErr != nil {
		return nil, m.finalizeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizeOpt = append(m.finalizeOpt, opts)
	for _, o := range m.orders {
		if o.ID == orderID {
			if err := o.TransitionTo(domain.OrderStatusComplete); err != nil {
				return nil, err
			}
			return o, nil
		}
	}
	return nil, domain.NotFound("test", "order", orderID)
}

func (m *memoryOrders) AbandonEntitlement(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, orderID)
	for _, o := range m.orders {
		if o.ID == orderID {
			o.Status = domain.OrderStatusFailed
		}
	}
	return nil
}

func (m *memoryOrders) AddNote(_ context.Context, orderID int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[orderID] = append(m.notes[orderID], note)
	return nil
}

func (m *memoryOrders) DownloadURL(_ context.Context, order *domain.Order, file domain.DownloadFile) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return fmt.Sprintf("https://files.test/%s?ref=%s", file.StorageKey, order.Key), nil
}
