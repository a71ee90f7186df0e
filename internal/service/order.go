package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/DukeRupert/packs/internal/storage"
	"github.com/DukeRupert/packs/internal/worker"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Fulfillment is the digital goods side of a download: products, their
// files, orders and download links.
type Fulfillment interface {
	// GetProduct returns the product with its file manifest.
	// Returns domain.ENOTFOUND for unknown products.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// FileManifest lists the product's files in registration order.
	FileManifest(ctx context.Context, productID int64) (domain.FileManifest, error)

	// HasCompletedPurchase reports whether the member owns the product.
	HasCompletedPurchase(ctx context.Context, userID, productID int64) (bool, error)

	// LatestCompletedOrder returns the member's most recent completed order
	// containing the product, or domain.ENOTFOUND.
	LatestCompletedOrder(ctx context.Context, userID, productID int64) (*domain.Order, error)

	// CreateProvisionalEntitlement stores a pending zero-cost order.
	CreateProvisionalEntitlement(ctx context.Context, params domain.GrantParams) (*domain.Order, error)

	// FinalizeEntitlement completes a pending order.
	FinalizeEntitlement(ctx context.Context, orderID int64, opts domain.FinalizeOptions) (*domain.Order, error)

	// AbandonEntitlement marks a pending order failed.
	AbandonEntitlement(ctx context.Context, orderID int64) error

	// AddNote attaches an audit note to an order.
	AddNote(ctx context.Context, orderID int64, note string) error

	// DownloadURL resolves a signed link to file for the order's buyer.
	DownloadURL(ctx context.Context, order *domain.Order, file domain.DownloadFile) (string, error)
}

type orderService struct {
	db      *sql.DB
	queries *repository.Queries
	storage storage.Storage
	linkTTL time.Duration
	logger  *slog.Logger
}

// NewOrderService creates a Postgres-backed Fulfillment.
func NewOrderService(
	db *sql.DB,
	queries *repository.Queries,
	store storage.Storage,
	linkTTL time.Duration,
	logger *slog.Logger,
) Fulfillment {
	return &orderService{
		db:      db,
		queries: queries,
		storage: store,
		linkTTL: linkTTL,
		logger:  logger,
	}
}

func (s *orderService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	const op = "order.get_product"

	p, err := s.queries.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "product", productID)
		}
		return nil, domain.Internal(err, op, "failed to load product")
	}

	files, err := s.FileManifest(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &domain.Product{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		Bundle:         p.Bundle,
		VariablePrices: p.VariablePrices,
		Files:          files,
	}, nil
}

func (s *orderService) FileManifest(ctx context.Context, productID int64) (domain.FileManifest, error) {
	const op = "order.file_manifest"

	rows, err := s.queries.ListProductFiles(ctx, productID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load product files")
	}

	manifest := make(domain.FileManifest, 0, len(rows))
	for _, f := range rows {
		manifest = append(manifest, domain.DownloadFile{
			Index:      int(f.Idx),
			Name:       f.Name,
			StorageKey: f.StorageKey,
		})
	}
	return manifest, nil
}

func (s *orderService) HasCompletedPurchase(ctx context.Context, userID, productID int64) (bool, error) {
	const op = "order.has_completed_purchase"

	if userID <= 0 {
		return false, nil
	}
	owned, err := s.queries.HasCompletedPurchase(ctx, repository.HasCompletedPurchaseParams{
		UserID:    sql.NullInt64{Int64: userID, Valid: true},
		ProductID: productID,
	})
	if err != nil {
		return false, domain.Internal(err, op, "failed to check purchases")
	}
	return owned, nil
}

func (s *orderService) LatestCompletedOrder(ctx context.Context, userID, productID int64) (*domain.Order, error) {
	const op = "order.latest_completed"

	o, err := s.queries.GetLatestCompletedOrderForProduct(ctx, repository.GetLatestCompletedOrderForProductParams{
		UserID:    sql.NullInt64{Int64: userID, Valid: true},
		ProductID: productID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "no completed order for product %d", productID)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return s.loadOrder(ctx, op, o)
}

func (s *orderService) CreateProvisionalEntitlement(ctx context.Context, params domain.GrantParams) (*domain.Order, error) {
	const op = "order.create_provisional"

	if params.Buyer.ID <= 0 || params.Buyer.Email == "" {
		return nil, domain.Invalid(op, "grant requires a member with an email address")
	}

	info, err := json.Marshal(params.Buyer)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode buyer")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()
	qtx := s.queries.WithTx(tx)

	o, err := qtx.CreateOrder(ctx, repository.CreateOrderParams{
		PurchaseKey: uuid.New(),
		UserID:      sql.NullInt64{Int64: params.Buyer.ID, Valid: true},
		Email:       params.Buyer.Email,
		FirstName:   domain.ToNullString(params.Buyer.FirstName),
		LastName:    domain.ToNullString(params.Buyer.LastName),
		UserInfo:    pqtype.NullRawMessage{RawMessage: info, Valid: true},
		Gateway:     domain.GatewayManual,
		Total:       0,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create order")
	}

	err = qtx.AddOrderItem(ctx, repository.AddOrderItemParams{
		OrderID:   o.ID,
		Position:  0,
		ProductID: params.ProductID,
		ItemPrice: 0,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to add order item")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit order")
	}

	order := s.toDomain(o)
	order.Items = []domain.OrderItem{{ProductID: params.ProductID}}
	return order, nil
}

func (s *orderService) FinalizeEntitlement(ctx context.Context, orderID int64, opts domain.FinalizeOptions) (*domain.Order, error) {
	const op = "order.finalize"

	current, err := s.queries.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "order", orderID)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	order := s.toDomain(current)
	if err := order.TransitionTo(domain.OrderStatusComplete); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	o, err := s.queries.CompleteOrder(ctx, repository.CompleteOrderParams{
		ID:              orderID,
		SuppressReceipt: opts.SuppressReceipt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Invalid(op, "order is no longer pending")
		}
		return nil, domain.Internal(err, op, "failed to complete order")
	}

	if !opts.SuppressReceipt {
		if _, err := worker.EnqueueSendReceipt(ctx, s.queries, o.ID); err != nil {
			// The order is complete; a missing receipt is not worth failing it.
			s.logger.Error("failed to enqueue receipt", "order_id", o.ID, "error", err)
		}
	}

	return s.loadOrder(ctx, op, o)
}

func (s *orderService) AbandonEntitlement(ctx context.Context, orderID int64) error {
	const op = "order.abandon"

	if err := s.queries.FailOrder(ctx, orderID); err != nil {
		return domain.Internal(err, op, "failed to mark order failed")
	}
	return nil
}

func (s *orderService) AddNote(ctx context.Context, orderID int64, note string) error {
	const op = "order.add_note"

	_, err := s.queries.AddOrderNote(ctx, repository.AddOrderNoteParams{
		OrderID: orderID,
		Note:    note,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to add order note")
	}
	return nil
}

func (s *orderService) DownloadURL(ctx context.Context, order *domain.Order, file domain.DownloadFile) (string, error) {
	const op = "order.download_url"

	u, err := s.storage.URL(ctx, file.StorageKey, storage.URLOptions{
		Expiry:   s.linkTTL,
		Filename: file.Name,
		Ref:      order.Key,
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to sign download link")
	}
	return u, nil
}

func (s *orderService) loadOrder(ctx context.Context, op string, o repository.Order) (*domain.Order, error) {
	items, err := s.queries.ListOrderItems(ctx, o.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}

	order := s.toDomain(o)
	for _, i := range items {
		order.Items = append(order.Items, domain.OrderItem{ProductID: i.ProductID, ItemPrice: i.ItemPrice})
	}
	return order, nil
}

// toDomain converts a stored order. A user_info column that does not decode
// leaves UserInfo empty; it is logged rather than failing the download.
func (s *orderService) toDomain(o repository.Order) *domain.Order {
	order := &domain.Order{
		ID:        o.ID,
		Key:       o.PurchaseKey.String(),
		UserID:    o.UserID.Int64,
		Email:     o.Email,
		FirstName: domain.NullStringValue(o.FirstName),
		LastName:  domain.NullStringValue(o.LastName),
		Gateway:   o.Gateway,
		Status:    domain.OrderStatus(o.Status),
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
	if o.UserInfo.Valid {
		if err := json.Unmarshal(o.UserInfo.RawMessage, &order.UserInfo); err != nil {
			s.logger.Warn("failed to decode order user info", "order_id", o.ID, "error", err)
		}
	}
	return order
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
