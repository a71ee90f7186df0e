// Package jobs contains the background job handlers registered with the worker.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/email"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/DukeRupert/packs/internal/worker"
)

// ReceiptQueries is the subset of repository.Queries the receipt job reads.
type ReceiptQueries interface {
	GetOrderByID(ctx context.Context, id int64) (repository.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]repository.OrderItem, error)
	GetProduct(ctx context.Context, id int64) (repository.Product, error)
}

// SendReceiptHandler mails the purchase receipt for a completed order.
type SendReceiptHandler struct {
	queries ReceiptQueries
	mailer  email.Mailer
	logger  *slog.Logger
}

// NewSendReceiptHandler creates a new handler for receipt jobs.
func NewSendReceiptHandler(queries ReceiptQueries, mailer email.Mailer, logger *slog.Logger) *SendReceiptHandler {
	return &SendReceiptHandler{
		queries: queries,
		mailer:  mailer,
		logger:  logger,
	}
}

func (h *SendReceiptHandler) Type() string {
	return worker.JobTypeSendReceipt
}

func (h *SendReceiptHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendReceiptPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.OrderID <= 0 {
		return worker.NewPermanentError(fmt.Errorf("invalid order id %d", p.OrderID))
	}

	order, err := h.queries.GetOrderByID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("order not found: %d", p.OrderID))
		}
		return fmt.Errorf("fetch order: %w", err)
	}

	// Pack grants are completed with the receipt suppressed; a job for one
	// can only come from a manual enqueue.
	if order.SuppressReceipt {
		h.logger.Info("receipt suppressed for order", "order_id", order.ID)
		return nil
	}
	if !domain.OrderStatus(order.Status).IsCompleted() {
		return worker.NewPermanentError(fmt.Errorf("order %d is %s, not complete", order.ID, order.Status))
	}

	items, err := h.queries.ListOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("fetch order items: %w", err)
	}

	receipt := email.Receipt{
		To:          order.Email,
		Name:        domain.NullStringValue(order.FirstName),
		PurchaseKey: order.PurchaseKey.String(),
		Total:       order.Total,
	}
	for _, item := range items {
		name := fmt.Sprintf("Product #%d", item.ProductID)
		product, err := h.queries.GetProduct(ctx, item.ProductID)
		switch {
		case err == nil:
			name = product.Name
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("fetch product %d: %w", item.ProductID, err)
		}
		receipt.Items = append(receipt.Items, email.ReceiptItem{Name: name, Price: item.ItemPrice})
	}

	if err := h.mailer.SendPurchaseReceipt(ctx, receipt); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	h.logger.Info("receipt sent", "order_id", order.ID, "items", len(items))
	return nil
}

var _ worker.JobHandler = (*SendReceiptHandler)(nil)
