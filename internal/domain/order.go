package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order in the fulfillment service.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusComplete OrderStatus = "complete"
	// OrderStatusPublish is the legacy name for a completed order.
	OrderStatusPublish  OrderStatus = "publish"
	OrderStatusRefunded OrderStatus = "refunded"
	OrderStatusFailed   OrderStatus = "failed"
)

// GatewayManual marks orders created without a payment processor.
const GatewayManual = "manual"

// PackGrantNote is attached to every order created from a download pack.
const PackGrantNote = "Downloaded with RCP membership"

// IsCompleted returns true for statuses that entitle the buyer to the files.
func (s OrderStatus) IsCompleted() bool {
	return s == OrderStatusComplete || s == OrderStatusPublish
}

// CanTransitionTo checks if an order can move to the target status.
//
// Valid transitions:
// - pending -> complete | failed
// - complete/publish -> refunded
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusComplete || target == OrderStatusFailed
	case OrderStatusComplete, OrderStatusPublish:
		return target == OrderStatusRefunded
	}
	return false
}

// UserInfo is the buyer identity snapshot stored with an order.
type UserInfo struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrderItem is a single cart line.
type OrderItem struct {
	ProductID int64
	ItemPrice int64 // cents
}

// Order is an entitlement record: a paid purchase or a zero-cost pack grant.
type Order struct {
	ID        int64
	Key       string // purchase key used when signing download links
	UserID    int64
	Email     string
	FirstName string
	LastName  string
	UserInfo  UserInfo
	Gateway   string
	Status    OrderStatus
	Total     int64 // cents
	Items     []OrderItem
	CreatedAt time.Time
}

// FirstProductID returns the product of the first cart line, or 0.
func (o *Order) FirstProductID() int64 {
	if len(o.Items) == 0 {
		return 0
	}
	return o.Items[0].ProductID
}

// TransitionTo moves the order to a new status if the lifecycle allows it.
func (o *Order) TransitionTo(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition order from %s to %s", o.Status, target)
	}
	o.Status = target
	return nil
}

// GrantParams describes a zero-cost order created from a download pack.
type GrantParams struct {
	ProductID int64
	Buyer     UserInfo
}

// FinalizeOptions controls side effects when an order is completed.
type FinalizeOptions struct {
	// SuppressReceipt skips the purchase receipt notification.
	SuppressReceipt bool
}
