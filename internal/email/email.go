// Package email sends transactional mail for the store.
//
// The only message today is the purchase receipt sent when a paid order
// completes. Orders granted from a download pack are finalized with the
// receipt suppressed and never reach this package.
package email

import (
	"context"
	"fmt"
)

// Mailer sends transactional emails.
type Mailer interface {
	// SendPurchaseReceipt mails the receipt for a completed order.
	SendPurchaseReceipt(ctx context.Context, receipt Receipt) error
}

// Email represents a single email message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Receipt is the data rendered into a purchase receipt.
type Receipt struct {
	To          string
	Name        string
	PurchaseKey string
	Items       []ReceiptItem
	Total       int64 // cents
}

// ReceiptItem is one line of a receipt.
type ReceiptItem struct {
	Name  string
	Price int64 // cents
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // e.g. "localhost" for Mailhog
	Port     int    // e.g. 1025 for Mailhog
	Username string // empty for Mailhog
	Password string
	From     string
	FromName string
}

const (
	DefaultFromEmail = "noreply@packs.local"
	DefaultFromName  = "Packs"
)

// FormatCents renders an amount in cents as dollars, e.g. 1500 -> "$15.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
