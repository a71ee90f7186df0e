// Package pack renders the download pack fragments: the product page call
// to action and the allowance field on the subscription level form.
package pack

import (
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Form field names shared with the handlers.
const (
	FieldAllowance      = "rcp-edd-downloads-allowed"
	FieldAllowanceNonce = "rcp_edd_downloads_allowed_nonce"
	FieldPackRequest    = "rcp-edd-download-pack-request"
	FieldPackNonce      = "rcp-edd-download-pack-nonce"
	FieldDownloadID     = "download_id"
	FieldCSRF           = "csrf_token"
)

// DefaultPluralLabel is the store's plural label for products.
const DefaultPluralLabel = "downloads"

// FormID returns id when set, otherwise the conventional form id for productID.
func FormID(id string, productID int64) string {
	if id != "" {
		return id
	}
	return "edd_purchase_" + strconv.FormatInt(productID, 10)
}

// AllowanceLabel returns e.g. "Downloads Allowed".
func AllowanceLabel(plural string) string {
	if plural == "" {
		plural = DefaultPluralLabel
	}
	return cases.Title(language.English).String(plural) + " Allowed"
}

// displayAllowance formats a stored allowance for the number input, which
// only accepts non-negative values.
func displayAllowance(v int64) string {
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 10)
}

// AllowanceDescription returns the help text shown under the field.
func AllowanceDescription(plural string) string {
	if plural == "" {
		plural = DefaultPluralLabel
	}
	return fmt.Sprintf("The number of %s allowed each subscription period.", cases.Lower(language.English).String(plural))
}

// DownloadButtonData renders the pack download form.
type DownloadButtonData struct {
	ProductID int64
	FormID    string // optional, see FormID
	Nonce     string
	Action    string // fulfillment endpoint
}

// PurchaseFormData renders the normal purchase form.
type PurchaseFormData struct {
	ProductID int64
	FormID    string
	Name      string
	Price     string // formatted
	Action    string // cart endpoint
}

// AllowanceFieldData renders the allowance input for one level.
type AllowanceFieldData struct {
	LevelID     int64 // 0 for a level that does not exist yet
	Allowance   int64
	Nonce       string
	CSRFToken   string
	PluralLabel string
	Action      string
}
