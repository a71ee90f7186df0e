package domain

import (
	"net/url"
	"strconv"
	"strings"
)

// Form field names posted by the Download trigger.
const (
	FieldSecurity = "security"
	FieldItem     = "item"
)

// FulfillmentRequest is the typed payload of a pack download request.
type FulfillmentRequest struct {
	ProductID int64
	Token     string
}

// ParseFulfillmentRequest types the posted form. It never fails: malformed
// values collapse to zero values and are rejected by the fulfillment service
// in the same order the checks are documented.
func ParseFulfillmentRequest(form url.Values) FulfillmentRequest {
	return FulfillmentRequest{
		ProductID: AbsInt(form.Get(FieldItem)),
		Token:     strings.TrimSpace(form.Get(FieldSecurity)),
	}
}

// AbsInt converts a form value to a non-negative integer. Anything that is
// not an integer becomes 0.
func AbsInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	if n < 0 {
		return -n
	}
	return n
}

// FulfillmentResult is returned to the browser, which navigates to File
// when it is not empty.
type FulfillmentResult struct {
	Files []ManifestEntry `json:"files"`
	File  string          `json:"file"`
	// Granted is true when the download consumed an allowance slot.
	Granted bool `json:"-"`
}
