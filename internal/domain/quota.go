package domain

// Meta store namespaces and fields for the two quota counters.
//
// The field names match the keys the membership and fulfillment services
// already use for this data, so existing rows keep working.
const (
	MetaNamespaceLevel = "level"
	MetaNamespaceUser  = "user"

	FieldDownloadsAllowed     = "edd_downloads_allowed"
	FieldCurrentDownloadCount = "rcp_edd_packs_current_download_count"
)

// Anti-forgery actions.
const (
	NonceActionSaveAllowance = "rcp_edd_downloads_allowed_nonce"
	NonceActionDownloadPack  = "rcp-edd-download-pack-nonce"
)

// PackUsage is a snapshot of a member's download pack for the current period.
type PackUsage struct {
	UserID    int64
	LevelID   int64
	HasLevel  bool  // member has an active subscription
	Allowance int64 // 0 when the level has no pack
	Consumed  int64
}

// Enabled reports whether the member's level carries a download pack.
func (u PackUsage) Enabled() bool {
	return u.HasLevel && u.Allowance > 0
}

// AtLimit reports whether every download in the pack has been used.
// Members without a subscription are never at limit; callers gate on Enabled.
func (u PackUsage) AtLimit() bool {
	return u.HasLevel && u.Allowance >= 1 && u.Consumed >= u.Allowance
}

// Remaining returns how many downloads are left, never negative.
func (u PackUsage) Remaining() int64 {
	if !u.Enabled() || u.Consumed >= u.Allowance {
		return 0
	}
	return u.Allowance - u.Consumed
}

// PaymentRecorded is emitted by the membership service whenever it records
// a payment for a member. It starts a new download period.
type PaymentRecorded struct {
	PaymentID string `json:"payment_id"`
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"` // cents
	Status    string `json:"status,omitempty"`
	Source    string `json:"-"`
}
