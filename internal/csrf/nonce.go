package csrf

import (
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultNonceLifetime is how long a nonce stays valid. A nonce is accepted
// during the tick it was issued in and the one after, so its real lifetime
// is between half and the full value.
const DefaultNonceLifetime = 24 * time.Hour

// nonceLength is the number of hex characters kept from the MAC.
const nonceLength = 20

// Nonces issues and verifies per-action, per-user anti-forgery tokens.
//
// A nonce is a keyed MAC over (tick, action, user). It is not stored
// anywhere, so verifying it never touches the database.
type Nonces struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewNonces creates a nonce issuer. The secret must be at least 32 bytes
// for the blake2b keyed hash to be meaningful; shorter secrets are still
// accepted for development.
func NewNonces(secret []byte, lifetime time.Duration) *Nonces {
	if lifetime <= 0 {
		lifetime = DefaultNonceLifetime
	}
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum256(secret)
		secret = sum[:]
	}
	return &Nonces{secret: secret, lifetime: lifetime, now: time.Now}
}

// Create returns the nonce for action and user at the current tick.
func (n *Nonces) Create(action string, userID int64) string {
	return n.mac(n.tick(), action, userID)
}

// Verify checks token against the current and previous tick.
func (n *Nonces) Verify(token, action string, userID int64) bool {
	if token == "" {
		return false
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if subtle.ConstantTimeCompare([]byte(token), []byte(n.mac(t, action, userID))) == 1 {
			return true
		}
	}
	return false
}

func (n *Nonces) tick() int64 {
	half := int64(n.lifetime / 2)
	return n.now().UnixNano()/half + 1
}

func (n *Nonces) mac(tick int64, action string, userID int64) string {
	h, err := blake2b.New256(n.secret)
	if err != nil {
		// Only returned for keys longer than 64 bytes, which NewNonces prevents.
		panic("csrf: " + err.Error())
	}
	h.Write([]byte(strconv.FormatInt(tick, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(action))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	return hex.EncodeToString(h.Sum(nil))[:nonceLength]
}
