package iap

import (
	"crypto/sha256"
	"encoding/hex"
)

// ReceiptID returns a stable identifier for a purchase's receipt. Vendors
// that have no order identifier of their own key ownership by it.
func ReceiptID(receipt []byte) string {
	hasher := sha256.New()
	hasher.Write(receipt)
	return hex.EncodeToString(hasher.Sum(nil))
}
