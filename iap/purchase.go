package iap

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/code-payments/cashier/codec"
)

type PurchaseState uint8

const (
	StatePurchased PurchaseState = iota
	StateCanceled
	StatePending
)

func (s PurchaseState) String() string {
	switch s {
	case StatePurchased:
		return "purchased"
	case StateCanceled:
		return "canceled"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Purchase is a completed purchase as reported by a vendor. A purchase is
// owned by the caller until it is consumed.
type Purchase struct {
	Vendor           VendorID
	Product          Product
	OrderID          string
	Token            string
	Receipt          []byte
	Signature        string
	DeveloperPayload string
	PurchaseTime     int64 // unix millis
	State            PurchaseState
}

// ReceiptEncodings are the receipt encodings ParsePurchase accepts. Receipts
// are written with codec.Default.
var ReceiptEncodings = []codec.Encoding{codec.Base64, codec.Base64URL, codec.Base58}

type purchaseJSON struct {
	Vendor           VendorID      `json:"vendor"`
	Product          Product       `json:"product"`
	OrderID          string        `json:"order_id"`
	Token            string        `json:"token"`
	Receipt          string        `json:"receipt"`
	Signature        string        `json:"signature,omitempty"`
	DeveloperPayload string        `json:"developer_payload,omitempty"`
	PurchaseTime     int64         `json:"purchase_time"`
	State            PurchaseState `json:"state"`
}

// SKU returns the purchased product's SKU.
func (p *Purchase) SKU() string {
	return p.Product.SKU
}

// Time returns the purchase time.
func (p *Purchase) Time() time.Time {
	return time.UnixMilli(p.PurchaseTime)
}

// Clone returns a deep copy.
func (p *Purchase) Clone() *Purchase {
	cloned := *p
	if p.Receipt != nil {
		cloned.Receipt = bytes.Clone(p.Receipt)
	}
	return &cloned
}

// Equal compares every observable field.
func (p *Purchase) Equal(other *Purchase) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Vendor == other.Vendor &&
		p.Product == other.Product &&
		p.OrderID == other.OrderID &&
		p.Token == other.Token &&
		bytes.Equal(p.Receipt, other.Receipt) &&
		p.Signature == other.Signature &&
		p.DeveloperPayload == other.DeveloperPayload &&
		p.PurchaseTime == other.PurchaseTime &&
		p.State == other.State
}

func (p *Purchase) MarshalJSON() ([]byte, error) {
	if p.Vendor == "" {
		return nil, errors.Wrap(ErrMalformedPurchase, "purchase has no vendor")
	}
	if field, ok := p.invalidText(); !ok {
		return nil, errors.Wrapf(ErrMalformedPurchase, "%s is not valid UTF-8", field)
	}

	var receipt string
	if len(p.Receipt) > 0 {
		receipt = codec.Encode(p.Receipt)
	}

	return json.Marshal(purchaseJSON{
		Vendor:           p.Vendor,
		Product:          p.Product,
		OrderID:          p.OrderID,
		Token:            p.Token,
		Receipt:          receipt,
		Signature:        p.Signature,
		DeveloperPayload: p.DeveloperPayload,
		PurchaseTime:     p.PurchaseTime,
		State:            p.State,
	})
}

func (p *Purchase) UnmarshalJSON(data []byte) error {
	var raw purchaseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(ErrMalformedPurchase, err.Error())
	}
	if raw.Vendor == "" {
		return errors.Wrap(ErrMalformedPurchase, "missing vendor")
	}
	if raw.Product.SKU == "" {
		return errors.Wrap(ErrMalformedPurchase, "missing product sku")
	}

	var receipt []byte
	if raw.Receipt != "" {
		decoded, err := codec.DecodeOnly(raw.Receipt, ReceiptEncodings...)
		if err != nil {
			return errors.Wrapf(ErrMalformedPurchase, "receipt: %v", err)
		}
		if len(decoded) > 0 {
			receipt = decoded
		}
	}

	*p = Purchase{
		Vendor:           raw.Vendor,
		Product:          raw.Product,
		OrderID:          raw.OrderID,
		Token:            raw.Token,
		Receipt:          receipt,
		Signature:        raw.Signature,
		DeveloperPayload: raw.DeveloperPayload,
		PurchaseTime:     raw.PurchaseTime,
		State:            raw.State,
	}
	return nil
}

// invalidText returns the first text field JSON cannot carry unchanged.
func (p *Purchase) invalidText() (string, bool) {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"vendor", string(p.Vendor)},
		{"order_id", p.OrderID},
		{"token", p.Token},
		{"signature", p.Signature},
		{"developer_payload", p.DeveloperPayload},
		{"product sku", p.Product.SKU},
		{"product price", p.Product.Price},
		{"product currency", p.Product.Currency},
		{"product name", p.Product.Name},
		{"product description", p.Product.Description},
	} {
		if !utf8.ValidString(f.value) {
			return f.name, false
		}
	}
	return "", true
}

// JSON returns the textual interchange form of the purchase, suitable for
// handing to a server-side verifier.
func (p *Purchase) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParsePurchase reads a purchase from the form produced by JSON.
func ParsePurchase(text string) (*Purchase, error) {
	var p Purchase
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		if errors.Is(err, ErrMalformedPurchase) {
			return nil, err
		}
		return nil, errors.Wrap(ErrMalformedPurchase, err.Error())
	}
	return &p, nil
}
