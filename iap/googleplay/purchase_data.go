package googleplay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/code-payments/cashier/iap"
)

// PurchaseData is the signed JSON document the store returns for a purchase.
type PurchaseData struct {
	OrderID          string `json:"orderId"`
	PackageName      string `json:"packageName"`
	ProductID        string `json:"productId"`
	PurchaseTime     int64  `json:"purchaseTime"`
	PurchaseState    int    `json:"purchaseState"`
	DeveloperPayload string `json:"developerPayload,omitempty"`
	PurchaseToken    string `json:"purchaseToken"`
	AutoRenewing     bool   `json:"autoRenewing,omitempty"`
}

func parsePurchaseData(raw string) (*PurchaseData, error) {
	var data PurchaseData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parsing purchase data: %w", err)
	}
	if data.ProductID == "" {
		return nil, errors.New("purchase data has no productId")
	}
	if data.PurchaseToken == "" {
		return nil, errors.New("purchase data has no purchaseToken")
	}
	return &data, nil
}

func (d *PurchaseData) toPurchase(product iap.Product, raw, signature string) *iap.Purchase {
	return &iap.Purchase{
		Vendor:           VendorID,
		Product:          product,
		OrderID:          d.OrderID,
		Token:            d.PurchaseToken,
		Receipt:          []byte(raw),
		Signature:        signature,
		DeveloperPayload: d.DeveloperPayload,
		PurchaseTime:     d.PurchaseTime,
		State:            iap.PurchaseState(d.PurchaseState),
	}
}

// SkuDetails is the JSON document GetSkuDetails returns per SKU.
type SkuDetails struct {
	ProductID   string `json:"productId"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	PriceMicros int64  `json:"price_amount_micros"`
	Currency    string `json:"price_currency_code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func parseSkuDetails(raw string) (iap.Product, error) {
	var details SkuDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return iap.Product{}, fmt.Errorf("parsing sku details: %w", err)
	}

	return iap.NewProduct(
		details.ProductID,
		details.Price,
		details.Currency,
		details.Title,
		details.Description,
		details.PriceMicros,
		details.Type == string(iap.ItemTypeSubscription),
	)
}

// NewSkuDetails renders a product as the store would.
func NewSkuDetails(p iap.Product) SkuDetails {
	return SkuDetails{
		ProductID:   p.SKU,
		Type:        string(p.ItemType()),
		Price:       p.Price,
		PriceMicros: p.PriceMicros,
		Currency:    p.Currency,
		Title:       p.Name,
		Description: p.Description,
	}
}
