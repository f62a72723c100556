package iap

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MicrosPerUnit is the number of micro-units in one major currency unit.
const MicrosPerUnit = 1_000_000

// Product describes a catalog item. Products are values and are never
// modified after construction.
type Product struct {
	SKU          string `json:"sku"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceMicros  int64  `json:"micros_price"`
	Subscription bool   `json:"is_subscription"`
}

// NewProduct validates and returns a Product. The currency code is
// normalized to its canonical ISO-4217 form.
func NewProduct(sku, price, currencyCode, name, description string, priceMicros int64, subscription bool) (Product, error) {
	p := Product{
		SKU:          sku,
		Price:        price,
		Currency:     currencyCode,
		Name:         name,
		Description:  description,
		PriceMicros:  priceMicros,
		Subscription: subscription,
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	unit, _ := currency.ParseISO(currencyCode)
	p.Currency = unit.String()
	return p, nil
}

// Item returns a one-time (consumable or entitlement) product.
func Item(sku, price, currencyCode, name, description string, priceMicros int64) (Product, error) {
	return NewProduct(sku, price, currencyCode, name, description, priceMicros, false)
}

// SubscriptionProduct returns a recurring product.
func SubscriptionProduct(sku, price, currencyCode, name, description string, priceMicros int64) (Product, error) {
	return NewProduct(sku, price, currencyCode, name, description, priceMicros, true)
}

// MustItem is Item that panics on invalid input. Intended for static catalogs.
func MustItem(sku, price, currencyCode, name, description string, priceMicros int64) Product {
	p, err := Item(sku, price, currencyCode, name, description, priceMicros)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate reports whether the product is well-formed.
func (p Product) Validate() error {
	if p.SKU == "" {
		return errors.Wrap(ErrInvalidProduct, "sku is required")
	}
	if p.PriceMicros < 0 {
		return errors.Wrapf(ErrInvalidProduct, "negative price for %s", p.SKU)
	}
	if _, err := currency.ParseISO(p.Currency); err != nil {
		return errors.Wrapf(ErrInvalidProduct, "currency %q: %v", p.Currency, err)
	}
	return nil
}

// Amount returns the price in major currency units.
func (p Product) Amount() decimal.Decimal {
	return decimal.New(p.PriceMicros, -6)
}

// ItemType returns the store item type for the product.
func (p Product) ItemType() ItemType {
	if p.Subscription {
		return ItemTypeSubscription
	}
	return ItemTypeInApp
}

// ItemType partitions the catalog into one-time items and subscriptions.
type ItemType string

const (
	ItemTypeInApp        ItemType = "inapp"
	ItemTypeSubscription ItemType = "subs"
)

// FormatPrice renders a micro-unit amount with the currency's standard number
// of decimals, e.g. "USD 0.99".
func FormatPrice(currencyCode string, micros int64) (string, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidProduct, "currency %q: %v", currencyCode, err)
	}

	scale, _ := currency.Standard.Rounding(unit)
	return unit.String() + " " + decimal.New(micros, -6).StringFixed(int32(scale)), nil
}
