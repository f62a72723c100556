package iap

import (
	"context"
	"errors"
)

var (
	ErrExists   = errors.New("iap: purchase already exists")
	ErrNotFound = errors.New("iap: purchase not found")
)

// Store holds owned purchases, keyed by ReceiptID. Implementations hand out
// copies; callers may not mutate what they stored through a returned value.
type Store interface {
	CreatePurchase(ctx context.Context, purchase *Purchase) error
	GetPurchase(ctx context.Context, receiptID string) (*Purchase, error)

	// GetPurchases returns a vendor's purchases ordered by purchase time.
	GetPurchases(ctx context.Context, vendor VendorID) ([]*Purchase, error)

	DeletePurchase(ctx context.Context, receiptID string) error
}
