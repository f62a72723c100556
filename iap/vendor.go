package iap

import "context"

// VendorID identifies a billing backend.
type VendorID string

// Vendor adapts a concrete billing backend. Operational failures are returned
// as *VendorError with a code of the matching Operation.
type Vendor interface {
	ID() VendorID

	// StartPurchase begins a purchase flow and returns the intent the host
	// must launch to show the payment sheet.
	StartPurchase(ctx context.Context, product Product, developerPayload string) (*Intent, error)

	// CompletePurchase interprets the host's result for a flow started with
	// StartPurchase.
	CompletePurchase(product Product, resultCode int, data *Intent) (*Purchase, error)

	// Consume marks an owned purchase as used. It may block on the network.
	Consume(ctx context.Context, purchase *Purchase) error

	// Inventory returns what the user currently owns.
	Inventory(ctx context.Context, query InventoryQuery) (*Inventory, error)

	// ProductDetails looks a single product up in the vendor's catalog.
	ProductDetails(ctx context.Context, sku string, subscription bool) (Product, error)

	// ParsePurchase reads a purchase this vendor produced from its text form.
	ParsePurchase(text string) (*Purchase, error)

	// Close releases the vendor session.
	Close() error
}
