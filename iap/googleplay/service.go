package googleplay

import (
	"context"

	"github.com/code-payments/cashier/iap"
)

// BillingService is the boundary to the Play Store's billing service. Errors
// are transport failures (service not bound, process died); everything the
// store itself reports comes back as a ResponseCode.
type BillingService interface {
	IsBillingSupported(ctx context.Context, apiVersion int, packageName string, itemType iap.ItemType) (ResponseCode, error)

	// GetSkuDetails returns one SkuDetails JSON document per known SKU.
	GetSkuDetails(ctx context.Context, apiVersion int, packageName string, itemType iap.ItemType, skus []string) (ResponseCode, []string, error)

	// GetBuyIntent returns the intent that shows the payment sheet.
	GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, itemType iap.ItemType, developerPayload string) (ResponseCode, *iap.Intent, error)

	// GetPurchases returns one page of owned purchases. An empty continuation
	// token asks for the first page.
	GetPurchases(ctx context.Context, apiVersion int, packageName string, itemType iap.ItemType, continuationToken string) (ResponseCode, *PurchasesPage, error)

	ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (ResponseCode, error)
}

// PurchasesPage is one page of GetPurchases. PurchaseData and Signatures are
// parallel.
type PurchasesPage struct {
	PurchaseData      []string
	Signatures        []string
	ContinuationToken string
}
