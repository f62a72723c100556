package googleplay

import (
	"github.com/code-payments/cashier/iap"
)

// Each native code maps to exactly one code per operation. Codes the adapter
// does not know map to the operation's generic failure.

func purchaseCode(c ResponseCode) iap.ErrorCode {
	switch c {
	case UserCanceled:
		return iap.PurchaseCanceled
	case ServiceUnavailable, BillingUnavailable, ItemUnavailable:
		return iap.PurchaseUnavailable
	case ItemAlreadyOwned:
		return iap.PurchaseAlreadyOwned
	case ItemNotOwned:
		return iap.PurchaseNotOwned
	default:
		return iap.PurchaseFailure
	}
}

func consumeCode(c ResponseCode) iap.ErrorCode {
	switch c {
	case UserCanceled:
		return iap.ConsumeCanceled
	case ServiceUnavailable, BillingUnavailable, ItemUnavailable:
		return iap.ConsumeUnavailable
	case ItemNotOwned:
		return iap.ConsumeNotOwned
	default:
		return iap.ConsumeFailure
	}
}

func inventoryCode(c ResponseCode) iap.ErrorCode {
	switch c {
	case ServiceUnavailable, BillingUnavailable:
		return iap.InventoryQueryUnavailable
	default:
		return iap.InventoryQueryFailure
	}
}

func productDetailsCode(c ResponseCode) iap.ErrorCode {
	switch c {
	case ServiceUnavailable, BillingUnavailable:
		return iap.ProductDetailsUnavailable
	case ItemUnavailable:
		return iap.ProductDetailsNotFound
	default:
		return iap.ProductDetailsQueryFailure
	}
}

// MapResponseCode translates a native response for an operation.
func MapResponseCode(op iap.Operation, c ResponseCode) iap.ErrorCode {
	switch op {
	case iap.OperationConsume:
		return consumeCode(c)
	case iap.OperationInventory:
		return inventoryCode(c)
	case iap.OperationProductDetails:
		return productDetailsCode(c)
	default:
		return purchaseCode(c)
	}
}

func responseError(op iap.Operation, c ResponseCode) *iap.VendorError {
	return iap.NewVendorError(MapResponseCode(op, c), int(c), c.String())
}

// transportError classifies a failure to reach the billing service.
func transportError(op iap.Operation, err error) *iap.VendorError {
	return iap.Errorf(iap.Unavailable(op), "billing service: %v", err)
}
