package googleplay

import (
	"fmt"

	"github.com/code-payments/cashier/iap"
)

// VendorID is the package name of the Play Store app.
const VendorID iap.VendorID = "com.android.vending"

// APIVersion is the In-app Billing API version the adapter speaks.
const APIVersion = 3

// Extras of the purchase activity result.
const (
	ExtraResponseCode  = "RESPONSE_CODE"
	ExtraPurchaseData  = "INAPP_PURCHASE_DATA"
	ExtraDataSignature = "INAPP_DATA_SIGNATURE"
)

// maxSkusPerRequest is the most SKUs GetSkuDetails accepts in one call.
const maxSkusPerRequest = 20

// ResponseCode is a native billing service response.
type ResponseCode int

const (
	OK                 ResponseCode = 0
	UserCanceled       ResponseCode = 1
	ServiceUnavailable ResponseCode = 2
	BillingUnavailable ResponseCode = 3
	ItemUnavailable    ResponseCode = 4
	DeveloperError     ResponseCode = 5
	Error              ResponseCode = 6
	ItemAlreadyOwned   ResponseCode = 7
	ItemNotOwned       ResponseCode = 8
)

func (c ResponseCode) String() string {
	switch c {
	case OK:
		return "BILLING_RESPONSE_RESULT_OK"
	case UserCanceled:
		return "BILLING_RESPONSE_RESULT_USER_CANCELED"
	case ServiceUnavailable:
		return "BILLING_RESPONSE_RESULT_SERVICE_UNAVAILABLE"
	case BillingUnavailable:
		return "BILLING_RESPONSE_RESULT_BILLING_UNAVAILABLE"
	case ItemUnavailable:
		return "BILLING_RESPONSE_RESULT_ITEM_UNAVAILABLE"
	case DeveloperError:
		return "BILLING_RESPONSE_RESULT_DEVELOPER_ERROR"
	case Error:
		return "BILLING_RESPONSE_RESULT_ERROR"
	case ItemAlreadyOwned:
		return "BILLING_RESPONSE_RESULT_ITEM_ALREADY_OWNED"
	case ItemNotOwned:
		return "BILLING_RESPONSE_RESULT_ITEM_NOT_OWNED"
	default:
		return fmt.Sprintf("BILLING_RESPONSE_RESULT(%d)", int(c))
	}
}
