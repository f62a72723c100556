package iap

import (
	"errors"
	"fmt"
)

var (
	ErrVendorMissing     = errors.New("iap: no vendor registered")
	ErrDisposed          = errors.New("iap: cashier is disposed")
	ErrBusy              = errors.New("iap: request already in flight")
	ErrNoLauncher        = errors.New("iap: no launcher configured")
	ErrNoListener        = errors.New("iap: listener is required")
	ErrInvalidProduct    = errors.New("iap: invalid product")
	ErrMalformedPurchase = errors.New("iap: malformed purchase")
)

// Operation is the class of request an error belongs to.
type Operation uint8

const (
	OperationPurchase Operation = iota
	OperationConsume
	OperationInventory
	OperationProductDetails
)

func (o Operation) String() string {
	switch o {
	case OperationPurchase:
		return "purchase"
	case OperationConsume:
		return "consume"
	case OperationInventory:
		return "inventory"
	case OperationProductDetails:
		return "product_details"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

// ErrorCode is the vendor-independent reason a request failed. Every code
// belongs to exactly one Operation.
type ErrorCode int

const (
	PurchaseUnavailable ErrorCode = iota
	PurchaseCanceled
	PurchaseFailure
	PurchaseAlreadyOwned
	PurchaseNotOwned
	PurchaseSuccessResultMalformed

	ConsumeUnavailable
	ConsumeCanceled
	ConsumeNotOwned
	ConsumeFailure

	InventoryQueryUnavailable
	InventoryQueryFailure
	InventoryQueryMalformedResponse

	ProductDetailsUnavailable
	ProductDetailsQueryFailure
	ProductDetailsNotFound
)

var errorCodeNames = map[ErrorCode]string{
	PurchaseUnavailable:             "PURCHASE_UNAVAILABLE",
	PurchaseCanceled:                "PURCHASE_CANCELED",
	PurchaseFailure:                 "PURCHASE_FAILURE",
	PurchaseAlreadyOwned:            "PURCHASE_ALREADY_OWNED",
	PurchaseNotOwned:                "PURCHASE_NOT_OWNED",
	PurchaseSuccessResultMalformed:  "PURCHASE_SUCCESS_RESULT_MALFORMED",
	ConsumeUnavailable:              "CONSUME_UNAVAILABLE",
	ConsumeCanceled:                 "CONSUME_CANCELED",
	ConsumeNotOwned:                 "CONSUME_NOT_OWNED",
	ConsumeFailure:                  "CONSUME_FAILURE",
	InventoryQueryUnavailable:       "INVENTORY_QUERY_UNAVAILABLE",
	InventoryQueryFailure:           "INVENTORY_QUERY_FAILURE",
	InventoryQueryMalformedResponse: "INVENTORY_QUERY_MALFORMED_RESPONSE",
	ProductDetailsUnavailable:       "PRODUCT_DETAILS_UNAVAILABLE",
	ProductDetailsQueryFailure:      "PRODUCT_DETAILS_QUERY_FAILURE",
	ProductDetailsNotFound:          "PRODUCT_DETAILS_NOT_FOUND",
}

// ErrorCodes lists every code.
func ErrorCodes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(errorCodeNames))
	for c := PurchaseUnavailable; c <= ProductDetailsNotFound; c++ {
		codes = append(codes, c)
	}
	return codes
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_CODE(%d)", int(c))
}

// Operation returns the request class the code belongs to.
func (c ErrorCode) Operation() Operation {
	switch {
	case c <= PurchaseSuccessResultMalformed:
		return OperationPurchase
	case c <= ConsumeFailure:
		return OperationConsume
	case c <= InventoryQueryMalformedResponse:
		return OperationInventory
	default:
		return OperationProductDetails
	}
}

// GenericFailure is the catch-all code of an operation class.
func GenericFailure(op Operation) ErrorCode {
	switch op {
	case OperationConsume:
		return ConsumeFailure
	case OperationInventory:
		return InventoryQueryFailure
	case OperationProductDetails:
		return ProductDetailsQueryFailure
	default:
		return PurchaseFailure
	}
}

// Unavailable is the "vendor not serviceable" code of an operation class.
func Unavailable(op Operation) ErrorCode {
	switch op {
	case OperationConsume:
		return ConsumeUnavailable
	case OperationInventory:
		return InventoryQueryUnavailable
	case OperationProductDetails:
		return ProductDetailsUnavailable
	default:
		return PurchaseUnavailable
	}
}

// NoVendorCode marks a VendorError that did not originate from a native code.
const NoVendorCode = -1

// VendorError is a classified failure delivered on a listener's failure
// channel. VendorCode is the adapter's native code and is only meant for logs.
type VendorError struct {
	Code       ErrorCode
	VendorCode int
	Message    string
}

func NewVendorError(code ErrorCode, vendorCode int, message string) *VendorError {
	return &VendorError{Code: code, VendorCode: vendorCode, Message: message}
}

// Errorf returns a VendorError without a native code.
func Errorf(code ErrorCode, format string, args ...any) *VendorError {
	return &VendorError{Code: code, VendorCode: NoVendorCode, Message: fmt.Sprintf(format, args...)}
}

func (e *VendorError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

// Is matches another VendorError by code, so errors.Is(err, &VendorError{Code: c})
// works as a code check.
func (e *VendorError) Is(target error) bool {
	t, ok := target.(*VendorError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// AsVendorError classifies err for an operation. Errors that carry a
// VendorError of the same operation are returned as-is; anything else becomes
// the generic failure of op.
func AsVendorError(op Operation, err error) *VendorError {
	if err == nil {
		return nil
	}

	var ve *VendorError
	if errors.As(err, &ve) && ve.Code.Operation() == op {
		return ve
	}
	return &VendorError{Code: GenericFailure(op), VendorCode: NoVendorCode, Message: err.Error()}
}
