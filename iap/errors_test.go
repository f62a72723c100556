package iap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeOperation(t *testing.T) {
	expected := map[Operation][]ErrorCode{
		OperationPurchase: {
			PurchaseUnavailable, PurchaseCanceled, PurchaseFailure,
			PurchaseAlreadyOwned, PurchaseNotOwned, PurchaseSuccessResultMalformed,
		},
		OperationConsume: {
			ConsumeUnavailable, ConsumeCanceled, ConsumeNotOwned, ConsumeFailure,
		},
		OperationInventory: {
			InventoryQueryUnavailable, InventoryQueryFailure, InventoryQueryMalformedResponse,
		},
		OperationProductDetails: {
			ProductDetailsUnavailable, ProductDetailsQueryFailure, ProductDetailsNotFound,
		},
	}

	seen := 0
	for op, codes := range expected {
		for _, code := range codes {
			assert.Equal(t, op, code.Operation(), code.String())
			seen++
		}
		assert.Equal(t, op, GenericFailure(op).Operation())
		assert.Equal(t, op, Unavailable(op).Operation())
	}
	require.Len(t, ErrorCodes(), seen)

	for _, code := range ErrorCodes() {
		assert.NotContains(t, code.String(), "ERROR_CODE(")
	}
}

func TestAsVendorError(t *testing.T) {
	canceled := NewVendorError(PurchaseCanceled, 1, "user canceled")

	// Same operation is kept.
	require.Same(t, canceled, AsVendorError(OperationPurchase, fmt.Errorf("wrapped: %w", canceled)))

	// A different operation's error is reclassified.
	ve := AsVendorError(OperationConsume, canceled)
	require.Equal(t, ConsumeFailure, ve.Code)

	// Plain errors become the generic failure.
	ve = AsVendorError(OperationInventory, errors.New("boom"))
	require.Equal(t, InventoryQueryFailure, ve.Code)
	require.Equal(t, NoVendorCode, ve.VendorCode)
	require.Equal(t, "INVENTORY_QUERY_FAILURE: boom", ve.Error())

	require.Nil(t, AsVendorError(OperationPurchase, nil))
}

func TestVendorErrorIs(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Errorf(ConsumeNotOwned, "token %s", "abc"))
	require.ErrorIs(t, err, &VendorError{Code: ConsumeNotOwned})
	require.NotErrorIs(t, err, &VendorError{Code: ConsumeFailure})
}

func TestInventoryLookups(t *testing.T) {
	p := &Purchase{Vendor: "test", Product: MustItem("a", "", "USD", "", "", 0)}
	inv := &Inventory{
		Purchases: []*Purchase{p},
		Products:  []Product{MustItem("b", "", "USD", "B", "", 0)},
	}

	found, ok := inv.Find("a")
	require.True(t, ok)
	require.Same(t, p, found)

	_, ok = inv.Find("b")
	require.False(t, ok)

	details, ok := inv.Product("b")
	require.True(t, ok)
	require.Equal(t, "B", details.Name)

	require.False(t, inv.Empty())
	require.True(t, (&Inventory{}).Empty())
	require.True(t, (*Inventory)(nil).Empty())
}

func TestIntentExtras(t *testing.T) {
	intent := NewIntent("buy").Put("a", "b").PutInt("code", 7)

	v, ok := intent.Extra("a")
	require.True(t, ok)
	require.Equal(t, "b", v)
	require.Equal(t, 7, intent.IntExtra("code", 0))
	require.Equal(t, 3, intent.IntExtra("a", 3))
	require.Equal(t, 3, intent.IntExtra("missing", 3))

	var nilIntent *Intent
	_, ok = nilIntent.Extra("a")
	require.False(t, ok)
}
