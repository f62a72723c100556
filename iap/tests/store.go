package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/cashier/iap"
)

func RunStoreTests(t *testing.T, s iap.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s iap.Store){
		testIapStore_HappyPath,
		testIapStore_OrderingAndVendors,
		testIapStore_ClonesOnRead,
	} {
		tf(t, s)
		teardown()
	}
}

func newPurchase(vendor iap.VendorID, orderID, sku string, at int64) *iap.Purchase {
	return &iap.Purchase{
		Vendor:       vendor,
		Product:      iap.MustItem(sku, "$0.99", "USD", "Item", "", 990_000),
		OrderID:      orderID,
		Token:        "token-" + orderID,
		Receipt:      []byte("receipt-" + orderID),
		PurchaseTime: at,
	}
}

func testIapStore_HappyPath(t *testing.T, store iap.Store) {
	ctx := context.Background()
	expected := newPurchase("vendor", "order-1", "sku", 1)
	id := iap.ReceiptID(expected.Receipt)

	_, err := store.GetPurchase(ctx, id)
	require.Equal(t, iap.ErrNotFound, err)

	require.NoError(t, store.CreatePurchase(ctx, expected))

	actual, err := store.GetPurchase(ctx, id)
	require.NoError(t, err)
	require.True(t, expected.Equal(actual))

	require.Equal(t, iap.ErrExists, store.CreatePurchase(ctx, expected))

	require.NoError(t, store.DeletePurchase(ctx, id))
	require.Equal(t, iap.ErrNotFound, store.DeletePurchase(ctx, id))

	_, err = store.GetPurchase(ctx, id)
	require.Equal(t, iap.ErrNotFound, err)
}

func testIapStore_OrderingAndVendors(t *testing.T, store iap.Store) {
	ctx := context.Background()

	third := newPurchase("a", "order-3", "sku3", 30)
	first := newPurchase("a", "order-1", "sku1", 10)
	second := newPurchase("a", "order-2", "sku2", 20)
	other := newPurchase("b", "order-4", "sku4", 5)

	for _, p := range []*iap.Purchase{third, first, other, second} {
		require.NoError(t, store.CreatePurchase(ctx, p))
	}

	purchases, err := store.GetPurchases(ctx, "a")
	require.NoError(t, err)
	require.Len(t, purchases, 3)
	require.Equal(t, "order-1", purchases[0].OrderID)
	require.Equal(t, "order-2", purchases[1].OrderID)
	require.Equal(t, "order-3", purchases[2].OrderID)

	purchases, err = store.GetPurchases(ctx, "c")
	require.NoError(t, err)
	require.Empty(t, purchases)
}

func testIapStore_ClonesOnRead(t *testing.T, store iap.Store) {
	ctx := context.Background()
	expected := newPurchase("vendor", "order-1", "sku", 1)
	require.NoError(t, store.CreatePurchase(ctx, expected))

	actual, err := store.GetPurchase(ctx, iap.ReceiptID(expected.Receipt))
	require.NoError(t, err)
	actual.Receipt[0] = 'X'
	actual.OrderID = "mutated"

	again, err := store.GetPurchase(ctx, iap.ReceiptID(expected.Receipt))
	require.NoError(t, err)
	require.True(t, expected.Equal(again))
}
