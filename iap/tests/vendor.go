package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/cashier/iap"
)

// Sheet drives a vendor's payment sheet the way a user would.
type Sheet interface {
	Approve(intent *iap.Intent) (int, *iap.Intent)
	Cancel(intent *iap.Intent) (int, *iap.Intent)
}

// RunVendorTests checks the behavior every iap.Vendor must share. The product
// must be purchasable from v.
func RunVendorTests(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product, teardown func()) {
	for _, tf := range []func(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product){
		testPurchaseConsumeCycle,
		testPurchaseCanceled,
		testPurchaseAlreadyOwned,
		testPurchaseMalformedResult,
		testPurchaseTextRoundTrip,
		testParseRejectsForeignPurchase,
	} {
		tf(t, v, sheet, product)
		teardown()
	}
}

func purchase(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) *iap.Purchase {
	intent, err := v.StartPurchase(context.Background(), product, "payload")
	require.NoError(t, err)
	require.NotNil(t, intent)

	resultCode, data := sheet.Approve(intent)
	p, err := v.CompletePurchase(product, resultCode, data)
	require.NoError(t, err)
	return p
}

func requireCode(t *testing.T, err error, code iap.ErrorCode) {
	t.Helper()

	require.Error(t, err)
	ve := iap.AsVendorError(code.Operation(), err)
	require.Equal(t, code, ve.Code, err.Error())
}

func testPurchaseConsumeCycle(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) {
	ctx := context.Background()

	p := purchase(t, v, sheet, product)
	require.Equal(t, product.SKU, p.SKU())
	require.Equal(t, v.ID(), p.Vendor)
	require.Equal(t, "payload", p.DeveloperPayload)
	require.NotEmpty(t, p.Token)

	inventory, err := v.Inventory(ctx, iap.InventoryQuery{})
	require.NoError(t, err)
	require.Len(t, inventory.Purchases, 1)
	require.True(t, p.Equal(inventory.Purchases[0]))

	require.NoError(t, v.Consume(ctx, p))

	inventory, err = v.Inventory(ctx, iap.InventoryQuery{})
	require.NoError(t, err)
	require.Empty(t, inventory.Purchases)

	requireCode(t, v.Consume(ctx, p), iap.ConsumeNotOwned)
}

func testPurchaseCanceled(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) {
	ctx := context.Background()

	intent, err := v.StartPurchase(ctx, product, "")
	require.NoError(t, err)

	resultCode, data := sheet.Cancel(intent)
	p, err := v.CompletePurchase(product, resultCode, data)
	require.Nil(t, p)
	requireCode(t, err, iap.PurchaseCanceled)

	inventory, err := v.Inventory(ctx, iap.InventoryQuery{})
	require.NoError(t, err)
	require.Empty(t, inventory.Purchases)
}

func testPurchaseAlreadyOwned(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) {
	purchase(t, v, sheet, product)

	_, err := v.StartPurchase(context.Background(), product, "")
	requireCode(t, err, iap.PurchaseAlreadyOwned)
}

func testPurchaseMalformedResult(t *testing.T, v iap.Vendor, _ Sheet, product iap.Product) {
	_, err := v.CompletePurchase(product, iap.ResultOK, iap.NewIntent("unrelated"))
	requireCode(t, err, iap.PurchaseSuccessResultMalformed)

	_, err = v.CompletePurchase(product, 42, nil)
	requireCode(t, err, iap.PurchaseFailure)
}

func testPurchaseTextRoundTrip(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) {
	p := purchase(t, v, sheet, product)

	text, err := p.JSON()
	require.NoError(t, err)

	parsed, err := v.ParsePurchase(text)
	require.NoError(t, err)
	require.True(t, p.Equal(parsed))

	generic, err := iap.ParsePurchase(text)
	require.NoError(t, err)
	require.True(t, p.Equal(generic))
}

func testParseRejectsForeignPurchase(t *testing.T, v iap.Vendor, sheet Sheet, product iap.Product) {
	p := purchase(t, v, sheet, product).Clone()
	p.Vendor = "someone.else"

	text, err := p.JSON()
	require.NoError(t, err)

	_, err = v.ParsePurchase(text)
	require.ErrorIs(t, err, iap.ErrMalformedPurchase)
}
