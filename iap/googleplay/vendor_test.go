package googleplay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
	"github.com/code-payments/cashier/iap/googleplay"
	"github.com/code-payments/cashier/iap/googleplay/memory"
	"github.com/code-payments/cashier/iap/tests"
)

const packageName = "com.example.game"

var (
	gas     = iap.MustItem("gas", "$0.99", "USD", "Gas", "A tank of gas", 990_000)
	premium = iap.MustItem("premium", "$4.99", "USD", "Premium", "Premium upgrade", 4_990_000)
)

func monthly(t *testing.T) iap.Product {
	p, err := iap.SubscriptionProduct("monthly", "$2.99", "USD", "Monthly", "Monthly pass", 2_990_000)
	require.NoError(t, err)
	return p
}

func newTestVendor(t *testing.T, opts ...memory.Option) (*googleplay.Vendor, *memory.Service) {
	opts = append([]memory.Option{memory.WithProducts(gas, premium, monthly(t))}, opts...)
	svc, err := memory.NewService(packageName, opts...)
	require.NoError(t, err)

	v := googleplay.New(zap.Must(zap.NewDevelopment()), svc, packageName, googleplay.WithPublicKey(svc.PublicKey()))
	return v, svc
}

func buy(t *testing.T, v *googleplay.Vendor, svc *memory.Service, product iap.Product) *iap.Purchase {
	intent, err := v.StartPurchase(context.Background(), product, "")
	require.NoError(t, err)

	resultCode, data := svc.Approve(intent)
	p, err := v.CompletePurchase(product, resultCode, data)
	require.NoError(t, err)
	return p
}

func TestGooglePlayVendor(t *testing.T) {
	v, svc := newTestVendor(t)
	tests.RunVendorTests(t, v, svc, gas, svc.Reset)
}

func TestGooglePlayVendor_Disconnected(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)
	svc.SetDisconnected(true)

	_, err := v.StartPurchase(ctx, gas, "")
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.PurchaseUnavailable})

	_, err = v.Inventory(ctx, iap.InventoryQuery{})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.InventoryQueryUnavailable})

	err = v.Consume(ctx, &iap.Purchase{Vendor: googleplay.VendorID, Product: gas, Token: "tok"})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.ConsumeUnavailable})

	_, err = v.ProductDetails(ctx, "gas", false)
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.ProductDetailsUnavailable})
}

func TestGooglePlayVendor_BillingUnsupported(t *testing.T) {
	v, svc := newTestVendor(t)
	svc.SetSupported(iap.ItemTypeInApp, false)

	_, err := v.StartPurchase(context.Background(), gas, "")
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.PurchaseUnavailable})
}

func TestGooglePlayVendor_SheetResponses(t *testing.T) {
	v, svc := newTestVendor(t)

	for _, tt := range []struct {
		code     googleplay.ResponseCode
		expected iap.ErrorCode
	}{
		{googleplay.ItemAlreadyOwned, iap.PurchaseAlreadyOwned},
		{googleplay.ItemUnavailable, iap.PurchaseUnavailable},
		{googleplay.DeveloperError, iap.PurchaseFailure},
		{googleplay.Error, iap.PurchaseFailure},
	} {
		t.Run(tt.code.String(), func(t *testing.T) {
			intent, err := v.StartPurchase(context.Background(), gas, "")
			require.NoError(t, err)

			resultCode, data := svc.Fail(intent, tt.code)
			_, err = v.CompletePurchase(gas, resultCode, data)
			require.ErrorIs(t, err, &iap.VendorError{Code: tt.expected})

			ve := iap.AsVendorError(iap.OperationPurchase, err)
			require.Equal(t, int(tt.code), ve.VendorCode)
		})
	}
}

func TestGooglePlayVendor_CompletePurchaseMalformed(t *testing.T) {
	v, svc := newTestVendor(t)

	valid := `{"orderId":"GPA.1","packageName":"com.example.game","productId":"gas","purchaseToken":"tok"}`
	validSig, err := svc.Sign(valid)
	require.NoError(t, err)

	other := `{"orderId":"GPA.2","packageName":"com.example.game","productId":"premium","purchaseToken":"tok2"}`
	otherSig, err := svc.Sign(other)
	require.NoError(t, err)

	foreign := `{"orderId":"GPA.3","packageName":"com.other.app","productId":"gas","purchaseToken":"tok3"}`
	foreignSig, err := svc.Sign(foreign)
	require.NoError(t, err)

	noToken := `{"orderId":"GPA.4","productId":"gas"}`
	noTokenSig, err := svc.Sign(noToken)
	require.NoError(t, err)

	for _, tt := range []struct {
		name      string
		data, sig string
	}{
		{"missing data", "", validSig},
		{"missing signature", valid, ""},
		{"bad signature", valid, otherSig},
		{"not json", "{", validSig},
		{"other sku", other, otherSig},
		{"other package", foreign, foreignSig},
		{"no token", noToken, noTokenSig},
	} {
		t.Run(tt.name, func(t *testing.T) {
			data := iap.NewIntent(memory.ActionPurchase).
				PutInt(googleplay.ExtraResponseCode, int(googleplay.OK)).
				Put(googleplay.ExtraPurchaseData, tt.data).
				Put(googleplay.ExtraDataSignature, tt.sig)

			_, err := v.CompletePurchase(gas, iap.ResultOK, data)
			require.ErrorIs(t, err, &iap.VendorError{Code: iap.PurchaseSuccessResultMalformed})
		})
	}

	p, err := v.CompletePurchase(gas, iap.ResultOK, iap.NewIntent(memory.ActionPurchase).
		Put(googleplay.ExtraPurchaseData, valid).
		Put(googleplay.ExtraDataSignature, validSig))
	require.NoError(t, err)
	require.Equal(t, "tok", p.Token)
	require.Equal(t, gas, p.Product)
}

func TestGooglePlayVendor_WithoutPublicKey(t *testing.T) {
	svc, err := memory.NewService(packageName, memory.WithProducts(gas))
	require.NoError(t, err)
	v := googleplay.New(zap.NewNop(), svc, packageName)

	data := iap.NewIntent(memory.ActionPurchase).
		Put(googleplay.ExtraPurchaseData, `{"productId":"gas","purchaseToken":"tok"}`)
	p, err := v.CompletePurchase(gas, iap.ResultOK, data)
	require.NoError(t, err)
	require.Empty(t, p.Signature)
}

func TestGooglePlayVendor_InventoryPaging(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t, memory.WithPageSize(1))

	buy(t, v, svc, gas)
	buy(t, v, svc, premium)
	buy(t, v, svc, monthly(t))

	inventory, err := v.Inventory(ctx, iap.InventoryQuery{})
	require.NoError(t, err)
	require.Len(t, inventory.Purchases, 3)
	require.Empty(t, inventory.Products)

	// Products of owned purchases are resolved even when no details are asked for.
	for _, product := range []iap.Product{gas, premium, monthly(t)} {
		p, ok := inventory.Find(product.SKU)
		require.True(t, ok)
		require.Equal(t, product, p.Product)
	}

	// Two item pages and one subscription page.
	require.Equal(t, 3, svc.Calls(memory.MethodGetPurchases))
}

func TestGooglePlayVendor_InventoryDetails(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)
	buy(t, v, svc, gas)

	inventory, err := v.Inventory(ctx, iap.ApplyInventoryOptions(
		iap.WithItemDetails("premium", "unknown"),
		iap.WithSubscriptionDetails("monthly"),
	))
	require.NoError(t, err)
	require.Len(t, inventory.Purchases, 1)
	require.Equal(t, []iap.Product{premium, monthly(t)}, inventory.Products)
}

func TestGooglePlayVendor_InventorySubscriptionsUnsupported(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)
	buy(t, v, svc, monthly(t))
	buy(t, v, svc, gas)

	svc.SetSupported(iap.ItemTypeSubscription, false)

	inventory, err := v.Inventory(ctx, iap.ApplyInventoryOptions(iap.WithSubscriptionDetails("monthly")))
	require.NoError(t, err)
	require.Len(t, inventory.Purchases, 1)
	require.Equal(t, "gas", inventory.Purchases[0].SKU())
	require.Empty(t, inventory.Products)
}

func TestGooglePlayVendor_InventoryMalformed(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)

	svc.AddPurchase(iap.ItemTypeInApp, `{"productId":"gas","purchaseToken":"tok"}`, "forged")
	_, err := v.Inventory(ctx, iap.InventoryQuery{})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.InventoryQueryMalformedResponse})
}

func TestGooglePlayVendor_InventoryResponseCodes(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)

	svc.RespondNext(memory.MethodGetPurchases, googleplay.ServiceUnavailable)
	_, err := v.Inventory(ctx, iap.InventoryQuery{})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.InventoryQueryUnavailable})

	svc.RespondNext(memory.MethodGetPurchases, googleplay.Error)
	_, err = v.Inventory(ctx, iap.InventoryQuery{})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.InventoryQueryFailure})

	buy(t, v, svc, gas)
	svc.RespondNext(memory.MethodGetSkuDetails, googleplay.Error)
	_, err = v.Inventory(ctx, iap.InventoryQuery{})
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.InventoryQueryFailure})
}

func TestGooglePlayVendor_Consume(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)
	p := buy(t, v, svc, gas)

	svc.RespondNext(memory.MethodConsumePurchase, googleplay.UserCanceled)
	require.ErrorIs(t, v.Consume(ctx, p), &iap.VendorError{Code: iap.ConsumeCanceled})

	require.NoError(t, v.Consume(ctx, p))
	require.ErrorIs(t, v.Consume(ctx, p), &iap.VendorError{Code: iap.ConsumeNotOwned})

	noToken := p.Clone()
	noToken.Token = ""
	require.ErrorIs(t, v.Consume(ctx, noToken), &iap.VendorError{Code: iap.ConsumeFailure})

	foreign := p.Clone()
	foreign.Vendor = "cashier.memory"
	require.ErrorIs(t, v.Consume(ctx, foreign), &iap.VendorError{Code: iap.ConsumeFailure})
}

func TestGooglePlayVendor_ProductDetails(t *testing.T) {
	ctx := context.Background()
	v, svc := newTestVendor(t)

	product, err := v.ProductDetails(ctx, "premium", false)
	require.NoError(t, err)
	require.Equal(t, premium, product)

	product, err = v.ProductDetails(ctx, "monthly", true)
	require.NoError(t, err)
	require.True(t, product.Subscription)

	_, err = v.ProductDetails(ctx, "monthly", false)
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.ProductDetailsNotFound})

	_, err = v.ProductDetails(ctx, "unknown", false)
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.ProductDetailsNotFound})

	svc.RespondNext(memory.MethodGetSkuDetails, googleplay.BillingUnavailable)
	_, err = v.ProductDetails(ctx, "premium", false)
	require.ErrorIs(t, err, &iap.VendorError{Code: iap.ProductDetailsUnavailable})
}

func TestGooglePlayVendor_ParsePurchaseTampered(t *testing.T) {
	v, svc := newTestVendor(t)
	p := buy(t, v, svc, gas)

	tampered := p.Clone()
	var data googleplay.PurchaseData
	require.NoError(t, json.Unmarshal(tampered.Receipt, &data))
	data.PurchaseToken = "stolen"
	tampered.Receipt, _ = json.Marshal(data)

	text, err := tampered.JSON()
	require.NoError(t, err)
	_, err = v.ParsePurchase(text)
	require.ErrorIs(t, err, iap.ErrMalformedPurchase)

	relabeled := p.Clone()
	relabeled.Token = "other"
	text, err = relabeled.JSON()
	require.NoError(t, err)
	_, err = v.ParsePurchase(text)
	require.ErrorIs(t, err, iap.ErrMalformedPurchase)
}

func TestServiceCatalog_Chunks(t *testing.T) {
	var products []iap.Product
	var skus []string
	for i := 0; i < 45; i++ {
		p := iap.MustItem(fmt.Sprintf("sku.%02d", i), "$1.00", "USD", "Item", "", 1_000_000)
		products = append(products, p)
		skus = append(skus, p.SKU)
	}

	svc, err := memory.NewService(packageName, memory.WithProducts(products...))
	require.NoError(t, err)

	catalog := googleplay.NewServiceCatalog(zap.NewNop(), svc, packageName)
	resolved, err := catalog.SkuDetails(context.Background(), iap.ItemTypeInApp, skus)
	require.NoError(t, err)
	require.Equal(t, products, resolved)
	require.Equal(t, 3, svc.Calls(memory.MethodGetSkuDetails))
}

func TestCachedCatalog(t *testing.T) {
	ctx := context.Background()
	svc, err := memory.NewService(packageName, memory.WithProducts(gas, premium))
	require.NoError(t, err)

	cached := googleplay.NewCachedCatalog(googleplay.NewServiceCatalog(zap.NewNop(), svc, packageName), time.Minute)
	defer cached.Close()

	resolved, err := cached.SkuDetails(ctx, iap.ItemTypeInApp, []string{"gas"})
	require.NoError(t, err)
	require.Equal(t, []iap.Product{gas}, resolved)
	require.Equal(t, 1, svc.Calls(memory.MethodGetSkuDetails))

	resolved, err = cached.SkuDetails(ctx, iap.ItemTypeInApp, []string{"gas"})
	require.NoError(t, err)
	require.Equal(t, []iap.Product{gas}, resolved)
	require.Equal(t, 1, svc.Calls(memory.MethodGetSkuDetails))

	// Only the missing SKU is fetched.
	resolved, err = cached.SkuDetails(ctx, iap.ItemTypeInApp, []string{"gas", "premium"})
	require.NoError(t, err)
	require.ElementsMatch(t, []iap.Product{gas, premium}, resolved)
	require.Equal(t, 2, svc.Calls(memory.MethodGetSkuDetails))

	// Same SKU under another item type is a different entry.
	resolved, err = cached.SkuDetails(ctx, iap.ItemTypeSubscription, []string{"gas"})
	require.NoError(t, err)
	require.Empty(t, resolved)
	require.Equal(t, 3, svc.Calls(memory.MethodGetSkuDetails))

	cached.Invalidate(iap.ItemTypeInApp, "gas")
	_, err = cached.SkuDetails(ctx, iap.ItemTypeInApp, []string{"gas"})
	require.NoError(t, err)
	require.Equal(t, 4, svc.Calls(memory.MethodGetSkuDetails))
}

func TestCachedCatalog_OutlivesVendor(t *testing.T) {
	ctx := context.Background()
	svc, err := memory.NewService(packageName, memory.WithProducts(gas))
	require.NoError(t, err)

	cached := googleplay.NewCachedCatalog(googleplay.NewServiceCatalog(zap.NewNop(), svc, packageName), time.Minute)
	defer cached.Close()

	first := googleplay.New(zap.NewNop(), svc, packageName, googleplay.WithCatalog(cached))
	product, err := first.ProductDetails(ctx, "gas", false)
	require.NoError(t, err)
	require.Equal(t, gas, product)
	require.NoError(t, first.Close())

	second := googleplay.New(zap.NewNop(), svc, packageName, googleplay.WithCatalog(cached))
	product, err = second.ProductDetails(ctx, "gas", false)
	require.NoError(t, err)
	require.Equal(t, gas, product)
	require.Equal(t, 1, svc.Calls(memory.MethodGetSkuDetails))
}
