package googleplay

import (
	"context"
	"crypto/rsa"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

// Vendor talks to the Play Store through a BillingService.
type Vendor struct {
	log         *zap.Logger
	service     BillingService
	packageName string
	publicKey   *rsa.PublicKey
	catalog     Catalog
}

type Option func(*Vendor)

// WithPublicKey enables signature verification of purchase data. Without a
// key, purchases are accepted unverified.
func WithPublicKey(key *rsa.PublicKey) Option {
	return func(v *Vendor) {
		v.publicKey = key
	}
}

// WithCatalog overrides where product details come from. The default asks the
// billing service.
func WithCatalog(catalog Catalog) Option {
	return func(v *Vendor) {
		v.catalog = catalog
	}
}

func New(log *zap.Logger, service BillingService, packageName string, opts ...Option) *Vendor {
	v := &Vendor{
		log:         log.With(zap.String("vendor", string(VendorID))),
		service:     service,
		packageName: packageName,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.catalog == nil {
		v.catalog = NewServiceCatalog(v.log, service, packageName)
	}
	if v.publicKey == nil {
		v.log.Warn("No public key configured, purchase signatures will not be verified")
	}
	return v
}

func (v *Vendor) ID() iap.VendorID {
	return VendorID
}

func (v *Vendor) StartPurchase(ctx context.Context, product iap.Product, developerPayload string) (*iap.Intent, error) {
	code, err := v.service.IsBillingSupported(ctx, APIVersion, v.packageName, product.ItemType())
	if err != nil {
		return nil, transportError(iap.OperationPurchase, err)
	}
	if code != OK {
		return nil, responseError(iap.OperationPurchase, code)
	}

	code, intent, err := v.service.GetBuyIntent(ctx, APIVersion, v.packageName, product.SKU, product.ItemType(), developerPayload)
	if err != nil {
		return nil, transportError(iap.OperationPurchase, err)
	}
	if code != OK {
		return nil, responseError(iap.OperationPurchase, code)
	}
	if intent == nil {
		return nil, iap.Errorf(iap.PurchaseFailure, "no buy intent for %s", product.SKU)
	}

	v.log.Debug("Starting purchase", zap.String("sku", product.SKU))
	return intent, nil
}

func (v *Vendor) CompletePurchase(product iap.Product, resultCode int, data *iap.Intent) (*iap.Purchase, error) {
	if resultCode == iap.ResultCanceled {
		return nil, iap.NewVendorError(iap.PurchaseCanceled, resultCode, "user canceled")
	}
	if data == nil {
		return nil, iap.NewVendorError(iap.PurchaseFailure, resultCode, "no result data")
	}

	// Older store versions omit the code on success.
	code := ResponseCode(data.IntExtra(ExtraResponseCode, int(OK)))
	if code != OK {
		return nil, responseError(iap.OperationPurchase, code)
	}
	if resultCode != iap.ResultOK {
		return nil, iap.NewVendorError(iap.PurchaseFailure, resultCode, "unexpected result code")
	}

	raw, _ := data.Extra(ExtraPurchaseData)
	signature, _ := data.Extra(ExtraDataSignature)
	if raw == "" {
		return nil, iap.Errorf(iap.PurchaseSuccessResultMalformed, "missing purchase data")
	}

	purchase, err := v.verify(product, raw, signature)
	if err != nil {
		return nil, iap.Errorf(iap.PurchaseSuccessResultMalformed, "%v", err)
	}
	if purchase.SKU() != product.SKU {
		return nil, iap.Errorf(iap.PurchaseSuccessResultMalformed, "purchase data is for %s, not %s", purchase.SKU(), product.SKU)
	}

	v.log.Debug("Purchase completed", zap.String("sku", product.SKU), zap.String("order_id", purchase.OrderID))
	return purchase, nil
}

// verify checks the signature of raw and builds the purchase it describes.
// The product's SKU is replaced by the one in the data.
func (v *Vendor) verify(product iap.Product, raw, signature string) (*iap.Purchase, error) {
	if v.publicKey != nil {
		if err := VerifyPurchase(v.publicKey, raw, signature); err != nil {
			return nil, err
		}
	}

	data, err := parsePurchaseData(raw)
	if err != nil {
		return nil, err
	}
	if data.PackageName != "" && data.PackageName != v.packageName {
		return nil, fmt.Errorf("purchase data is for package %s", data.PackageName)
	}

	if product.SKU != data.ProductID {
		product = iap.Product{SKU: data.ProductID, Currency: product.Currency, Subscription: product.Subscription}
	}
	return data.toPurchase(product, raw, signature), nil
}

func (v *Vendor) Consume(ctx context.Context, purchase *iap.Purchase) error {
	if purchase == nil || purchase.Vendor != VendorID {
		return iap.Errorf(iap.ConsumeFailure, "purchase was not made with %s", VendorID)
	}
	if purchase.Token == "" {
		return iap.Errorf(iap.ConsumeFailure, "purchase has no token")
	}

	code, err := v.service.ConsumePurchase(ctx, APIVersion, v.packageName, purchase.Token)
	if err != nil {
		return transportError(iap.OperationConsume, err)
	}
	if code != OK {
		return responseError(iap.OperationConsume, code)
	}

	v.log.Debug("Purchase consumed", zap.String("sku", purchase.SKU()), zap.String("order_id", purchase.OrderID))
	return nil
}

func (v *Vendor) Inventory(ctx context.Context, query iap.InventoryQuery) (*iap.Inventory, error) {
	inventory := &iap.Inventory{}

	items, err := v.ownedPurchases(ctx, iap.ItemTypeInApp)
	if err != nil {
		return nil, err
	}
	inventory.Purchases = append(inventory.Purchases, items...)

	code, err := v.service.IsBillingSupported(ctx, APIVersion, v.packageName, iap.ItemTypeSubscription)
	if err != nil {
		return nil, transportError(iap.OperationInventory, err)
	}
	subscriptionsSupported := code == OK
	if subscriptionsSupported {
		subs, err := v.ownedPurchases(ctx, iap.ItemTypeSubscription)
		if err != nil {
			return nil, err
		}
		inventory.Purchases = append(inventory.Purchases, subs...)
	}

	if err := v.resolveProducts(ctx, inventory, iap.ItemTypeInApp, query.ItemSKUs); err != nil {
		return nil, err
	}
	if subscriptionsSupported {
		if err := v.resolveProducts(ctx, inventory, iap.ItemTypeSubscription, query.SubscriptionSKUs); err != nil {
			return nil, err
		}
	}

	return inventory, nil
}

// ownedPurchases walks every page of owned purchases of itemType.
func (v *Vendor) ownedPurchases(ctx context.Context, itemType iap.ItemType) ([]*iap.Purchase, error) {
	var purchases []*iap.Purchase
	var continuation string
	for {
		code, page, err := v.service.GetPurchases(ctx, APIVersion, v.packageName, itemType, continuation)
		if err != nil {
			return nil, transportError(iap.OperationInventory, err)
		}
		if code != OK {
			return nil, responseError(iap.OperationInventory, code)
		}
		if page == nil {
			return nil, iap.Errorf(iap.InventoryQueryMalformedResponse, "no purchases page")
		}
		if len(page.PurchaseData) != len(page.Signatures) {
			return nil, iap.Errorf(
				iap.InventoryQueryMalformedResponse,
				"%d purchases but %d signatures",
				len(page.PurchaseData),
				len(page.Signatures),
			)
		}

		for i, raw := range page.PurchaseData {
			placeholder := iap.Product{Currency: "XXX", Subscription: itemType == iap.ItemTypeSubscription}
			purchase, err := v.verify(placeholder, raw, page.Signatures[i])
			if err != nil {
				return nil, iap.Errorf(iap.InventoryQueryMalformedResponse, "purchase %d: %v", i, err)
			}
			purchases = append(purchases, purchase)
		}

		if page.ContinuationToken == "" {
			return purchases, nil
		}
		continuation = page.ContinuationToken
	}
}

// resolveProducts fills in product details for owned purchases of itemType and
// for the explicitly requested SKUs.
func (v *Vendor) resolveProducts(ctx context.Context, inventory *iap.Inventory, itemType iap.ItemType, requested []string) error {
	var skus []string
	for _, p := range inventory.Purchases {
		if p.Product.ItemType() == itemType && !slices.Contains(skus, p.SKU()) {
			skus = append(skus, p.SKU())
		}
	}
	for _, sku := range requested {
		if !slices.Contains(skus, sku) {
			skus = append(skus, sku)
		}
	}
	if len(skus) == 0 {
		return nil
	}

	products, err := v.catalog.SkuDetails(ctx, itemType, skus)
	if err != nil {
		return catalogError(iap.OperationInventory, err)
	}

	known := map[string]iap.Product{}
	for _, product := range products {
		known[product.SKU] = product
	}

	for _, p := range inventory.Purchases {
		if product, ok := known[p.SKU()]; ok && p.Product.ItemType() == itemType {
			p.Product = product
		}
	}
	for _, sku := range requested {
		if product, ok := known[sku]; ok {
			inventory.Products = append(inventory.Products, product)
		}
	}
	return nil
}

func (v *Vendor) ProductDetails(ctx context.Context, sku string, subscription bool) (iap.Product, error) {
	itemType := iap.ItemTypeInApp
	if subscription {
		itemType = iap.ItemTypeSubscription
	}

	products, err := v.catalog.SkuDetails(ctx, itemType, []string{sku})
	if err != nil {
		return iap.Product{}, catalogError(iap.OperationProductDetails, err)
	}
	for _, product := range products {
		if product.SKU == sku {
			return product, nil
		}
	}
	return iap.Product{}, iap.Errorf(iap.ProductDetailsNotFound, "%s not in catalog", sku)
}

// ParsePurchase reads the textual form of a purchase made with this vendor,
// re-verifying its signature.
func (v *Vendor) ParsePurchase(text string) (*iap.Purchase, error) {
	purchase, err := iap.ParsePurchase(text)
	if err != nil {
		return nil, err
	}
	if purchase.Vendor != VendorID {
		return nil, iap.ErrMalformedPurchase
	}

	verified, err := v.verify(purchase.Product, string(purchase.Receipt), purchase.Signature)
	if err != nil || verified.Token != purchase.Token || verified.SKU() != purchase.SKU() {
		return nil, iap.ErrMalformedPurchase
	}
	return purchase, nil
}

// Close ends the session. A catalog passed with WithCatalog is shared and
// stays open; its owner closes it.
func (v *Vendor) Close() error {
	v.log.Debug("Vendor closed")
	return nil
}
