package memory

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

const VendorID iap.VendorID = "cashier.memory"

// Intent action and extras used by the simulated payment sheet.
const (
	ActionPurchase = "cashier.memory.PURCHASE"

	ExtraSKU       = "sku"
	ExtraPayload   = "developer_payload"
	ExtraReceipt   = "receipt"
	ExtraErrorCode = "error_code"
)

// Vendor is an in-memory billing backend. It keeps ownership in an iap.Store,
// signs receipts with its own ed25519 key and lets tests drive the payment
// sheet through Approve, Cancel and Fail.
type Vendor struct {
	log   *zap.Logger
	store iap.Store

	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
	now        func() time.Time

	mu          sync.Mutex
	catalog     map[string]iap.Product
	unavailable bool
	closed      bool
	injected    map[iap.Operation]iap.ErrorCode
}

type Option func(*Vendor)

// WithCatalog makes products available to ProductDetails and inventory
// detail queries.
func WithCatalog(products ...iap.Product) Option {
	return func(v *Vendor) {
		for _, p := range products {
			v.catalog[p.SKU] = p
		}
	}
}

// WithKeyPair sets the receipt signing key.
func WithKeyPair(pub ed25519.PublicKey, priv ed25519.PrivateKey) Option {
	return func(v *Vendor) {
		v.publicKey = pub
		v.privateKey = priv
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Vendor) {
		v.now = now
	}
}

func NewVendor(log *zap.Logger, store iap.Store, opts ...Option) (*Vendor, error) {
	v := &Vendor{
		log:      log.With(zap.String("vendor", string(VendorID))),
		store:    store,
		now:      time.Now,
		catalog:  map[string]iap.Product{},
		injected: map[iap.Operation]iap.ErrorCode{},
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.privateKey == nil {
		pub, priv, err := GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		v.publicKey, v.privateKey = pub, priv
	}

	return v, nil
}

func (v *Vendor) ID() iap.VendorID {
	return VendorID
}

// SetAvailable toggles whether the vendor is serviceable.
func (v *Vendor) SetAvailable(available bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.unavailable = !available
}

// FailNext makes the next request of code's operation fail with code.
func (v *Vendor) FailNext(code iap.ErrorCode) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.injected[code.Operation()] = code
}

// check returns the error a request of op must fail with, if any.
func (v *Vendor) check(op iap.Operation) *iap.VendorError {
	v.mu.Lock()
	defer v.mu.Unlock()

	if code, ok := v.injected[op]; ok {
		delete(v.injected, op)
		return iap.NewVendorError(code, int(code), "injected")
	}
	if v.closed {
		return iap.Errorf(iap.Unavailable(op), "vendor closed")
	}
	if v.unavailable {
		return iap.Errorf(iap.Unavailable(op), "vendor unavailable")
	}
	return nil
}

func (v *Vendor) StartPurchase(ctx context.Context, product iap.Product, developerPayload string) (*iap.Intent, error) {
	if err := v.check(iap.OperationPurchase); err != nil {
		return nil, err
	}

	owned, err := v.store.GetPurchases(ctx, VendorID)
	if err != nil {
		return nil, iap.Errorf(iap.PurchaseFailure, "listing purchases: %v", err)
	}
	for _, p := range owned {
		if p.SKU() == product.SKU {
			return nil, iap.Errorf(iap.PurchaseAlreadyOwned, "%s is already owned", product.SKU)
		}
	}

	v.log.Debug("Starting purchase", zap.String("sku", product.SKU))
	return iap.NewIntent(ActionPurchase).
		Put(ExtraSKU, product.SKU).
		Put(ExtraPayload, developerPayload), nil
}

type receiptMessage struct {
	OrderID          string `json:"order_id"`
	SKU              string `json:"sku"`
	Token            string `json:"token"`
	DeveloperPayload string `json:"developer_payload,omitempty"`
	PurchaseTime     int64  `json:"purchase_time"`
}

// Approve simulates the user confirming the payment sheet for intent.
func (v *Vendor) Approve(intent *iap.Intent) (int, *iap.Intent) {
	sku, _ := intent.Extra(ExtraSKU)
	payload, _ := intent.Extra(ExtraPayload)

	message, _ := json.Marshal(receiptMessage{
		OrderID:          "MEM." + uuid.NewString(),
		SKU:              sku,
		Token:            uuid.NewString(),
		DeveloperPayload: payload,
		PurchaseTime:     v.now().UnixMilli(),
	})

	data := iap.NewIntent(ActionPurchase).Put(ExtraReceipt, GenerateValidReceipt(v.privateKey, string(message)))
	return iap.ResultOK, data
}

// Cancel simulates the user dismissing the payment sheet.
func (v *Vendor) Cancel(*iap.Intent) (int, *iap.Intent) {
	return iap.ResultCanceled, nil
}

// Fail simulates the sheet reporting an error with the given code.
func (v *Vendor) Fail(_ *iap.Intent, code iap.ErrorCode) (int, *iap.Intent) {
	return iap.ResultOK, iap.NewIntent(ActionPurchase).PutInt(ExtraErrorCode, int(code))
}

func (v *Vendor) CompletePurchase(product iap.Product, resultCode int, data *iap.Intent) (*iap.Purchase, error) {
	switch resultCode {
	case iap.ResultOK:
	case iap.ResultCanceled:
		return nil, iap.NewVendorError(iap.PurchaseCanceled, resultCode, "user canceled")
	default:
		return nil, iap.NewVendorError(iap.PurchaseFailure, resultCode, "unexpected result code")
	}

	if data == nil {
		return nil, iap.Errorf(iap.PurchaseFailure, "no result data")
	}

	if raw, ok := data.Extra(ExtraErrorCode); ok {
		n, err := strconv.Atoi(raw)
		code := iap.ErrorCode(n)
		if err != nil || code.Operation() != iap.OperationPurchase {
			code = iap.PurchaseFailure
		}
		return nil, iap.NewVendorError(code, n, "payment sheet reported an error")
	}

	receipt, ok := data.Extra(ExtraReceipt)
	if !ok {
		return nil, iap.Errorf(iap.PurchaseSuccessResultMalformed, "missing receipt")
	}

	purchase, err := v.purchaseFromReceipt(product, receipt)
	if err != nil {
		return nil, iap.Errorf(iap.PurchaseSuccessResultMalformed, "%v", err)
	}
	err = v.store.CreatePurchase(context.Background(), purchase)
	if errors.Is(err, iap.ErrExists) {
		return nil, iap.Errorf(iap.PurchaseAlreadyOwned, "receipt already recorded")
	} else if err != nil {
		return nil, iap.Errorf(iap.PurchaseFailure, "recording purchase: %v", err)
	}

	v.log.Debug("Purchase completed", zap.String("sku", product.SKU), zap.String("order_id", purchase.OrderID))
	return purchase, nil
}

func (v *Vendor) purchaseFromReceipt(product iap.Product, receipt string) (*iap.Purchase, error) {
	signature, message, err := parseReceipt(receipt)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(v.publicKey, message, signature) {
		return nil, errors.New("receipt signature does not verify")
	}

	var msg receiptMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, err
	}
	if msg.SKU != product.SKU {
		return nil, fmt.Errorf("receipt is for %s, not %s", msg.SKU, product.SKU)
	}

	return &iap.Purchase{
		Vendor:           VendorID,
		Product:          product,
		OrderID:          msg.OrderID,
		Token:            msg.Token,
		Receipt:          []byte(receipt),
		Signature:        base64.StdEncoding.EncodeToString(signature),
		DeveloperPayload: msg.DeveloperPayload,
		PurchaseTime:     msg.PurchaseTime,
		State:            iap.StatePurchased,
	}, nil
}

func (v *Vendor) Consume(ctx context.Context, purchase *iap.Purchase) error {
	if err := v.check(iap.OperationConsume); err != nil {
		return err
	}
	if purchase == nil || purchase.Vendor != VendorID {
		return iap.Errorf(iap.ConsumeFailure, "purchase was not made with %s", VendorID)
	}

	err := v.store.DeletePurchase(ctx, iap.ReceiptID(purchase.Receipt))
	if errors.Is(err, iap.ErrNotFound) {
		return iap.Errorf(iap.ConsumeNotOwned, "%s is not owned", purchase.SKU())
	} else if err != nil {
		return iap.Errorf(iap.ConsumeFailure, "%v", err)
	}

	v.log.Debug("Purchase consumed", zap.String("sku", purchase.SKU()), zap.String("order_id", purchase.OrderID))
	return nil
}

func (v *Vendor) Inventory(ctx context.Context, query iap.InventoryQuery) (*iap.Inventory, error) {
	if err := v.check(iap.OperationInventory); err != nil {
		return nil, err
	}

	purchases, err := v.store.GetPurchases(ctx, VendorID)
	if err != nil {
		return nil, iap.Errorf(iap.InventoryQueryFailure, "%v", err)
	}

	inventory := &iap.Inventory{Purchases: purchases}
	if !query.WantsDetails() {
		return inventory, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, sku := range append(append([]string{}, query.ItemSKUs...), query.SubscriptionSKUs...) {
		if p, ok := v.catalog[sku]; ok {
			inventory.Products = append(inventory.Products, p)
		}
	}
	return inventory, nil
}

func (v *Vendor) ProductDetails(_ context.Context, sku string, subscription bool) (iap.Product, error) {
	if err := v.check(iap.OperationProductDetails); err != nil {
		return iap.Product{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.catalog[sku]
	if !ok || p.Subscription != subscription {
		return iap.Product{}, iap.Errorf(iap.ProductDetailsNotFound, "%s not in catalog", sku)
	}
	return p, nil
}

func (v *Vendor) ParsePurchase(text string) (*iap.Purchase, error) {
	purchase, err := iap.ParsePurchase(text)
	if err != nil {
		return nil, err
	}
	if purchase.Vendor != VendorID {
		return nil, iap.ErrMalformedPurchase
	}
	if !VerifyReceipt(v.publicKey, string(purchase.Receipt)) {
		return nil, iap.ErrMalformedPurchase
	}
	return purchase, nil
}

func (v *Vendor) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	return nil
}
