package cashier

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/iap"
)

// Request codes are handed to the host, which only keeps the low 16 bits.
const (
	firstRequestCode = 0xCA5
	maxRequestCode   = 0xFFFF
)

type pendingPurchase struct {
	requestCode int
	product     iap.Product
	listener    iap.PurchaseListener
}

// Cashier is the billing client. It holds one vendor session, at most one
// in-flight request of each kind, and must be disposed.
type Cashier struct {
	log        *zap.Logger
	vendor     iap.Vendor
	executor   iap.Executor
	dispatcher iap.Dispatcher
	launcher   iap.Launcher
	payload    string
	teardown   []func() error

	// ctx is canceled on Dispose, which cancels running vendor calls.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	disposed    bool
	requestCode int
	pending     *pendingPurchase
	inFlight    map[iap.Operation]bool
}

func newCashier(log *zap.Logger, vendor iap.Vendor, launcher iap.Launcher, payload string) *Cashier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cashier{
		log:         log,
		vendor:      vendor,
		launcher:    launcher,
		payload:     payload,
		ctx:         ctx,
		cancel:      cancel,
		requestCode: firstRequestCode - 1,
		inFlight:    map[iap.Operation]bool{},
	}
}

// Vendor returns the ID of the vendor the cashier is bound to.
func (c *Cashier) Vendor() iap.VendorID {
	return c.vendor.ID()
}

func (c *Cashier) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disposed
}

// Purchase starts a purchase flow for product. Errors returned here are
// precondition failures; everything else reaches listener on the dispatcher.
//
// The vendor's payment sheet is launched through the Launcher, and its result
// must be routed back with OnActivityResult.
func (c *Cashier) Purchase(product iap.Product, listener iap.PurchaseListener) error {
	if listener == nil {
		return iap.ErrNoListener
	}
	if err := product.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return iap.ErrDisposed
	}
	if c.launcher == nil {
		c.mu.Unlock()
		return iap.ErrNoLauncher
	}
	if c.pending != nil {
		c.mu.Unlock()
		return errors.Wrapf(iap.ErrBusy, "purchase of %s in flight", c.pending.product.SKU)
	}

	pending := &pendingPurchase{
		requestCode: c.nextRequestCode(),
		product:     product,
		listener:    listener,
	}
	c.pending = pending
	c.mu.Unlock()

	log := c.log.With(zap.String("sku", product.SKU), zap.Int("request_code", pending.requestCode))
	log.Debug("Starting purchase")

	err := c.executor.Submit(func(ctx context.Context) {
		ctx, cancel := c.taskContext(ctx)
		defer cancel()

		intent, err := c.vendor.StartPurchase(ctx, product, c.payload)
		if err != nil {
			log.Debug("Failed to start purchase", zap.Error(err))
			c.failPurchase(pending, iap.AsVendorError(iap.OperationPurchase, err))
			return
		}

		c.dispatcher.Post(func() {
			if !c.isPending(pending) {
				return
			}
			if err := c.launcher.Launch(intent, pending.requestCode); err != nil {
				log.Warn("Failed to launch payment sheet", zap.Error(err))
				c.failPurchase(pending, iap.Errorf(iap.PurchaseFailure, "launch: %v", err))
			}
		})
	})
	if err != nil {
		c.mu.Lock()
		if c.pending == pending {
			c.pending = nil
		}
		c.mu.Unlock()
		return errors.Wrap(err, "failed to schedule purchase")
	}
	return nil
}

// OnActivityResult routes a host activity result into the cashier. It reports
// whether the result belonged to the in-flight purchase; results that did not
// are left for the caller and change nothing.
func (c *Cashier) OnActivityResult(requestCode, resultCode int, data *iap.Intent) bool {
	c.mu.Lock()
	pending := c.pending
	if c.disposed || pending == nil || pending.requestCode != requestCode {
		c.mu.Unlock()
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	log := c.log.With(
		zap.String("sku", pending.product.SKU),
		zap.Int("request_code", requestCode),
		zap.Int("result_code", resultCode),
	)

	purchase, err := c.vendor.CompletePurchase(pending.product, resultCode, data)
	if err != nil {
		ve := iap.AsVendorError(iap.OperationPurchase, err)
		log.Debug("Purchase failed", zap.Stringer("code", ve.Code), zap.Int("vendor_code", ve.VendorCode))
		c.post(func() {
			pending.listener.PurchaseFailed(pending.product, ve)
		})
		return true
	}

	log.Debug("Purchase succeeded", zap.String("order_id", purchase.OrderID))
	c.post(func() {
		pending.listener.PurchaseSucceeded(purchase)
	})
	return true
}

// Consume marks purchase as used. The listener is invoked on a worker
// goroutine, not on the dispatcher.
func (c *Cashier) Consume(purchase *iap.Purchase, listener iap.ConsumeListener) error {
	if listener == nil {
		return iap.ErrNoListener
	}
	if purchase == nil {
		return errors.Wrap(iap.ErrMalformedPurchase, "nil purchase")
	}

	return c.submit(iap.OperationConsume, func(ctx context.Context) func() {
		err := c.vendor.Consume(ctx, purchase)
		if err != nil {
			ve := iap.AsVendorError(iap.OperationConsume, err)
			return func() { listener.ConsumeFailed(purchase, ve) }
		}
		return func() { listener.ConsumeSucceeded(purchase) }
	}, c.deliverNow)
}

// GetInventory queries what the user owns. The listener is invoked on the
// dispatcher.
func (c *Cashier) GetInventory(listener iap.InventoryListener, opts ...iap.InventoryOption) error {
	if listener == nil {
		return iap.ErrNoListener
	}
	query := iap.ApplyInventoryOptions(opts...)

	return c.submit(iap.OperationInventory, func(ctx context.Context) func() {
		inventory, err := c.vendor.Inventory(ctx, query)
		if err != nil {
			ve := iap.AsVendorError(iap.OperationInventory, err)
			return func() { listener.InventoryFailed(ve) }
		}
		return func() { listener.InventoryLoaded(inventory) }
	}, c.post)
}

// GetProductDetails looks sku up in the vendor's catalog. The listener is
// invoked on the dispatcher.
func (c *Cashier) GetProductDetails(sku string, subscription bool, listener iap.ProductDetailsListener) error {
	if listener == nil {
		return iap.ErrNoListener
	}
	if sku == "" {
		return errors.Wrap(iap.ErrInvalidProduct, "sku is required")
	}

	return c.submit(iap.OperationProductDetails, func(ctx context.Context) func() {
		product, err := c.vendor.ProductDetails(ctx, sku, subscription)
		if err != nil {
			ve := iap.AsVendorError(iap.OperationProductDetails, err)
			return func() { listener.ProductDetailsFailed(sku, ve) }
		}
		return func() { listener.ProductDetailsLoaded(product) }
	}, c.post)
}

// Dispose releases the vendor session and severs every pending callback. A
// purchase in flight is dropped without notifying its listener. Calling
// Dispose more than once has no further effect.
func (c *Cashier) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.pending = nil
	c.mu.Unlock()

	c.cancel()

	err := c.vendor.Close()
	for _, teardown := range c.teardown {
		err = multierr.Append(err, teardown())
	}

	c.log.Debug("Cashier disposed", zap.Error(err))
	return err
}

// submit runs call on the executor as the single in-flight request of op. The
// callback call returns is handed to deliver unless the cashier was disposed
// in the meantime.
func (c *Cashier) submit(op iap.Operation, call func(ctx context.Context) func(), deliver func(func())) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return iap.ErrDisposed
	}
	if c.inFlight[op] {
		c.mu.Unlock()
		return errors.Wrapf(iap.ErrBusy, "%s in flight", op)
	}
	c.inFlight[op] = true
	c.mu.Unlock()

	done := func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.inFlight, op)
	}

	err := c.executor.Submit(func(ctx context.Context) {
		ctx, cancel := c.taskContext(ctx)
		defer cancel()

		callback := call(ctx)
		done()
		deliver(callback)
	})
	if err != nil {
		done()
		return errors.Wrapf(err, "failed to schedule %s", op)
	}
	return nil
}

// taskContext derives a context that is also canceled by Dispose.
func (c *Cashier) taskContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// post delivers f on the dispatcher unless the cashier is disposed by then.
func (c *Cashier) post(f func()) {
	c.dispatcher.Post(func() {
		c.deliverNow(f)
	})
}

func (c *Cashier) deliverNow(f func()) {
	if c.Disposed() {
		return
	}
	f()
}

func (c *Cashier) isPending(pending *pendingPurchase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending == pending && !c.disposed
}

// failPurchase ends pending with err if it is still the purchase in flight.
func (c *Cashier) failPurchase(pending *pendingPurchase, err *iap.VendorError) {
	c.mu.Lock()
	if c.pending != pending {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	c.post(func() {
		pending.listener.PurchaseFailed(pending.product, err)
	})
}

// nextRequestCode must be called with mu held.
func (c *Cashier) nextRequestCode() int {
	c.requestCode++
	if c.requestCode > maxRequestCode {
		c.requestCode = firstRequestCode
	}
	return c.requestCode
}
