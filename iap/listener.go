package iap

// PurchaseListener receives the terminal outcome of a purchase. Callbacks are
// delivered on the dispatcher (UI-affine) goroutine.
type PurchaseListener interface {
	PurchaseSucceeded(purchase *Purchase)
	PurchaseFailed(product Product, err *VendorError)
}

// ConsumeListener receives the terminal outcome of a consume. Callbacks run on
// a worker goroutine; listeners that touch UI state must hop back themselves.
type ConsumeListener interface {
	ConsumeSucceeded(purchase *Purchase)
	ConsumeFailed(purchase *Purchase, err *VendorError)
}

// InventoryListener receives the terminal outcome of an inventory query.
type InventoryListener interface {
	InventoryLoaded(inventory *Inventory)
	InventoryFailed(err *VendorError)
}

// ProductDetailsListener receives the terminal outcome of a product lookup.
type ProductDetailsListener interface {
	ProductDetailsLoaded(product Product)
	ProductDetailsFailed(sku string, err *VendorError)
}

// PurchaseFuncs adapts a pair of functions to a PurchaseListener. Nil
// functions are ignored.
type PurchaseFuncs struct {
	OnSuccess func(*Purchase)
	OnFailure func(Product, *VendorError)
}

func (f PurchaseFuncs) PurchaseSucceeded(p *Purchase) {
	if f.OnSuccess != nil {
		f.OnSuccess(p)
	}
}

func (f PurchaseFuncs) PurchaseFailed(product Product, err *VendorError) {
	if f.OnFailure != nil {
		f.OnFailure(product, err)
	}
}

type ConsumeFuncs struct {
	OnSuccess func(*Purchase)
	OnFailure func(*Purchase, *VendorError)
}

func (f ConsumeFuncs) ConsumeSucceeded(p *Purchase) {
	if f.OnSuccess != nil {
		f.OnSuccess(p)
	}
}

func (f ConsumeFuncs) ConsumeFailed(p *Purchase, err *VendorError) {
	if f.OnFailure != nil {
		f.OnFailure(p, err)
	}
}

type InventoryFuncs struct {
	OnSuccess func(*Inventory)
	OnFailure func(*VendorError)
}

func (f InventoryFuncs) InventoryLoaded(inv *Inventory) {
	if f.OnSuccess != nil {
		f.OnSuccess(inv)
	}
}

func (f InventoryFuncs) InventoryFailed(err *VendorError) {
	if f.OnFailure != nil {
		f.OnFailure(err)
	}
}

type ProductDetailsFuncs struct {
	OnSuccess func(Product)
	OnFailure func(string, *VendorError)
}

func (f ProductDetailsFuncs) ProductDetailsLoaded(p Product) {
	if f.OnSuccess != nil {
		f.OnSuccess(p)
	}
}

func (f ProductDetailsFuncs) ProductDetailsFailed(sku string, err *VendorError) {
	if f.OnFailure != nil {
		f.OnFailure(sku, err)
	}
}
