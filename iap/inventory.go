package iap

// Inventory is a point-in-time view of what the user owns with a vendor.
type Inventory struct {
	Purchases []*Purchase
	Products  []Product
}

// Empty reports whether no purchases are owned.
func (i *Inventory) Empty() bool {
	return i == nil || len(i.Purchases) == 0
}

// Find returns the owned purchase for sku, if any.
func (i *Inventory) Find(sku string) (*Purchase, bool) {
	if i == nil {
		return nil, false
	}
	for _, p := range i.Purchases {
		if p.SKU() == sku {
			return p, true
		}
	}
	return nil, false
}

// Product returns the details of sku, if they were requested.
func (i *Inventory) Product(sku string) (Product, bool) {
	if i == nil {
		return Product{}, false
	}
	for _, p := range i.Products {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}
