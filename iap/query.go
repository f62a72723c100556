package iap

type InventoryOption func(*InventoryQuery)

// WithItemDetails asks for the product details of one-time items along with
// the owned purchases.
func WithItemDetails(skus ...string) InventoryOption {
	return func(q *InventoryQuery) {
		q.ItemSKUs = append(q.ItemSKUs, skus...)
	}
}

// WithSubscriptionDetails asks for the product details of subscriptions along
// with the owned purchases.
func WithSubscriptionDetails(skus ...string) InventoryOption {
	return func(q *InventoryQuery) {
		q.SubscriptionSKUs = append(q.SubscriptionSKUs, skus...)
	}
}

type InventoryQuery struct {
	ItemSKUs         []string
	SubscriptionSKUs []string
}

// WantsDetails reports whether product details were requested.
func (q InventoryQuery) WantsDetails() bool {
	return len(q.ItemSKUs) > 0 || len(q.SubscriptionSKUs) > 0
}

func ApplyInventoryOptions(options ...InventoryOption) InventoryQuery {
	var applied InventoryQuery
	for _, option := range options {
		option(&applied)
	}
	return applied
}
