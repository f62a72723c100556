package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/code-payments/cashier/iap"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	purchases map[string]*iap.Purchase
}

func NewInMemory() iap.Store {
	return &InMemoryStore{
		purchases: map[string]*iap.Purchase{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = make(map[string]*iap.Purchase)
}

func (s *InMemoryStore) CreatePurchase(_ context.Context, purchase *iap.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := iap.ReceiptID(purchase.Receipt)
	if _, ok := s.purchases[id]; ok {
		return iap.ErrExists
	}

	s.purchases[id] = purchase.Clone()
	return nil
}

func (s *InMemoryStore) GetPurchase(_ context.Context, receiptID string) (*iap.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchases[receiptID]
	if !ok {
		return nil, iap.ErrNotFound
	}
	return purchase.Clone(), nil
}

func (s *InMemoryStore) GetPurchases(_ context.Context, vendor iap.VendorID) ([]*iap.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var purchases []*iap.Purchase
	for _, p := range s.purchases {
		if p.Vendor == vendor {
			purchases = append(purchases, p.Clone())
		}
	}

	sort.Slice(purchases, func(i, j int) bool {
		if purchases[i].PurchaseTime != purchases[j].PurchaseTime {
			return purchases[i].PurchaseTime < purchases[j].PurchaseTime
		}
		return purchases[i].OrderID < purchases[j].OrderID
	})
	return purchases, nil
}

func (s *InMemoryStore) DeletePurchase(_ context.Context, receiptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.purchases[receiptID]; !ok {
		return iap.ErrNotFound
	}
	delete(s.purchases, receiptID)
	return nil
}
